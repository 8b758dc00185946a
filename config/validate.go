package config

import (
	"fmt"
	"strings"
)

// MaxDepositPerByte caps the storage deposit rate so record deposits stay far
// from u64 overflow.
var MaxDepositPerByte = uint64(1_000_000)

// Validate checks the settings the daemon cannot run without.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config: nil")
	}
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress required")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir required")
	}
	if c.StorageDepositPerByte > MaxDepositPerByte {
		return fmt.Errorf("config: StorageDepositPerByte exceeds %d", MaxDepositPerByte)
	}
	if c.RPC.RequestsPerMinute < 0 {
		return fmt.Errorf("rpc: RequestsPerMinute must not be negative")
	}
	if c.RPC.RequestsPerMinute > 0 && c.RPC.Burst <= 0 {
		return fmt.Errorf("rpc: Burst must be positive when rate limiting is enabled")
	}
	if c.RPC.MaxBodyBytes < 0 {
		return fmt.Errorf("rpc: MaxBodyBytes must not be negative")
	}
	if secret := strings.TrimSpace(c.RPC.JWTSecret); secret != "" && len(secret) < 16 {
		return fmt.Errorf("rpc: JWTSecret must be at least 16 characters")
	}
	if (c.Telemetry.Traces || c.Telemetry.Metrics) && strings.TrimSpace(c.Telemetry.Endpoint) == "" {
		return fmt.Errorf("telemetry: Endpoint required when exporters are enabled")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: SampleRatio must be within [0,1]")
	}
	return nil
}

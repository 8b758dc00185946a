package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

type Config struct {
	RPCAddress  string `toml:"RPCAddress"`
	DataDir     string `toml:"DataDir"`
	GenesisFile string `toml:"GenesisFile"`
	Environment string `toml:"Environment"`

	StorageDepositPerByte uint64 `toml:"StorageDepositPerByte"`
	ReclaimOnCancel       bool   `toml:"ReclaimOnCancel"`
	EventLogCapacity      int    `toml:"EventLogCapacity"`

	RPC       RPC       `toml:"rpc"`
	Telemetry Telemetry `toml:"telemetry"`
	Log       Log       `toml:"log"`
}

// Default returns the settings written for a fresh node.
func Default() *Config {
	return &Config{
		RPCAddress:            ":8545",
		DataDir:               "./stead-data",
		Environment:           "local",
		StorageDepositPerByte: 1,
		ReclaimOnCancel:       true,
		EventLogCapacity:      1024,
		RPC: RPC{
			RequestsPerMinute: 600,
			Burst:             60,
			MaxBodyBytes:      1 << 20,
			ReadTimeoutSecs:   15,
			WriteTimeoutSecs:  15,
		},
	}
}

// Load loads the configuration from the given path.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown key %s", path, undecoded[0])
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

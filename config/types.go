package config

// RPC controls the JSON-RPC listener.
type RPC struct {
	// JWTSecret enables bearer authentication for mutating methods when set.
	JWTSecret   string `toml:"JWTSecret"`
	JWTIssuer   string `toml:"JWTIssuer"`
	JWTAudience string `toml:"JWTAudience"`
	// RequestsPerMinute and Burst bound each client address.
	RequestsPerMinute float64 `toml:"RequestsPerMinute"`
	Burst             int     `toml:"Burst"`
	MaxBodyBytes      int64   `toml:"MaxBodyBytes"`
	ReadTimeoutSecs   int     `toml:"ReadTimeoutSecs"`
	WriteTimeoutSecs  int     `toml:"WriteTimeoutSecs"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Endpoint string            `toml:"Endpoint"`
	Insecure bool              `toml:"Insecure"`
	Headers  map[string]string `toml:"Headers"`
	Traces   bool              `toml:"Traces"`
	Metrics  bool              `toml:"Metrics"`

	// SampleRatio samples root spans; 0 samples everything.
	SampleRatio float64 `toml:"SampleRatio"`
}

// Log configures the optional rotating log file.
type Log struct {
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
	Level      string `toml:"Level"`
}

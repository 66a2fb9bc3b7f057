package config

import "path/filepath"

// Defaults returns a config with sane defaults for a local gateway.
func Defaults() *Config {
	return &Config{
		Gateway: GatewayConfig{
			WSURL:   "ws://localhost:4000",
			APIBase: "http://localhost:4000",
		},
		Identity: IdentityConfig{
			Role: "ASSISTANT",
		},
		Cache: CacheConfig{
			Enabled:       true,
			DBPath:        filepath.Join(DefaultConfigDir(), "cache.db"),
			RetentionDays: 30,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    9090,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

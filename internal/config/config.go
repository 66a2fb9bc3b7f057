package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the help-desk daemon.
type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway"`
	Identity IdentityConfig `yaml:"identity"`
	Bridges  BridgesConfig  `yaml:"bridges"`
	Cache    CacheConfig    `yaml:"cache"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// GatewayConfig points at the storefront chat gateway.
type GatewayConfig struct {
	WSURL     string `yaml:"wsUrl"`   // ws:// or wss:// endpoint
	APIBase   string `yaml:"apiBase"` // http(s) base for the bulk session API
	AuthToken string `yaml:"authToken,omitempty"`
	Cookie    string `yaml:"cookie,omitempty"`
}

// IdentityConfig is who this client connects as.
type IdentityConfig struct {
	UserID string `yaml:"userId"`
	Role   string `yaml:"role"` // "USER" | "ASSISTANT"
}

type BridgesConfig struct {
	Ingress  IngressConfig        `yaml:"ingress"`
	Discord  DiscordBridgeConfig  `yaml:"discord"`
	Telegram TelegramBridgeConfig `yaml:"telegram"`
}

// IngressConfig points bridges at the gateway's customer-message intake.
type IngressConfig struct {
	BaseURL   string `yaml:"baseUrl,omitempty"` // defaults to gateway.apiBase
	AuthToken string `yaml:"authToken,omitempty"`
}

type DiscordBridgeConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token,omitempty"`
	GuildID string `yaml:"guildId,omitempty"` // optional: restrict to one guild
}

type TelegramBridgeConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Token     string   `yaml:"token,omitempty"`
	AllowFrom []string `yaml:"allowFrom,omitempty"` // empty = everyone
}

type CacheConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DBPath        string `yaml:"dbPath"`
	RetentionDays int    `yaml:"retentionDays"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

type LogConfig struct {
	Level string `yaml:"level"`          // debug | info | warn | error
	File  string `yaml:"file,omitempty"` // empty = stderr only
}

// DefaultConfigDir returns the default config directory (~/.helpdeskd).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".helpdeskd"
	}
	return filepath.Join(home, ".helpdeskd")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Load reads, env-expands, parses, and validates the config at path.
func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Cache.DBPath = ExpandPath(cfg.Cache.DBPath)
	cfg.Log.File = ExpandPath(cfg.Log.File)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Save writes cfg as YAML, creating the directory if needed.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset
// or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match
		}
		return val
	})
}

// Validate checks that the config has usable values.
func Validate(cfg *Config) error {
	var errs []string

	u, err := url.Parse(cfg.Gateway.WSURL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		errs = append(errs, "gateway.wsUrl must be a ws:// or wss:// URL")
	}
	a, err := url.Parse(cfg.Gateway.APIBase)
	if err != nil || (a.Scheme != "http" && a.Scheme != "https") {
		errs = append(errs, "gateway.apiBase must be an http(s) URL")
	}

	if cfg.Identity.UserID == "" {
		errs = append(errs, "identity.userId is required")
	}
	switch cfg.Identity.Role {
	case "USER", "ASSISTANT":
		// valid
	default:
		errs = append(errs, "identity.role must be one of: USER, ASSISTANT")
	}

	if cfg.Bridges.Discord.Enabled && cfg.Bridges.Discord.Token == "" {
		errs = append(errs, "bridges.discord.token is required when the bridge is enabled")
	}
	if cfg.Bridges.Telegram.Enabled && cfg.Bridges.Telegram.Token == "" {
		errs = append(errs, "bridges.telegram.token is required when the bridge is enabled")
	}

	if cfg.Cache.Enabled {
		if cfg.Cache.DBPath == "" {
			errs = append(errs, "cache.dbPath is required when the cache is enabled")
		}
		if cfg.Cache.RetentionDays < 1 {
			errs = append(errs, "cache.retentionDays must be >= 1")
		}
	}

	if cfg.Metrics.Port < 0 || cfg.Metrics.Port > 65535 {
		errs = append(errs, "metrics.port must be between 0 and 65535")
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "log.level must be one of: debug, info, warn, error")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validYAML = `
gateway:
  wsUrl: wss://shop.example.com/socket
  apiBase: https://shop.example.com
identity:
  userId: agent-1
  role: ASSISTANT
log:
  level: debug
`

func TestLoadValid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Gateway.WSURL != "wss://shop.example.com/socket" {
		t.Errorf("wsUrl = %q", cfg.Gateway.WSURL)
	}
	if cfg.Identity.Role != "ASSISTANT" {
		t.Errorf("role = %q", cfg.Identity.Role)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("level = %q", cfg.Log.Level)
	}
	// Defaults survive partial configs.
	if cfg.Cache.RetentionDays != 30 {
		t.Errorf("retentionDays = %d, want default 30", cfg.Cache.RetentionDays)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad ws scheme", func(c *Config) { c.Gateway.WSURL = "https://not-ws.example.com" }, "wsUrl"},
		{"bad api scheme", func(c *Config) { c.Gateway.APIBase = "ftp://files.example.com" }, "apiBase"},
		{"missing user", func(c *Config) { c.Identity.UserID = "" }, "userId"},
		{"bad role", func(c *Config) { c.Identity.Role = "ADMIN" }, "role"},
		{"discord without token", func(c *Config) { c.Bridges.Discord.Enabled = true }, "discord"},
		{"bad port", func(c *Config) { c.Metrics.Port = 70000 }, "port"},
		{"bad level", func(c *Config) { c.Log.Level = "verbose" }, "level"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.Identity.UserID = "agent-1"
			tc.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("err = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("HELPDESK_TOKEN", "secret-token")
	os.Unsetenv("HELPDESK_MISSING")

	in := "token: ${HELPDESK_TOKEN}\nfallback: ${HELPDESK_MISSING:-default-value}\nkept: ${HELPDESK_MISSING}"
	out := ExpandEnvVars(in)

	if !strings.Contains(out, "token: secret-token") {
		t.Errorf("set var not expanded: %s", out)
	}
	if !strings.Contains(out, "fallback: default-value") {
		t.Errorf("default not applied: %s", out)
	}
	if !strings.Contains(out, "kept: ${HELPDESK_MISSING}") {
		t.Errorf("unset var without default should stay verbatim: %s", out)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("TEST_GW_HOST", "gw.example.com")
	cfg, err := Load(writeConfig(t, `
gateway:
  wsUrl: wss://${TEST_GW_HOST}/socket
  apiBase: https://${TEST_GW_HOST}
identity:
  userId: agent-1
  role: ASSISTANT
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Gateway.WSURL != "wss://gw.example.com/socket" {
		t.Errorf("wsUrl = %q", cfg.Gateway.WSURL)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := Defaults()
	cfg.Identity.UserID = "agent-1"
	cfg.Gateway.WSURL = "wss://shop.example.com/socket"

	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Identity.UserID != "agent-1" || loaded.Gateway.WSURL != cfg.Gateway.WSURL {
		t.Errorf("round trip = %+v", loaded)
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ── Config.Validate ──────────────────────────────────────────────────

func TestValidate(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	valid := func(mod func(*Config)) Config {
		c := New()
		mod(c)
		return *c
	}

	tests := []struct {
		name    string
		cfg     Config
		wantSub string // empty means valid
	}{
		{"defaults", valid(func(*Config) {}), ""},
		{"network off", valid(func(c *Config) { c.Port = 0; c.Senders = 0 }), ""},
		{"port too large", valid(func(c *Config) { c.Port = 70000 }), "--port=70000"},
		{"negative port", valid(func(c *Config) { c.Port = -1 }), "hint:"},
		{"no bind", valid(func(c *Config) { c.Bind = "" }), "--bind"},
		{"no senders", valid(func(c *Config) { c.Senders = 0 }), "--senders"},
		{"zero ttl", valid(func(c *Config) { c.ClientTTL = 0 }), "--client-ttl"},
		{"no bind attempts", valid(func(c *Config) { c.BindAttempts = 0 }), "--bind-attempts"},
		{"zero bind delay", valid(func(c *Config) { c.BindDelay = 0 }), "--bind-delay"},
		{"network off ignores bind", valid(func(c *Config) { c.Port = 0; c.BindAttempts = 0 }), ""},
		{"no data path", valid(func(c *Config) { c.DataPath = "" }), "--data"},
		{"negative history", valid(func(c *Config) { c.HistoryLimit = -5 }), "hint:"},
		{"unbounded history", valid(func(c *Config) { c.HistoryLimit = 0 }), ""},
		{"cost too low", valid(func(c *Config) { c.BcryptCost = 2 }), "--bcrypt-cost"},
		{"seeded user", valid(func(c *Config) { c.Users = []User{{"admin", string(hash)}} }), ""},
		{"nameless user", valid(func(c *Config) { c.Users = []User{{"", string(hash)}} }), "has no name"},
		{"duplicate user", valid(func(c *Config) { c.Users = []User{{"a", string(hash)}, {"a", string(hash)}} }), "listed twice"},
		{"plain password", valid(func(c *Config) { c.Users = []User{{"a", "secret"}} }), "not a bcrypt hash"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantSub == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantSub)
			}
		})
	}
}

func TestAddress(t *testing.T) {
	c := New()
	c.Bind, c.Port = "::1", 4040
	if got := c.Address(); got != "[::1]:4040" {
		t.Errorf("Address() = %q", got)
	}
	c.Port = 0
	if c.NetworkEnabled() {
		t.Error("port 0 should disable the network surface")
	}
}

// ── LoadFromEnv ──────────────────────────────────────────────────────

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("FLATCTL_PORT", "0")
	t.Setenv("FLATCTL_BIND", "0.0.0.0")
	t.Setenv("FLATCTL_DATA", "/tmp/f.json")
	t.Setenv("FLATCTL_HISTORY_LIMIT", "16")
	t.Setenv("FLATCTL_SENDERS", "2")
	t.Setenv("FLATCTL_CLIENT_TTL", "30")
	t.Setenv("FLATCTL_BIND_ATTEMPTS", "9")
	t.Setenv("FLATCTL_BIND_DELAY_MS", "75")
	t.Setenv("FLATCTL_BCRYPT_COST", "5")
	t.Setenv("FLATCTL_VERBOSE", "2")

	cfg := New()
	LoadFromEnv(cfg)

	if cfg.Port != 0 || cfg.NetworkEnabled() {
		t.Errorf("Port = %d, want 0", cfg.Port)
	}
	if cfg.Bind != "0.0.0.0" {
		t.Errorf("Bind = %q", cfg.Bind)
	}
	if cfg.DataPath != "/tmp/f.json" {
		t.Errorf("DataPath = %q", cfg.DataPath)
	}
	if cfg.HistoryLimit != 16 || cfg.Senders != 2 || cfg.BcryptCost != 5 || cfg.Verbose != 2 {
		t.Errorf("got history=%d senders=%d cost=%d verbose=%d",
			cfg.HistoryLimit, cfg.Senders, cfg.BcryptCost, cfg.Verbose)
	}
	if cfg.ClientTTL != 30*time.Second {
		t.Errorf("ClientTTL = %v, want 30s", cfg.ClientTTL)
	}
	if cfg.BindAttempts != 9 || cfg.BindDelay != 75*time.Millisecond {
		t.Errorf("got bind attempts=%d delay=%v", cfg.BindAttempts, cfg.BindDelay)
	}
}

func TestLoadFromEnv_IgnoresGarbage(t *testing.T) {
	t.Setenv("FLATCTL_PORT", "lots")
	t.Setenv("FLATCTL_SENDERS", "-3")
	cfg := New()
	LoadFromEnv(cfg)
	if cfg.Port != DefaultPort || cfg.Senders != DefaultSenders {
		t.Errorf("garbage env changed the config: port=%d senders=%d", cfg.Port, cfg.Senders)
	}
}

func TestLoadFromEnv_DryRun(t *testing.T) {
	for _, v := range []string{"1", "true", "yes", "TRUE", "Yes"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("FLATCTL_DRY_RUN", v)
			cfg := New()
			LoadFromEnv(cfg)
			if !cfg.DryRun {
				t.Error("DryRun should be true")
			}
		})
	}
}

// ── LoadFile ─────────────────────────────────────────────────────────

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flatctl.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
port = 4041
data = "collection.json"
client_ttl = 90
bind_attempts = 2
bind_delay_ms = 50

[[users]]
name = "admin"
password_hash = "$2a$04$abcdefghijklmnopqrstuu5Y1t2Q2eGfP8E8m5Rz1rIuD8y1UoJWy"
`)
	cfg := New()
	if err := LoadFile(cfg, path); err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 4041 || cfg.DataPath != "collection.json" {
		t.Errorf("got port=%d data=%q", cfg.Port, cfg.DataPath)
	}
	if cfg.ClientTTL != 90*time.Second {
		t.Errorf("ClientTTL = %v", cfg.ClientTTL)
	}
	if p := cfg.BindPolicy(); p.Attempts != 2 || p.Delay != 50*time.Millisecond {
		t.Errorf("BindPolicy() = %+v", p)
	}
	if cfg.Bind != DefaultBind || cfg.Senders != DefaultSenders {
		t.Error("keys missing from the file changed the config")
	}
	if len(cfg.Users) != 1 || cfg.Users[0].Name != "admin" {
		t.Errorf("Users = %+v", cfg.Users)
	}
	if cfg.ConfigPath != path {
		t.Errorf("ConfigPath = %q", cfg.ConfigPath)
	}
}

func TestLoadFile_PortZeroDisablesNetwork(t *testing.T) {
	cfg := New()
	if err := LoadFile(cfg, writeConfig(t, "port = 0\n")); err != nil {
		t.Fatal(err)
	}
	if cfg.NetworkEnabled() {
		t.Error("port = 0 in the file should disable the network surface")
	}
}

func TestLoadFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		wantSub string
	}{
		{"missing", func(t *testing.T) string { return filepath.Join(t.TempDir(), "none.toml") }, "--config"},
		{"syntax", func(t *testing.T) string { return writeConfig(t, "port = = 1") }, "--config"},
		{"unknown key", func(t *testing.T) string { return writeConfig(t, "prot = 1\n") }, "unknown keys: prot"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := LoadFile(New(), tt.path(t))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantSub)
			}
		})
	}
}

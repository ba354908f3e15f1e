package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Config file  (file.go)
//   4. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the FLATCTL_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// ConfigPathFromEnv returns FLATCTL_CONFIG.
func ConfigPathFromEnv() string {
	return os.Getenv("FLATCTL_CONFIG")
}

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	// Network
	if v, ok := envInt("FLATCTL_PORT"); ok && v >= 0 {
		cfg.Port = v
	}
	if v := os.Getenv("FLATCTL_BIND"); v != "" {
		cfg.Bind = v
	}
	if v, ok := envInt("FLATCTL_SENDERS"); ok && v > 0 {
		cfg.Senders = v
	}
	if v, ok := envInt("FLATCTL_CLIENT_TTL"); ok && v > 0 {
		cfg.ClientTTL = secondsDuration(v)
	}
	if v, ok := envInt("FLATCTL_BIND_ATTEMPTS"); ok && v > 0 {
		cfg.BindAttempts = v
	}
	if v, ok := envInt("FLATCTL_BIND_DELAY_MS"); ok && v > 0 {
		cfg.BindDelay = time.Duration(v) * time.Millisecond
	}

	// Storage
	if v := os.Getenv("FLATCTL_DATA"); v != "" {
		cfg.DataPath = v
	}
	if v := os.Getenv("FLATCTL_CONFIG"); v != "" {
		cfg.ConfigPath = v
	}
	if v, ok := envInt("FLATCTL_HISTORY_LIMIT"); ok && v >= 0 {
		cfg.HistoryLimit = v
	}

	// Credentials
	if v, ok := envInt("FLATCTL_BCRYPT_COST"); ok && v > 0 {
		cfg.BcryptCost = v
	}

	// Output
	if v, ok := envInt("FLATCTL_VERBOSE"); ok && v > 0 {
		cfg.Verbose = v
	}
	if envBool("FLATCTL_DRY_RUN") {
		cfg.DryRun = true
	}
}

// ── helpers ──────────────────────────────────────────────────────────

// envInt returns the value of key and whether it was set to a number.
func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}

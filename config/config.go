// Package config defines the runtime configuration for a flatctl
// session and the layers it is loaded from.
package config

import (
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	ferrors "flatctl/internal/errors"
	"flatctl/internal/retry"
	"flatctl/util"
)

// Config holds every tuneable for a single flatctl session.
type Config struct {
	// ── Network surface ──────────────────────────────────────────────
	Port      int // 0 disables the remote surface
	Bind      string
	Senders   int
	Outbox    int
	ClientTTL time.Duration

	BindAttempts int
	BindDelay    time.Duration

	// ── Storage ──────────────────────────────────────────────────────
	DataPath     string
	ConfigPath   string
	HistoryLimit int // 0 keeps every command

	// ── Credentials ──────────────────────────────────────────────────
	BcryptCost int
	Users      []User // seeded before the session starts

	// ── Output ───────────────────────────────────────────────────────
	Verbose int
	DryRun  bool
}

// User is a pre-registered account.  PasswordHash is a bcrypt hash.
type User struct {
	Name         string `toml:"name"`
	PasswordHash string `toml:"password_hash"`
}

// New returns a Config populated with the defaults.
func New() *Config {
	return &Config{
		Port:         DefaultPort,
		Bind:         DefaultBind,
		Senders:      DefaultSenders,
		Outbox:       DefaultOutbox,
		ClientTTL:    DefaultClientTTL,
		BindAttempts: DefaultBindAttempts,
		BindDelay:    DefaultBindDelay,
		DataPath:     DefaultDataPath,
		HistoryLimit: DefaultHistoryLimit,
		BcryptCost:   DefaultBcryptCost,
	}
}

// NetworkEnabled reports whether the remote surface should run.
func (c *Config) NetworkEnabled() bool { return c.Port != 0 }

// Address returns the UDP address to bind.
func (c *Config) Address() string { return util.FormatAddr(c.Bind, c.Port) }

// BindPolicy returns how long startup waits for a busy port.
func (c *Config) BindPolicy() retry.Policy {
	return retry.Policy{Attempts: c.BindAttempts, Delay: c.BindDelay, MaxDelay: 10 * c.BindDelay}
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return &ferrors.ConfigError{Field: "port", Value: c.Port, Message: "out of range 0-65535",
			Hint: "use -p 0 to run without the network surface"}
	}
	if c.NetworkEnabled() {
		if c.Bind == "" {
			return &ferrors.ConfigError{Field: "bind", Message: "address is required when the network surface is on"}
		}
		if c.Senders < 1 {
			return &ferrors.ConfigError{Field: "senders", Value: c.Senders, Message: "at least one sender is required"}
		}
		if c.Outbox < 1 {
			return &ferrors.ConfigError{Field: "outbox", Value: c.Outbox, Message: "must be positive"}
		}
		if c.ClientTTL <= 0 {
			return &ferrors.ConfigError{Field: "client-ttl", Value: c.ClientTTL, Message: "must be positive"}
		}
		if c.BindAttempts < 1 {
			return &ferrors.ConfigError{Field: "bind-attempts", Value: c.BindAttempts, Message: "at least one attempt is required"}
		}
		if c.BindDelay <= 0 {
			return &ferrors.ConfigError{Field: "bind-delay", Value: c.BindDelay, Message: "must be positive"}
		}
	}
	if c.DataPath == "" {
		return &ferrors.ConfigError{Field: "data", Message: "collection file is required"}
	}
	if c.HistoryLimit < 0 {
		return &ferrors.ConfigError{Field: "history-limit", Value: c.HistoryLimit, Message: "must not be negative",
			Hint: "use 0 to keep every command"}
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return &ferrors.ConfigError{Field: "bcrypt-cost", Value: c.BcryptCost,
			Message: fmt.Sprintf("out of range %d-%d", bcrypt.MinCost, bcrypt.MaxCost)}
	}

	seen := make(map[string]bool, len(c.Users))
	for i, u := range c.Users {
		if u.Name == "" {
			return &ferrors.ConfigError{Field: "config", Value: c.ConfigPath,
				Message: fmt.Sprintf("users[%d] has no name", i)}
		}
		if seen[u.Name] {
			return &ferrors.ConfigError{Field: "config", Value: c.ConfigPath,
				Message: fmt.Sprintf("user %q is listed twice", u.Name)}
		}
		if _, err := bcrypt.Cost([]byte(u.PasswordHash)); err != nil {
			return &ferrors.ConfigError{Field: "config", Value: c.ConfigPath,
				Message: fmt.Sprintf("user %q: password_hash is not a bcrypt hash", u.Name),
				Hint:    "generate one with: htpasswd -nbBC 10 '' <password> | cut -c2-"}
		}
		seen[u.Name] = true
	}
	return nil
}

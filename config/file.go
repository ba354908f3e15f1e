package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	ferrors "flatctl/internal/errors"
)

// fileFormat is the layout of the optional TOML config file:
//
//	port = 25566
//	bind = "0.0.0.0"
//	data = "/var/lib/flatctl/flats.json"
//	history_limit = 512
//	senders = 8
//	client_ttl = 600   # seconds
//	bind_attempts = 5
//	bind_delay_ms = 200
//	bcrypt_cost = 12
//	verbose = 1
//
//	[[users]]
//	name = "admin"
//	password_hash = "$2a$10$..."
type fileFormat struct {
	Port         int    `toml:"port"`
	Bind         string `toml:"bind"`
	Data         string `toml:"data"`
	HistoryLimit int    `toml:"history_limit"`
	Senders      int    `toml:"senders"`
	ClientTTL    int    `toml:"client_ttl"`
	BindAttempts int    `toml:"bind_attempts"`
	BindDelayMS  int    `toml:"bind_delay_ms"`
	BcryptCost   int    `toml:"bcrypt_cost"`
	Verbose      int    `toml:"verbose"`
	Users        []User `toml:"users"`
}

// LoadFile overlays the TOML file at path onto cfg.  Only keys present
// in the file override the existing values; unknown keys are an error.
func LoadFile(cfg *Config, path string) error {
	var f fileFormat
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return &ferrors.ConfigError{Field: "config", Value: path, Message: err.Error()}
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return &ferrors.ConfigError{Field: "config", Value: path,
			Message: fmt.Sprintf("unknown keys: %s", strings.Join(keys, ", "))}
	}

	if md.IsDefined("port") {
		cfg.Port = f.Port
	}
	if md.IsDefined("bind") {
		cfg.Bind = f.Bind
	}
	if md.IsDefined("data") {
		cfg.DataPath = f.Data
	}
	if md.IsDefined("history_limit") {
		cfg.HistoryLimit = f.HistoryLimit
	}
	if md.IsDefined("senders") {
		cfg.Senders = f.Senders
	}
	if md.IsDefined("client_ttl") {
		cfg.ClientTTL = secondsDuration(f.ClientTTL)
	}
	if md.IsDefined("bind_attempts") {
		cfg.BindAttempts = f.BindAttempts
	}
	if md.IsDefined("bind_delay_ms") {
		cfg.BindDelay = time.Duration(f.BindDelayMS) * time.Millisecond
	}
	if md.IsDefined("bcrypt_cost") {
		cfg.BcryptCost = f.BcryptCost
	}
	if md.IsDefined("verbose") {
		cfg.Verbose = f.Verbose
	}
	cfg.Users = append(cfg.Users, f.Users...)
	cfg.ConfigPath = path
	return nil
}

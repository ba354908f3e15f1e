package config

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, config file parsing, and environment variable
// loading.

const (
	// DefaultPort is the UDP port remote clients send requests to.
	DefaultPort = 25566

	// DefaultBind is the address the UDP socket binds to.
	DefaultBind = "127.0.0.1"

	// DefaultDataPath is the collection file, relative to the working
	// directory.
	DefaultDataPath = "flats.json"

	// DefaultHistoryLimit caps the number of commands the dispatcher
	// remembers.  Commands still waiting for values are never dropped.
	DefaultHistoryLimit = 1024

	// DefaultSenders is the number of goroutines writing responses.
	DefaultSenders = 4

	// DefaultOutbox bounds the responses queued for the senders.
	DefaultOutbox = 256

	// DefaultClientTTL is how long a silent client keeps its id.
	DefaultClientTTL = 10 * time.Minute

	// DefaultBindAttempts is how many times a busy UDP port is tried
	// before startup fails.
	DefaultBindAttempts = 5

	// DefaultBindDelay is the first wait between bind attempts.  It
	// doubles after each busy attempt.
	DefaultBindDelay = 200 * time.Millisecond

	// DefaultBcryptCost is the work factor for new password hashes.
	DefaultBcryptCost = bcrypt.DefaultCost
)

// Package session holds the context shared by every component for the
// lifetime of one run: the collection, the credential store, the local
// user and the ambient logger and metrics.
//
// A Session is built once at startup and passed explicitly; nothing in
// the program reaches for a process-wide handle.
package session

import (
	"io"
	"math/rand"
	"sync"
	"time"

	"flatctl/internal/auth"
	"flatctl/internal/metrics"
	"flatctl/internal/model"
	"flatctl/internal/store"
	"flatctl/util"
)

// Session encapsulates the runtime context.
type Session struct {
	Flats   *store.Collection
	Users   auth.Authenticator
	Logger  *util.Logger
	Metrics *metrics.Collector
	Stdin   io.Reader
	Stdout  io.Writer
	// Now is the clock used for creation dates.
	Now func() time.Time

	mu   sync.Mutex
	user string
	rng  *rand.Rand
}

// New creates a Session bound to the given collaborators and I/O pair.
func New(flats *store.Collection, users auth.Authenticator, stdin io.Reader, stdout io.Writer, logger *util.Logger, m *metrics.Collector) *Session {
	return &Session{
		Flats:   flats,
		Users:   users,
		Logger:  logger,
		Metrics: m,
		Stdin:   stdin,
		Stdout:  stdout,
		Now:     time.Now,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// User returns the name the local surfaces act as ("" before login).
func (s *Session) User() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// SetUser switches the local user.
func (s *Session) SetUser(name string) {
	s.mu.Lock()
	s.user = name
	s.mu.Unlock()
	s.Logger.Verbose("local user is now %s", name)
}

// RandomFlat returns a valid flat with random field values.
func (s *Session) RandomFlat() model.Flat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.Random(s.rng, s.Now())
}

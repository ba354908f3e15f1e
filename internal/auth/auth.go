// Package auth stores user credentials as bcrypt hashes.
package auth

import (
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	ferrors "flatctl/internal/errors"
)

// Authenticator is what the transport and the credential commands need
// from a credential store.
type Authenticator interface {
	// Authenticate reports whether secret is name's password.  Unknown
	// users are not an error.
	Authenticate(name, secret string) (bool, error)
	Register(name, secret string) error
	Exists(name string) bool
}

// Store is an in-memory Authenticator.
type Store struct {
	mu    sync.RWMutex
	users map[string][]byte
	cost  int
}

// NewStore returns an empty store hashing with the given bcrypt cost.  A
// cost outside bcrypt's range falls back to bcrypt.DefaultCost.
func NewStore(cost int) *Store {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Store{users: make(map[string][]byte), cost: cost}
}

// Seed installs a user from an existing bcrypt hash, replacing any
// earlier entry for name.
func (s *Store) Seed(name, hash string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return ferrors.Field("password_hash", "user %s: %v", name, err)
	}
	s.mu.Lock()
	s.users[name] = []byte(hash)
	s.mu.Unlock()
	return nil
}

// Register adds a new user.  It fails with ErrUserExists when name is
// taken.
func (s *Store) Register(name, secret string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if secret == "" {
		return ferrors.Field("password", "must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	if err != nil {
		return ferrors.Field("password", "%v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[name]; ok {
		return ferrors.ErrUserExists
	}
	s.users[name] = hash
	return nil
}

// Authenticate implements Authenticator.
func (s *Store) Authenticate(name, secret string) (bool, error) {
	s.mu.RLock()
	hash, ok := s.users[name]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	err := bcrypt.CompareHashAndPassword(hash, []byte(secret))
	switch {
	case err == nil:
		return true, nil
	case ferrors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}

// Exists reports whether name is registered.
func (s *Store) Exists(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[name]
	return ok
}

// Hash returns the bcrypt hash of secret at the default cost, in the
// form accepted by Seed.
func Hash(secret string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	return string(h), err
}

func checkName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ferrors.Field("name", "must not be empty")
	}
	if strings.ContainsAny(name, " \t\r\n") {
		return ferrors.Field("name", "must not contain whitespace")
	}
	return nil
}

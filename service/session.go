package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/matenet/pin/core"
	"github.com/matenet/pin/ports"
)

const (
	// TokenKey is where the session token is persisted
	TokenKey = "siwe_jwt"
	// LegacyTokenKey is read when TokenKey is absent, never written
	LegacyTokenKey = "authToken"
)

// SessionStore keeps the single session token in a persisted Store
type SessionStore struct {
	store   ports.Store
	inspect ports.TokenInspector
	log     log.Logger
	now     func() time.Time

	mu sync.Mutex
}

var _ ports.SessionStore = (*SessionStore)(nil)

// NewSessionStore creates a session store. With a nil inspector tokens are
// never considered expired.
func NewSessionStore(store ports.Store, inspect ports.TokenInspector, logger log.Logger) *SessionStore {
	if logger == nil {
		logger = log.Root()
	}
	return &SessionStore{
		store:   store,
		inspect: inspect,
		log:     logger,
		now:     time.Now,
	}
}

// Get returns the stored token, core.ErrNoSession when there is none and
// core.ErrSessionExpired after dropping a token whose exp has passed
func (s *SessionStore) Get(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, err := s.read(ctx)
	if err != nil {
		return "", err
	}

	if s.inspect != nil {
		if exp, ok := s.inspect.ExpiresAt(token); ok && !s.now().Before(exp) {
			s.log.Debug("Dropping expired session token", "exp", exp)
			if err := s.clear(ctx); err != nil {
				return "", err
			}
			return "", core.ErrSessionExpired
		}
	}
	return token, nil
}

func (s *SessionStore) read(ctx context.Context) (string, error) {
	for _, key := range []string{TokenKey, LegacyTokenKey} {
		token, err := s.store.Get(ctx, key)
		switch {
		case err == nil && token != "":
			return token, nil
		case err == nil, errors.Is(err, core.ErrKeyNotFound):
			continue
		default:
			return "", fmt.Errorf("failed to read session: %w", err)
		}
	}
	return "", core.ErrNoSession
}

// Set overwrites the stored token
func (s *SessionStore) Set(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("%w: empty session token", core.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Set(ctx, TokenKey, token); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	// a stale legacy token must not resurface after Clear
	if err := s.store.Delete(ctx, LegacyTokenKey); err != nil {
		return fmt.Errorf("failed to drop legacy session: %w", err)
	}
	return nil
}

// Clear removes the token
func (s *SessionStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clear(ctx)
}

// ClearIf removes the stored token only when it is still token, so a
// rejection of an old token cannot drop a newer session
func (s *SessionStore) ClearIf(ctx context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.read(ctx)
	switch {
	case errors.Is(err, core.ErrNoSession):
		return false, nil
	case err != nil:
		return false, err
	case current != token:
		s.log.Debug("Kept newer session token")
		return false, nil
	}
	return true, s.clear(ctx)
}

func (s *SessionStore) clear(ctx context.Context) error {
	for _, key := range []string{TokenKey, LegacyTokenKey} {
		if err := s.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to clear session: %w", err)
		}
	}
	return nil
}

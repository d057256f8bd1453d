// Package auth holds the client-side session: the access token, the refresh
// token and the user id, persisted to a durable and an ephemeral backend.
//
// Reads prefer the durable backend and fall back to the ephemeral one field by
// field. Writes fan out to both; a failing durable backend degrades the store to
// ephemeral-only persistence instead of failing the caller.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

var (
	ErrIncompleteSession = errors.New("access token, refresh token and user id are all required")
	ErrNotPersisted      = errors.New("session could not be persisted to any backend")
)

// Session is the client-held authentication state. Empty fields are absent.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	UserID       string `json:"user_id"`
}

// IsZero reports whether no field is set
func (s Session) IsZero() bool {
	return s.AccessToken == "" && s.RefreshToken == "" && s.UserID == ""
}

func (s Session) get(key string) string {
	switch key {
	case KeyAccessToken:
		return s.AccessToken
	case KeyRefreshToken:
		return s.RefreshToken
	case KeyUserID:
		return s.UserID
	}
	return ""
}

func (s *Session) set(key, value string) {
	switch key {
	case KeyAccessToken:
		s.AccessToken = value
	case KeyRefreshToken:
		s.RefreshToken = value
	case KeyUserID:
		s.UserID = value
	}
}

// TokenStore is the single source of truth for one server's session.
// It is safe for concurrent use.
type TokenStore struct {
	durable   Backend
	ephemeral Backend
	logger    zerolog.Logger

	mu      sync.RWMutex
	session Session
	// stale is set when the durable tier rejected the latest write and may
	// still hold an older session. Reads skip it until a save succeeds.
	stale bool
}

// NewTokenStore creates a store over the two backends. Either may be nil, in
// which case that tier is skipped.
func NewTokenStore(durable, ephemeral Backend, logger zerolog.Logger) *TokenStore {
	return &TokenStore{
		durable:   durable,
		ephemeral: ephemeral,
		logger:    logger.With().Str("component", "token_store").Logger(),
	}
}

// Load refreshes the in-memory session from the backends. Values that cannot
// be read are treated as absent.
func (s *TokenStore) Load(ctx context.Context) Session {
	s.mu.RLock()
	durable := s.durable
	if s.stale {
		durable = nil
	}
	s.mu.RUnlock()

	var loaded Session
	for _, key := range sessionKeys {
		value := s.read(ctx, "durable", durable, key)
		if value == "" {
			value = s.read(ctx, "ephemeral", s.ephemeral, key)
		}
		loaded.set(key, value)
	}

	s.mu.Lock()
	s.session = loaded
	s.mu.Unlock()

	s.logger.Debug().
		Bool("has_access_token", loaded.AccessToken != "").
		Bool("has_refresh_token", loaded.RefreshToken != "").
		Str("user_id", loaded.UserID).
		Msg("Session loaded")

	return loaded
}

func (s *TokenStore) read(ctx context.Context, tier string, b Backend, key string) string {
	if b == nil {
		return ""
	}
	value, found, err := b.Get(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("tier", tier).Str("key", key).Msg("Failed to read session field")
		return ""
	}
	if !found {
		return ""
	}
	return value
}

// Save replaces the session. All three fields are required.
func (s *TokenStore) Save(ctx context.Context, session Session) error {
	if session.AccessToken == "" || session.RefreshToken == "" || session.UserID == "" {
		return ErrIncompleteSession
	}

	s.mu.Lock()
	s.session = session
	s.mu.Unlock()

	var errs []error
	accepted := false

	if s.durable != nil {
		if err := s.write(ctx, s.durable, session); err != nil {
			s.logger.Warn().Err(err).Msg("Durable session storage unavailable, keeping session in ephemeral storage only")
			s.discardDurable(ctx)
			errs = append(errs, err)
		} else {
			s.setStale(false)
			accepted = true
		}
	}

	if s.ephemeral != nil {
		if err := s.write(ctx, s.ephemeral, session); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to write session to ephemeral storage")
			errs = append(errs, err)
		} else {
			accepted = true
		}
	}

	if accepted {
		return nil
	}
	if len(errs) == 0 {
		return ErrNotPersisted
	}
	return fmt.Errorf("%w: %w", ErrNotPersisted, errors.Join(errs...))
}

func (s *TokenStore) write(ctx context.Context, b Backend, session Session) error {
	for _, key := range sessionKeys {
		if err := b.Set(ctx, key, session.get(key)); err != nil {
			return err
		}
	}
	return nil
}

// discardDurable marks the durable tier stale and removes whatever part of an
// older session it still holds, so later processes do not resurrect it.
func (s *TokenStore) discardDurable(ctx context.Context) {
	s.setStale(true)
	for _, key := range sessionKeys {
		if err := s.durable.Delete(ctx, key); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("Failed to remove stale session field from durable storage")
		}
	}
}

func (s *TokenStore) setStale(stale bool) {
	s.mu.Lock()
	s.stale = stale
	s.mu.Unlock()
}

// Clear removes the session from memory and both backends. It is safe to call
// on an empty store. Memory is always cleared; backend failures are returned.
func (s *TokenStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.session = Session{}
	s.mu.Unlock()

	var errs []error
	if s.durable != nil {
		failed := s.deleteAll(ctx, s.durable, &errs)
		// A durable copy that could not be removed must not be read back
		s.setStale(failed)
	}
	if s.ephemeral != nil {
		s.deleteAll(ctx, s.ephemeral, &errs)
	}

	err := errors.Join(errs...)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to remove session from storage")
	} else {
		s.logger.Debug().Msg("Session cleared")
	}
	return err
}

func (s *TokenStore) deleteAll(ctx context.Context, b Backend, errs *[]error) bool {
	failed := false
	for _, key := range sessionKeys {
		if err := b.Delete(ctx, key); err != nil {
			*errs = append(*errs, err)
			failed = true
		}
	}
	return failed
}

// HasToken reports whether an access token is present after a fresh Load
func (s *TokenStore) HasToken(ctx context.Context) bool {
	return s.Load(ctx).AccessToken != ""
}

// Session returns the in-memory session without consulting the backends
func (s *TokenStore) Session() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.session
}

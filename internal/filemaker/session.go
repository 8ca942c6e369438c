package filemaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dialstack/callbridge/internal/metrics"
)

// DefaultLease is how long a Data API token is trusted before the session
// manager proactively renews it. The token's real lifetime is ~15 minutes of
// idle time; renewing at 13 keeps a margin.
const DefaultLease = 13 * time.Minute

// authClient is the subset of the Data API used for session lifecycle.
type authClient interface {
	Login(ctx context.Context) (string, error)
	Logout(ctx context.Context, token string) error
}

// Session owns the process-wide Data API token and its expiry. Token and
// expiry are always written together under the mutex; concurrent callers may
// still race into redundant logins, which is wasteful but harmless since a
// login simply replaces the token.
type Session struct {
	client authClient
	lease  time.Duration
	logger zerolog.Logger

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewSession creates a session manager. A lease of zero uses DefaultLease.
func NewSession(client authClient, lease time.Duration, logger zerolog.Logger) *Session {
	if lease <= 0 {
		lease = DefaultLease
	}
	return &Session{
		client: client,
		lease:  lease,
		logger: logger,
	}
}

// Login acquires a fresh token and stamps its expiry.
func (s *Session) Login(ctx context.Context) error {
	token, err := s.client.Login(ctx)
	if err != nil {
		metrics.Get().RecordLogin(false)
		return fmt.Errorf("filemaker login failed: %w", err)
	}
	metrics.Get().RecordLogin(true)

	s.mu.Lock()
	s.token = token
	s.expiresAt = time.Now().Add(s.lease)
	s.mu.Unlock()

	s.logger.Debug().Msg("filemaker session refreshed")
	return nil
}

// EnsureValid returns a token that has not passed its lease, logging in
// first when the current one is absent or expired.
func (s *Session) EnsureValid(ctx context.Context) (string, error) {
	s.mu.Lock()
	token := s.token
	valid := token != "" && time.Now().Before(s.expiresAt)
	s.mu.Unlock()

	if valid {
		return token, nil
	}

	if err := s.Login(ctx); err != nil {
		return "", err
	}

	s.mu.Lock()
	token = s.token
	s.mu.Unlock()
	return token, nil
}

// Invalidate drops the local token so the next caller logs in again.
func (s *Session) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.expiresAt = time.Time{}
	s.mu.Unlock()
}

// WithAuth runs op with a valid token. If op reports ErrUnauthorized the
// session is invalidated and the login+op pair is retried exactly once; a
// second authorization failure propagates.
func (s *Session) WithAuth(ctx context.Context, op func(token string) error) error {
	for attempt := 0; ; attempt++ {
		token, err := s.EnsureValid(ctx)
		if err != nil {
			return err
		}

		err = op(token)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrUnauthorized) || attempt >= 1 {
			return err
		}

		s.logger.Warn().Msg("filemaker token rejected, retrying after re-login")
		s.Invalidate()
	}
}

// Logout tears the session down. Best-effort: the local state is cleared
// whether or not the remote call succeeds, and errors are only logged.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	token := s.token
	s.token = ""
	s.expiresAt = time.Time{}
	s.mu.Unlock()

	if token == "" {
		return
	}
	if err := s.client.Logout(ctx, token); err != nil {
		s.logger.Warn().Err(err).Msg("filemaker logout failed")
	}
}

// KeepAlive re-logs-in on a fixed schedule so the session stays warm even
// without webhook traffic. Runs until ctx is cancelled; failures are logged
// and the next tick tries again.
func (s *Session) KeepAlive(ctx context.Context) {
	ticker := time.NewTicker(s.lease)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.lease).Msg("session keepalive started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("session keepalive stopped")
			return
		case <-ticker.C:
			if err := s.Login(ctx); err != nil {
				s.logger.Error().Err(err).Msg("session keepalive login failed")
			}
		}
	}
}

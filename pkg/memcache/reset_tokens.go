package mem

import (
	"context"
	"sync"
	"time"
)

// ResetTokenStore keeps single-use password recovery tokens.
type ResetTokenStore interface {
	Set(ctx context.Context, token string, accountEmail string, ttl time.Duration) error

	// Consume returns the email for token if not expired and removes the token.
	// Returns "" if missing or expired.
	Consume(ctx context.Context, token string) (string, error)
}

type entry struct {
	email     string
	expiresAt time.Time
}

type ResetTokens struct {
	mu   sync.RWMutex
	data map[string]entry
	now  func() time.Time
}

func NewResetTokens() *ResetTokens {
	return &ResetTokens{
		data: make(map[string]entry),
		now:  time.Now,
	}
}

func (s *ResetTokens) Set(_ context.Context, token string, accountEmail string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[token] = entry{
		email:     accountEmail,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

func (s *ResetTokens) Consume(_ context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[token]
	if !ok {
		return "", nil
	}
	delete(s.data, token)
	if s.now().After(e.expiresAt) {
		return "", nil
	}
	return e.email, nil
}

// SweepExpired drops expired tokens and reports how many were removed.
func (s *ResetTokens) SweepExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for token, e := range s.data {
		if now.After(e.expiresAt) {
			delete(s.data, token)
			removed++
		}
	}
	return removed, nil
}

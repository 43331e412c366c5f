package mem

import (
	"context"
	"sync"
	"time"
)

// TokenLedger records confirmation tokens that have already been handed to the reconciler.
// Put is the only admission gate: for a given token exactly one concurrent caller observes true.
type TokenLedger interface {
	Put(ctx context.Context, token string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, token string) (time.Time, bool, error)
	Delete(ctx context.Context, token string) error
	SweepExpired(ctx context.Context) (int, error)
}

type ledgerEntry struct {
	firstSeen time.Time
	expiresAt time.Time
}

type MemoryLedger struct {
	mu   sync.Mutex
	data map[string]ledgerEntry
	now  func() time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		data: make(map[string]ledgerEntry),
		now:  time.Now,
	}
}

func (l *MemoryLedger) Put(_ context.Context, token string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, ok := l.data[token]; ok && now.Before(e.expiresAt) {
		return false, nil
	}
	l.data[token] = ledgerEntry{firstSeen: now, expiresAt: now.Add(ttl)}
	return true, nil
}

func (l *MemoryLedger) Get(_ context.Context, token string) (time.Time, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.data[token]
	if !ok || !l.now().Before(e.expiresAt) {
		return time.Time{}, false, nil
	}
	return e.firstSeen, true, nil
}

func (l *MemoryLedger) Delete(_ context.Context, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.data, token)
	return nil
}

func (l *MemoryLedger) SweepExpired(_ context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for token, e := range l.data {
		if !now.Before(e.expiresAt) {
			delete(l.data, token)
			removed++
		}
	}
	return removed, nil
}

func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.data)
}

var _ TokenLedger = (*MemoryLedger)(nil)

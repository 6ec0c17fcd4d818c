package revocation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// DefaultCapacity bounds the in-memory store. Revoked tokens self-expire via
// their exp claim, so the list only needs to cover identifiers younger than
// the token TTL; size it relative to that TTL in production.
const DefaultCapacity = 100

var ErrInvalidJTI = errors.New("revocation: jti is required")

// Store records revoked token identifiers. Implementations must make Revoke
// idempotent and safe for concurrent callers; the interface assumes nothing
// about the backing medium so shared deployments can use a database or cache.
type Store interface {
	Revoke(ctx context.Context, jti string) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Entry is one revocation record.
type Entry struct {
	JTI       string
	RevokedAt time.Time
}

// Memory is a capacity-bounded Store with FIFO eviction. Evicting a
// revocation before its token's natural expiry re-admits that token; the
// trade-off is accepted because capacity is sized against the token TTL.
type Memory struct {
	mu       sync.RWMutex
	capacity int
	order    []string
	entries  map[string]Entry
	now      func() time.Time
}

// MemoryOption configures Memory.
type MemoryOption func(*Memory)

// WithCapacity overrides the default entry bound.
func WithCapacity(n int) MemoryOption {
	return func(m *Memory) {
		if n > 0 {
			m.capacity = n
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) MemoryOption {
	return func(m *Memory) {
		if fn != nil {
			m.now = fn
		}
	}
}

// NewMemory creates an empty in-memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		capacity: DefaultCapacity,
		entries:  make(map[string]Entry),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var _ Store = (*Memory)(nil)

// Revoke inserts the identifier, evicting the oldest entry beyond capacity.
// Revoking an already-revoked identifier is a no-op.
func (m *Memory) Revoke(ctx context.Context, jti string) error {
	jti = strings.TrimSpace(jti)
	if jti == "" {
		return ErrInvalidJTI
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[jti]; ok {
		return nil
	}
	m.entries[jti] = Entry{JTI: jti, RevokedAt: m.now().UTC()}
	m.order = append(m.order, jti)
	for len(m.order) > m.capacity {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.entries, oldest)
	}
	return nil
}

// IsRevoked reports whether the identifier is currently recorded.
func (m *Memory) IsRevoked(ctx context.Context, jti string) (bool, error) {
	jti = strings.TrimSpace(jti)
	if jti == "" {
		return false, ErrInvalidJTI
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[jti]
	return ok, nil
}

// Len reports the number of recorded identifiers.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

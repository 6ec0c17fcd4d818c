package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"icomnet.org/internal/token"
)

var (
	// ErrNoSession means the slot is empty: nobody is logged in.
	ErrNoSession = errors.New("session: no session")
	// ErrVersionConflict means a compare-and-set save lost to a concurrent
	// writer.
	ErrVersionConflict = errors.New("session: version conflict")
)

// Session is one authenticated slot: the signed token, when it was minted,
// and the claims it carries.
type Session struct {
	Token     string       `json:"token"`
	CreatedAt time.Time    `json:"created_at"`
	Claims    token.Claims `json:"claims"`
}

// Record is a stored session with its write version. Versions grow
// monotonically per key and back the compare-and-set discipline two
// concurrent refreshes converge through.
type Record struct {
	Session Session
	Version int64
}

// Store persists session slots. Implementations must make Save atomic with
// respect to the version check so that concurrent writers to one key resolve
// to a single winner.
type Store interface {
	// Load returns the record under key, or ErrNoSession.
	Load(ctx context.Context, key string) (Record, error)
	// Save writes sess when the stored version still equals expect (0 for an
	// empty slot). It returns ErrVersionConflict otherwise.
	Save(ctx context.Context, key string, sess Session, expect int64) (Record, error)
	// Replace writes sess unconditionally, superseding any stored record.
	Replace(ctx context.Context, key string, sess Session) (Record, error)
	// Delete clears the slot. Deleting an empty slot is a no-op.
	Delete(ctx context.Context, key string) error
}

// MemoryStore is the in-process Store.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Load(ctx context.Context, key string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return Record{}, ErrNoSession
	}
	return rec, nil
}

func (s *MemoryStore) Save(ctx context.Context, key string, sess Session, expect int64) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.records[key].Version
	if current != expect {
		return Record{}, ErrVersionConflict
	}
	rec := Record{Session: sess, Version: current + 1}
	s.records[key] = rec
	return rec, nil
}

func (s *MemoryStore) Replace(ctx context.Context, key string, sess Session) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := Record{Session: sess, Version: s.records[key].Version + 1}
	s.records[key] = rec
	return rec, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

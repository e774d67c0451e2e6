package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory. Expired records are dropped
// lazily on read and by DeleteExpired.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Record
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore creates an in-memory store.
func NewMemoryStore(ttl time.Duration, now func() time.Time) *MemoryStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		sessions: make(map[string]*Record),
		ttl:      ttl,
		now:      now,
	}
}

func (s *MemoryStore) expired(rec *Record) bool {
	return s.now().Sub(rec.UpdatedAt) > s.ttl
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, contextID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[contextID]
	if !ok {
		return nil, nil
	}
	if s.expired(rec) {
		delete(s.sessions, contextID)
		return nil, nil
	}
	return rec.Clone(), nil
}

// Create implements Store.
func (s *MemoryStore) Create(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[rec.ContextID]; ok && !s.expired(existing) {
		return ErrExists
	}
	s.sessions[rec.ContextID] = rec.Clone()
	return nil
}

// Put implements Store.
func (s *MemoryStore) Put(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[rec.ContextID] = rec.Clone()
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, contextID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, contextID)
	return nil
}

// DeleteExpired implements Expirer.
func (s *MemoryStore) DeleteExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, rec := range s.sessions {
		if s.expired(rec) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = make(map[string]*Record)
	return nil
}

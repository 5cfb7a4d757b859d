package captcha

import (
	"context"
	"sync"
	"time"
)

// Store persists challenges between the request that shows one and the
// request that answers it. Get returns ErrNotFound for unknown or expired IDs.
type Store interface {
	Save(ctx context.Context, c *Challenge) error
	Get(ctx context.Context, id string) (*Challenge, error)
	Delete(ctx context.Context, id string) error
}

// MemoryStore keeps challenges in process memory. Expired entries are
// dropped lazily on access and in bulk by Sweep.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Challenge
	now   func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]Challenge), now: time.Now}
}

func (s *MemoryStore) Save(_ context.Context, c *Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	cp.Image = append([]byte(nil), c.Image...)
	s.items[c.ID] = cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Challenge, error) {
	s.mu.RLock()
	c, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if c.Expired(s.now()) {
		s.dropExpired(id)
		return nil, ErrNotFound
	}
	return &c, nil
}

// dropExpired deletes id only if the stored entry is still expired; a Save
// that landed after the read must survive.
func (s *MemoryStore) dropExpired(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.items[id]; ok && c.Expired(s.now()) {
		delete(s.items, id)
	}
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

// Sweep removes every expired challenge and returns how many were dropped.
func (s *MemoryStore) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, c := range s.items {
		if c.Expired(now) {
			delete(s.items, id)
			n++
		}
	}
	return n
}

// Len reports the number of stored challenges, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

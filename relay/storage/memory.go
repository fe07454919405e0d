package storage

import (
	"context"
	"sync"

	"github.com/Laisky/errors/v2"
)

// MemoryStore is an in-process ObjectStore. It backs STORE_BACKEND=memory and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (s *MemoryStore) Put(ctx context.Context, loc Location, body []byte) error {
	if err := ctx.Err(); err != nil {
		return errors.WithStack(err)
	}
	if err := loc.Validate(); err != nil {
		return errors.Wrap(err, "put object")
	}

	copied := make([]byte, len(body))
	copy(copied, body)

	s.mu.Lock()
	s.objects[loc.String()] = copied
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, loc Location) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	s.mu.RLock()
	body, ok := s.objects[loc.String()]
	s.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "get %s", loc)
	}

	copied := make([]byte, len(body))
	copy(copied, body)
	return copied, nil
}

// Delete removes an object. Missing objects are not an error.
func (s *MemoryStore) Delete(loc Location) {
	s.mu.Lock()
	delete(s.objects, loc.String())
	s.mu.Unlock()
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

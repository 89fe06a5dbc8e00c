package datastore

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemStore keeps entities in process memory. It backs tests and demo
// deployments; every entity is cloned on the way in and out so callers never
// share mutable state with the store.
type MemStore struct {
	mu    sync.RWMutex
	kinds map[string]map[string]Entity
}

// NewMemStore constructs an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{kinds: make(map[string]map[string]Entity)}
}

func (s *MemStore) Get(ctx context.Context, kind, key string) (Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entity, ok := s.kinds[kind][key]
	if !ok {
		return Entity{}, ErrNoSuchEntity
	}
	return entity.Clone(), nil
}

func (s *MemStore) Put(ctx context.Context, entity Entity) (Entity, error) {
	if entity.Key == "" {
		entity.Key = uuid.NewString()
	}
	stored := entity.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.kinds[stored.Kind]
	if !ok {
		bucket = make(map[string]Entity)
		s.kinds[stored.Kind] = bucket
	}
	bucket[stored.Key] = stored
	return entity, nil
}

func (s *MemStore) Delete(ctx context.Context, kind, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.kinds[kind]
	if !ok {
		return ErrNoSuchEntity
	}
	if _, ok := bucket[key]; !ok {
		return ErrNoSuchEntity
	}
	delete(bucket, key)
	return nil
}

func (s *MemStore) Count(ctx context.Context, q Query) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return countMatches(s.scanLocked(q.Kind), q.Filters), nil
}

func (s *MemStore) Run(ctx context.Context, q Query) ([]Entity, error) {
	s.mu.RLock()
	entities := s.scanLocked(q.Kind)
	s.mu.RUnlock()
	page := applyQuery(entities, q)
	out := make([]Entity, len(page))
	for i, e := range page {
		out[i] = e.Clone()
	}
	return out, nil
}

func (s *MemStore) Close() error {
	return nil
}

func (s *MemStore) scanLocked(kind string) []Entity {
	bucket := s.kinds[kind]
	entities := make([]Entity, 0, len(bucket))
	for _, e := range bucket {
		entities = append(entities, e)
	}
	return entities
}

var _ Store = (*MemStore)(nil)

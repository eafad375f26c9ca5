// Package memstore is an in-memory store.Store backend: a mutex-guarded
// map of namespace to key/value map. It is the default backend for tests
// and for callers that don't need durability.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/kvindex/ihashmap/internal/store"
	"github.com/kvindex/ihashmap/internal/types"
)

// Store implements store.Store entirely in memory.
type Store struct {
	mu   sync.RWMutex
	data map[types.Namespace]map[string]interface{}
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{data: make(map[types.Namespace]map[string]interface{})}
}

var _ store.Store = (*Store)(nil)

func (s *Store) Get(_ context.Context, ns types.Namespace, key string) (interface{}, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bucket, ok := s.data[ns]
	if !ok {
		return nil, false, nil
	}
	v, ok := bucket[key]
	return v, ok, nil
}

func (s *Store) Set(_ context.Context, ns types.Namespace, key string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.data[ns]
	if !ok {
		bucket = make(map[string]interface{})
		s.data[ns] = bucket
	}
	bucket[key] = value
	return nil
}

func (s *Store) Update(_ context.Context, ns types.Namespace, key string, partial map[string]interface{}, fields []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.data[ns]
	if !ok {
		bucket = make(map[string]interface{})
		s.data[ns] = bucket
	}

	existing, _ := bucket[key].(map[string]interface{})
	merged := make(map[string]interface{}, len(existing)+len(partial))
	for k, v := range existing {
		merged[k] = v
	}

	apply := partial
	if len(fields) > 0 {
		apply = make(map[string]interface{}, len(fields))
		for _, f := range fields {
			if v, ok := partial[f]; ok {
				apply[f] = v
			}
		}
	}
	for k, v := range apply {
		merged[k] = v
	}
	bucket[key] = merged
	return nil
}

func (s *Store) Delete(_ context.Context, ns types.Namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.data[ns]
	if !ok {
		return store.WrapErrorf("delete", types.ErrNotFound)
	}
	if _, ok := bucket[key]; !ok {
		return store.WrapErrorf("delete", types.ErrNotFound)
	}
	delete(bucket, key)
	return nil
}

func (s *Store) Keys(_ context.Context, ns types.Namespace) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bucket := s.data[ns]
	out := make([]string, 0, len(bucket))
	for k := range bucket {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) Pop(_ context.Context, ns types.Namespace, key string) (interface{}, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.data[ns]
	if !ok {
		return nil, false, nil
	}
	v, ok := bucket[key]
	if ok {
		delete(bucket, key)
	}
	return v, ok, nil
}

func (s *Store) Close() error { return nil }

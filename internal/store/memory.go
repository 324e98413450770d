package store

import (
	"context"
	"sort"
	"sync"

	"github.com/sells-group/irs990-cli/internal/model"
)

// MemoryStore is an in-process CacheStore. Records are kept encoded so each
// Load hands back a private copy.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

func (s *MemoryStore) Load(_ context.Context, ein string) (*model.Record, error) {
	s.mu.RLock()
	data, ok := s.docs[ein]
	s.mu.RUnlock()
	if !ok {
		return nil, miss("memory store", ein)
	}
	return model.DecodeRecord(data)
}

func (s *MemoryStore) Store(_ context.Context, ein string, rec *model.Record) error {
	data, err := model.EncodeRecord(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.docs[ein] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Exists(_ context.Context, ein string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.docs[ein]
	return ok, nil
}

func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	eins := make([]string, 0, len(s.docs))
	for ein := range s.docs {
		eins = append(eins, ein)
	}
	sort.Strings(eins)
	return eins, nil
}

func (s *MemoryStore) Close() error { return nil }

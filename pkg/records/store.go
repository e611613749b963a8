package records

import (
	"context"
	"sort"
	"sync"
)

// Store persists records grouped in named collections. Records keep the
// order in which they were first saved.
type Store interface {
	Load(ctx context.Context, collection string) ([]*Record, error)
	// Save inserts new records and replaces existing ones by ID.
	Save(ctx context.Context, collection string, recs []*Record) error
	Collections(ctx context.Context) ([]string, error)
	Close() error
}

// MemoryStore keeps records in process. Loaded records are copies, so
// changes are only seen after Save.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string][]*Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string][]*Record)}
}

func (s *MemoryStore) Load(ctx context.Context, collection string) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.collections[collection]
	out := make([]*Record, len(src))
	for i, r := range src {
		out[i] = r.Clone()
	}
	return out, nil
}

func (s *MemoryStore) Save(ctx context.Context, collection string, recs []*Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.collections[collection]
	index := make(map[string]int, len(existing))
	for i, r := range existing {
		index[r.ID] = i
	}
	for _, r := range recs {
		if i, ok := index[r.ID]; ok {
			existing[i] = r.Clone()
			continue
		}
		index[r.ID] = len(existing)
		existing = append(existing, r.Clone())
	}
	s.collections[collection] = existing
	return nil
}

func (s *MemoryStore) Collections(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)

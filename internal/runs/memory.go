package runs

import (
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
)

type InMemoryStore struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]*Run
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{runs: make(map[uuid.UUID]*Run)}
}

func (s *InMemoryStore) Save(run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("run already exists: %s", run.ID)
	}
	s.runs[run.ID] = run.clone()
	return nil
}

func (s *InMemoryStore) Update(run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; !exists {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.ID)
	}
	s.runs[run.ID] = run.clone()
	return nil
}

func (s *InMemoryStore) Get(id uuid.UUID) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, exists := s.runs[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run.clone(), nil
}

func (s *InMemoryStore) List(filter Filter) ([]*Run, int, error) {
	s.mu.RLock()
	matched := make([]*Run, 0, len(s.runs))
	for _, run := range s.runs {
		if filter.matches(run) {
			matched = append(matched, run.clone())
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(matched, func(a, b *Run) int {
		if c := b.SubmittedAt.Compare(a.SubmittedAt); c != 0 {
			return c
		}
		return slices.Compare(b.ID[:], a.ID[:])
	})

	total := len(matched)
	start := min(max(filter.Offset, 0), total)
	end := total
	if filter.Limit > 0 {
		end = min(start+filter.Limit, total)
	}
	return matched[start:end], total, nil
}

func (s *InMemoryStore) Delete(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[id]; !exists {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	delete(s.runs, id)
	return nil
}

func (s *InMemoryStore) Close() error {
	return nil
}

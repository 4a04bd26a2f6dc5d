package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/nemanja-m/ccrender/internal/render/core"
)

type InMemoryRunStore struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]*core.Run
}

func NewInMemoryRunStore() *InMemoryRunStore {
	return &InMemoryRunStore{
		runs: make(map[uuid.UUID]*core.Run),
	}
}

func (s *InMemoryRunStore) SaveRun(ctx context.Context, run *core.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
	return nil
}

func (s *InMemoryRunStore) GetRun(ctx context.Context, id uuid.UUID) (*core.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, exists := s.runs[id]
	if !exists {
		return nil, core.ErrRunNotFound
	}
	return run, nil
}

// ListRuns returns runs newest first along with the total number matching the filter.
func (s *InMemoryRunStore) ListRuns(ctx context.Context, filter core.RunFilter) ([]*core.Run, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*core.Run, 0, len(s.runs))
	for _, run := range s.runs {
		if filter.State != nil && run.State != *filter.State {
			continue
		}
		matched = append(matched, run)
	}

	sortNewestFirst(matched)
	return paginate(matched, filter), len(matched), nil
}

func sortNewestFirst(runs []*core.Run) {
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].ID.String() < runs[j].ID.String()
		}
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
}

func paginate(runs []*core.Run, filter core.RunFilter) []*core.Run {
	start := filter.Offset
	if start < 0 {
		start = 0
	}
	if start >= len(runs) {
		return []*core.Run{}
	}
	end := len(runs)
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}
	return runs[start:end]
}

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/portfolio-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu     sync.RWMutex
	runs   map[string]*model.Run
	events map[string][]model.StoredEvent
	rows   map[string][]model.OutputRow
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:   make(map[string]*model.Run),
		events: make(map[string][]model.StoredEvent),
		rows:   make(map[string][]model.OutputRow),
	}
}

func (s *MemoryStore) CreateRun(_ context.Context, run *model.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; ok {
		return fmt.Errorf("run %s already exists", run.ID)
	}
	// Store a copy to avoid external mutation.
	r := *run
	s.runs[run.ID] = &r
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (*model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	out := *r
	return &out, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.Run, 0, len(s.runs))
	for _, r := range s.runs {
		runs = append(runs, *r)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].CreatedAt.After(runs[j].CreatedAt) })
	return runs, nil
}

func (s *MemoryStore) ResetRun(_ context.Context, id string, initialCash decimal.Decimal, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	r.InitialCash = initialCash
	r.EventCount = 0
	r.ResetAt = at
	delete(s.events, id)
	delete(s.rows, id)
	return nil
}

func (s *MemoryStore) Append(_ context.Context, ev *model.StoredEvent, row *model.OutputRow) error {
	if err := checkAppend(ev, row); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.runs[ev.RunID]
	if !ok {
		return fmt.Errorf("%w: run %s", ErrNotFound, ev.RunID)
	}
	s.events[ev.RunID] = append(s.events[ev.RunID], *ev)
	s.rows[ev.RunID] = append(s.rows[ev.RunID], *row)
	r.EventCount++
	return nil
}

func (s *MemoryStore) ListEvents(_ context.Context, runID string) ([]model.StoredEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.runs[runID]; !ok {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, runID)
	}
	events := s.events[runID]
	out := make([]model.StoredEvent, len(events))
	copy(out, events)
	return out, nil
}

func (s *MemoryStore) ListRows(_ context.Context, runID string, offset, limit int) ([]model.OutputRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.runs[runID]; !ok {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, runID)
	}
	rows := s.rows[runID]
	lo, hi := page(len(rows), offset, limit)
	out := make([]model.OutputRow, hi-lo)
	copy(out, rows[lo:hi])
	return out, nil
}

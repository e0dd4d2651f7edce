package portfolio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/atmx/portfolio-engine/internal/engine"
	"github.com/atmx/portfolio-engine/internal/metrics"
	"github.com/atmx/portfolio-engine/internal/model"
	"github.com/atmx/portfolio-engine/internal/store"
)

// session is one run's in-memory engine. All access to eng happens with mu
// held, so events for a run are processed by a single writer.
type session struct {
	mu       sync.Mutex
	eng      *engine.Engine // nil until built or after a failed write
	lastUsed time.Time
	evicted  bool
}

// Sessions keeps engines for recently used runs. The store is the source of
// truth: a run without a live engine gets one rebuilt by replaying its
// stored events.
type Sessions struct {
	store store.Store
	opts  engine.Options
	now   func() time.Time

	mu    sync.Mutex
	byRun map[string]*session
	cron  *cron.Cron
}

// NewSessions creates an empty session registry.
func NewSessions(st store.Store, opts engine.Options) *Sessions {
	return &Sessions{
		store: st,
		opts:  opts,
		now:   time.Now,
		byRun: make(map[string]*session),
	}
}

// acquire returns the run's session with its lock held and a ready engine.
// Callers must release it.
func (s *Sessions) acquire(ctx context.Context, run *model.Run) (*session, error) {
	for {
		s.mu.Lock()
		sess, ok := s.byRun[run.ID]
		if !ok {
			sess = &session{}
			s.byRun[run.ID] = sess
			metrics.ActiveSessions.Set(float64(len(s.byRun)))
		}
		s.mu.Unlock()

		sess.mu.Lock()
		if sess.evicted {
			// Lost a race with the janitor; start over with a fresh entry.
			sess.mu.Unlock()
			continue
		}
		if sess.eng == nil {
			eng, err := s.rebuild(ctx, run)
			if err != nil {
				sess.mu.Unlock()
				return nil, err
			}
			sess.eng = eng
		}
		sess.lastUsed = s.now()
		return sess, nil
	}
}

func (s *Sessions) release(sess *session) {
	sess.lastUsed = s.now()
	sess.mu.Unlock()
}

// start installs a freshly reset engine for a new run.
func (s *Sessions) start(run *model.Run) {
	eng := engine.New(s.opts)
	eng.Reset(run.InitialCash)

	s.mu.Lock()
	s.byRun[run.ID] = &session{eng: eng, lastUsed: s.now()}
	metrics.ActiveSessions.Set(float64(len(s.byRun)))
	s.mu.Unlock()
}

// rebuild replays the run's stored events through a new engine.
func (s *Sessions) rebuild(ctx context.Context, run *model.Run) (*engine.Engine, error) {
	events, err := s.store.ListEvents(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	eng := engine.New(s.opts)
	eng.Reset(run.InitialCash)
	for _, ev := range events {
		if _, err := eng.Process(ev.Event); err != nil {
			return nil, fmt.Errorf("replay run %s event %d: %w", run.ID, ev.Seq, err)
		}
	}
	metrics.SessionRebuilds.Inc()
	slog.Info("session rebuilt", "run_id", run.ID, "events", len(events))
	return eng, nil
}

// Evict drops engines idle for longer than idle. Sessions in use are
// skipped. It returns the number evicted.
func (s *Sessions) Evict(idle time.Duration) int {
	cutoff := s.now().Add(-idle)

	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.byRun {
		if !sess.mu.TryLock() {
			continue
		}
		if sess.lastUsed.Before(cutoff) {
			sess.evicted = true
			sess.eng = nil
			delete(s.byRun, id)
			n++
			slog.Info("session evicted", "run_id", id)
		}
		sess.mu.Unlock()
	}
	metrics.SessionEvictions.Add(float64(n))
	metrics.ActiveSessions.Set(float64(len(s.byRun)))
	return n
}

// Len reports the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byRun)
}

// StartJanitor evicts sessions idle for longer than idle on the given cron
// schedule (standard five-field syntax or descriptors such as "@every 5m").
func (s *Sessions) StartJanitor(schedule string, idle time.Duration) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { s.Evict(idle) }); err != nil {
		return fmt.Errorf("janitor schedule %q: %w", schedule, err)
	}
	c.Start()

	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()
	slog.Info("session janitor started", "schedule", schedule, "idle_ttl", idle.String())
	return nil
}

// Stop halts the janitor and waits for a running eviction to finish.
func (s *Sessions) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

package portfolio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/portfolio-engine/internal/engine"
	"github.com/atmx/portfolio-engine/internal/model"
	"github.com/atmx/portfolio-engine/internal/store"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newSessionsEnv(t *testing.T) (*Sessions, *store.MemoryStore, *fakeClock, *model.Run) {
	t.Helper()
	ms := store.NewMemoryStore()
	clock := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := NewSessions(ms, engine.DefaultOptions())
	s.now = clock.now

	run := &model.Run{ID: "run-1", InitialCash: decimal.NewFromInt(200), CreatedAt: clock.t, ResetAt: clock.t}
	if err := ms.CreateRun(context.Background(), run); err != nil {
		t.Fatal(err)
	}
	s.start(run)
	return s, ms, clock, run
}

// process runs an event through the session and persists it the way the
// service does.
func process(t *testing.T, s *Sessions, ms *store.MemoryStore, run *model.Run, ev model.TradeEvent) model.OutputRow {
	t.Helper()
	ctx := context.Background()
	sess, err := s.acquire(ctx, run)
	if err != nil {
		t.Fatal(err)
	}
	defer s.release(sess)
	row, err := sess.eng.Process(ev)
	if err != nil {
		t.Fatal(err)
	}
	if err := ms.Append(ctx, &model.StoredEvent{RunID: run.ID, Seq: row.Seq, Event: ev}, &row); err != nil {
		t.Fatal(err)
	}
	return row
}

func buy(ticker string, price, qty int64) model.TradeEvent {
	return model.TradeEvent{Ticker: ticker, Side: model.Buy, Price: decimal.NewFromInt(price), Quantity: decimal.NewFromInt(qty)}
}

func TestSessions_EvictAndRebuild(t *testing.T) {
	s, ms, clock, run := newSessionsEnv(t)
	process(t, s, ms, run, buy("AAPL", 10, 10))
	process(t, s, ms, run, buy("MSFT", 20, 2))

	clock.advance(10 * time.Minute)
	if n := s.Evict(30 * time.Minute); n != 0 {
		t.Fatalf("evicted %d sessions before the idle ttl", n)
	}
	clock.advance(30 * time.Minute)
	if n := s.Evict(30 * time.Minute); n != 1 {
		t.Fatalf("evicted %d, want 1", n)
	}
	if s.Len() != 0 {
		t.Fatalf("sessions left: %d", s.Len())
	}

	// The next event sees a rebuilt engine with both earlier positions.
	row := process(t, s, ms, run, model.TradeEvent{Ticker: "AAPL", Side: model.Hold, Price: decimal.NewFromInt(11)})
	if row.Seq != 3 {
		t.Errorf("seq after rebuild: got %d, want 3", row.Seq)
	}
	if row.OpenPositions != "AAPL 10, MSFT 2" {
		t.Errorf("open positions after rebuild: %q", row.OpenPositions)
	}
	if !row.AvailableBalance.Equal(decimal.NewFromInt(60)) {
		t.Errorf("available balance after rebuild: %s", row.AvailableBalance)
	}
}

func TestSessions_EvictSkipsBusySessions(t *testing.T) {
	s, _, clock, run := newSessionsEnv(t)
	sess, err := s.acquire(context.Background(), run)
	if err != nil {
		t.Fatal(err)
	}
	clock.advance(time.Hour)
	if n := s.Evict(time.Minute); n != 0 {
		t.Errorf("evicted a session in use")
	}
	s.release(sess)
	if n := s.Evict(0); n != 0 {
		t.Errorf("release refreshes last use; evicted %d", n)
	}
}

func TestSessions_RebuildMissingRun(t *testing.T) {
	s, _, _, _ := newSessionsEnv(t)
	_, err := s.acquire(context.Background(), &model.Run{ID: "ghost"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSessions_StartJanitor(t *testing.T) {
	s, _, _, _ := newSessionsEnv(t)
	if err := s.StartJanitor("not a schedule", time.Minute); err == nil {
		t.Error("expected schedule error")
	}
	if err := s.StartJanitor("@every 1h", time.Minute); err != nil {
		t.Fatal(err)
	}
	s.Stop()
	s.Stop()
}

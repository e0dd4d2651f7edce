// Package store defines persistence for portfolio runs. A run keeps its
// accepted events (the replay log) and the output rows they produced.
// Implementations include PostgreSQL, SQLite, in-memory (for development
// and tests) and a Redis read-through cache that wraps a durable backend.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/portfolio-engine/internal/model"
)

var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface. Events and rows are append-only
// between resets; Seq is 1-based and contiguous within a run.
type Store interface {
	// --- Runs ---

	CreateRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)

	// ListRuns returns all runs, newest first.
	ListRuns(ctx context.Context) ([]model.Run, error)

	// ResetRun drops every event and row of the run and restarts it with
	// initialCash.
	ResetRun(ctx context.Context, id string, initialCash decimal.Decimal, at time.Time) error

	// --- Replay log and output rows ---

	// Append stores an accepted event together with the row it produced and
	// bumps the run's event count. Both are written or neither is.
	Append(ctx context.Context, ev *model.StoredEvent, row *model.OutputRow) error
	ListEvents(ctx context.Context, runID string) ([]model.StoredEvent, error)

	// ListRows returns rows in Seq order starting at offset. limit <= 0
	// returns everything after offset.
	ListRows(ctx context.Context, runID string, offset, limit int) ([]model.OutputRow, error)
}

// checkAppend rejects a row that does not belong to the event.
func checkAppend(ev *model.StoredEvent, row *model.OutputRow) error {
	if row.Seq != ev.Seq {
		return fmt.Errorf("store: row seq %d does not match event seq %d", row.Seq, ev.Seq)
	}
	return nil
}

// page clamps [offset, offset+limit) to n items.
func page(n, offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if offset > n {
		offset = n
	}
	end := n
	if limit > 0 && offset+limit < n {
		end = offset + limit
	}
	return offset, end
}

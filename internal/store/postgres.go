package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/atmx/portfolio-engine/internal/model"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	initial_cash NUMERIC NOT NULL,
	event_count  INTEGER NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL,
	reset_at     TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS run_events (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq    INTEGER NOT NULL,
	event  JSONB NOT NULL,
	PRIMARY KEY (run_id, seq)
);
CREATE TABLE IF NOT EXISTS run_rows (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq    INTEGER NOT NULL,
	row    JSONB NOT NULL,
	PRIMARY KEY (run_id, seq)
);`

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Initial cash is stored as NUMERIC for exact decimal precision; events and
// rows are JSONB documents keyed by (run_id, seq).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresSchema)
	return err
}

func (s *PostgresStore) CreateRun(ctx context.Context, r *model.Run) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, initial_cash, event_count, created_at, reset_at)
		 VALUES ($1, $2::NUMERIC, $3, $4, $5)`,
		r.ID, r.InitialCash.String(), r.EventCount, r.CreatedAt, r.ResetAt,
	)
	return err
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	var r model.Run
	var cash string
	err := s.pool.QueryRow(ctx,
		`SELECT id, initial_cash::TEXT, event_count, created_at, reset_at
		 FROM runs WHERE id = $1`, id).
		Scan(&r.ID, &cash, &r.EventCount, &r.CreatedAt, &r.ResetAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	r.InitialCash, _ = decimal.NewFromString(cash)
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context) ([]model.Run, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, initial_cash::TEXT, event_count, created_at, reset_at
		 FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var cash string
		if err := rows.Scan(&r.ID, &cash, &r.EventCount, &r.CreatedAt, &r.ResetAt); err != nil {
			return nil, err
		}
		r.InitialCash, _ = decimal.NewFromString(cash)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *PostgresStore) ResetRun(ctx context.Context, id string, initialCash decimal.Decimal, at time.Time) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE runs SET initial_cash = $2::NUMERIC, event_count = 0, reset_at = $3 WHERE id = $1`,
			id, initialCash.String(), at)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: run %s", ErrNotFound, id)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM run_events WHERE run_id = $1`, id); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `DELETE FROM run_rows WHERE run_id = $1`, id)
		return err
	})
}

func (s *PostgresStore) Append(ctx context.Context, ev *model.StoredEvent, row *model.OutputRow) error {
	if err := checkAppend(ev, row); err != nil {
		return err
	}
	evData, err := json.Marshal(ev.Event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	rowData, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode row: %w", err)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE runs SET event_count = event_count + 1 WHERE id = $1`, ev.RunID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: run %s", ErrNotFound, ev.RunID)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO run_events (run_id, seq, event) VALUES ($1, $2, $3)`,
			ev.RunID, ev.Seq, evData)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO run_rows (run_id, seq, row) VALUES ($1, $2, $3)`,
			ev.RunID, row.Seq, rowData)
		return err
	})
}

func (s *PostgresStore) ListEvents(ctx context.Context, runID string) ([]model.StoredEvent, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT seq, event FROM run_events WHERE run_id = $1 ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(runID, rows)
}

func (s *PostgresStore) ListRows(ctx context.Context, runID string, offset, limit int) ([]model.OutputRow, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	// LIMIT ALL when limit <= 0.
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT row FROM run_rows WHERE run_id = $1 ORDER BY seq OFFSET $2 LIMIT $3`,
		runID, offset, lim)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

// sqlRows is the subset shared by pgx.Rows and *sql.Rows.
type sqlRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanEvents(runID string, rows sqlRows) ([]model.StoredEvent, error) {
	var events []model.StoredEvent
	for rows.Next() {
		var data []byte
		ev := model.StoredEvent{RunID: runID}
		if err := rows.Scan(&ev.Seq, &data); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &ev.Event); err != nil {
			return nil, fmt.Errorf("decode event %d: %w", ev.Seq, err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func scanRows(rows sqlRows) ([]model.OutputRow, error) {
	var out []model.OutputRow
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r model.OutputRow
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("decode row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

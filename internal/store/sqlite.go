package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/atmx/portfolio-engine/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	initial_cash TEXT NOT NULL,
	event_count  INTEGER NOT NULL DEFAULT 0,
	created_at   TIMESTAMP NOT NULL,
	reset_at     TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS run_events (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq    INTEGER NOT NULL,
	event  BLOB NOT NULL,
	PRIMARY KEY (run_id, seq)
);
CREATE TABLE IF NOT EXISTS run_rows (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq    INTEGER NOT NULL,
	row    BLOB NOT NULL,
	PRIMARY KEY (run_id, seq)
);`

// SQLiteStore implements Store on a single SQLite file. Decimals are kept as
// TEXT; events and rows as JSON.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies
// the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) CreateRun(ctx context.Context, r *model.Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, initial_cash, event_count, created_at, reset_at) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.InitialCash.String(), r.EventCount, r.CreatedAt.UTC(), r.ResetAt.UTC())
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(sc rowScanner) (model.Run, error) {
	var r model.Run
	var cash string
	if err := sc.Scan(&r.ID, &cash, &r.EventCount, &r.CreatedAt, &r.ResetAt); err != nil {
		return r, err
	}
	var err error
	if r.InitialCash, err = decimal.NewFromString(cash); err != nil {
		return r, fmt.Errorf("decode initial cash %q: %w", cash, err)
	}
	return r, nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT id, initial_cash, event_count, created_at, reset_at FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return &r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context) ([]model.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, initial_cash, event_count, created_at, reset_at FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func mustAffect(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	return nil
}

func (s *SQLiteStore) ResetRun(ctx context.Context, id string, initialCash decimal.Decimal, at time.Time) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE runs SET initial_cash = ?, event_count = 0, reset_at = ? WHERE id = ?`,
			initialCash.String(), at.UTC(), id)
		if err != nil {
			return err
		}
		if err := mustAffect(res, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM run_events WHERE run_id = ?`, id); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM run_rows WHERE run_id = ?`, id)
		return err
	})
}

func (s *SQLiteStore) Append(ctx context.Context, ev *model.StoredEvent, row *model.OutputRow) error {
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
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE runs SET event_count = event_count + 1 WHERE id = ?`, ev.RunID)
		if err != nil {
			return err
		}
		if err := mustAffect(res, ev.RunID); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_events (run_id, seq, event) VALUES (?, ?, ?)`, ev.RunID, ev.Seq, evData)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_rows (run_id, seq, row) VALUES (?, ?, ?)`, ev.RunID, row.Seq, rowData)
		return err
	})
}

func (s *SQLiteStore) ListEvents(ctx context.Context, runID string) ([]model.StoredEvent, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, event FROM run_events WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(runID, rows)
}

func (s *SQLiteStore) ListRows(ctx context.Context, runID string, offset, limit int) ([]model.OutputRow, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT row FROM run_rows WHERE run_id = ? ORDER BY seq LIMIT ? OFFSET ?`, runID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

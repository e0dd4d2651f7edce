package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/atmx/portfolio-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL or SQLite) with a Redis
// read-through cache. Writes go to the primary store and invalidate the
// cache; reads check Redis first then fall back to the primary.
//
// Run metadata is cached as JSON. Ledger pages are cached as msgpack and
// indexed per run so that an append or reset drops every page at once.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreateRun(ctx context.Context, r *model.Run) error {
	if err := s.primary.CreateRun(ctx, r); err != nil {
		return err
	}
	s.cacheRun(ctx, r)
	return nil
}

func (s *CachedStore) ResetRun(ctx context.Context, id string, initialCash decimal.Decimal, at time.Time) error {
	if err := s.primary.ResetRun(ctx, id, initialCash, at); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *CachedStore) Append(ctx context.Context, ev *model.StoredEvent, row *model.OutputRow) error {
	if err := s.primary.Append(ctx, ev, row); err != nil {
		return err
	}
	// Event count and ledger pages changed.
	s.invalidate(ctx, ev.RunID)
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	data, err := s.rdb.Get(ctx, runKey(id)).Bytes()
	if err == nil {
		var r model.Run
		if json.Unmarshal(data, &r) == nil {
			return &r, nil
		}
	}

	r, err := s.primary.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheRun(ctx, r)
	return r, nil
}

func (s *CachedStore) ListRows(ctx context.Context, runID string, offset, limit int) ([]model.OutputRow, error) {
	key := pageKey(runID, offset, limit)
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		if rows, err := decodeRows(data); err == nil {
			return rows, nil
		}
	}

	rows, err := s.primary.ListRows(ctx, runID, offset, limit)
	if err != nil {
		return nil, err
	}
	if data, err := encodeRows(rows); err == nil {
		pipe := s.rdb.TxPipeline()
		pipe.Set(ctx, key, data, s.ttl)
		pipe.SAdd(ctx, pagesKey(runID), key)
		pipe.Expire(ctx, pagesKey(runID), s.ttl)
		pipe.Exec(ctx)
	}
	return rows, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListRuns(ctx context.Context) ([]model.Run, error) {
	return s.primary.ListRuns(ctx)
}

func (s *CachedStore) ListEvents(ctx context.Context, runID string) ([]model.StoredEvent, error) {
	return s.primary.ListEvents(ctx, runID)
}

// --- Cache helpers ---

func (s *CachedStore) cacheRun(ctx context.Context, r *model.Run) {
	if data, err := json.Marshal(r); err == nil {
		s.rdb.Set(ctx, runKey(r.ID), data, s.ttl)
	}
}

func (s *CachedStore) dropPages(ctx context.Context, runID string) {
	keys, err := s.rdb.SMembers(ctx, pagesKey(runID)).Result()
	if err != nil {
		return
	}
	s.rdb.Del(ctx, append(keys, pagesKey(runID))...)
}

func (s *CachedStore) invalidate(ctx context.Context, runID string) {
	s.rdb.Del(ctx, runKey(runID))
	s.dropPages(ctx, runID)
}

// encodeRows packs a ledger page. Struct fields are keyed by their json tag
// so cached pages and API payloads share one naming.
func encodeRows(rows []model.OutputRow) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeRows(data []byte) ([]model.OutputRow, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	var rows []model.OutputRow
	if err := dec.Decode(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func runKey(id string) string   { return fmt.Sprintf("run:%s", id) }
func pagesKey(id string) string { return fmt.Sprintf("run:%s:pages", id) }
func pageKey(id string, offset, limit int) string {
	return fmt.Sprintf("run:%s:rows:%d:%d", id, offset, limit)
}

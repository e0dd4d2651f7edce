// Package portfolio provides the HTTP handlers for creating runs, feeding
// trade events through a run's engine and reading back its ledger.
//
// All monetary values use shopspring/decimal.
package portfolio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atmx/portfolio-engine/internal/csvio"
	"github.com/atmx/portfolio-engine/internal/engine"
	"github.com/atmx/portfolio-engine/internal/metrics"
	"github.com/atmx/portfolio-engine/internal/model"
	"github.com/atmx/portfolio-engine/internal/normalize"
	"github.com/atmx/portfolio-engine/internal/report"
	"github.com/atmx/portfolio-engine/internal/store"
)

const (
	// maxUpload bounds CSV uploads.
	maxUpload = 32 << 20

	persistTimeout = 10 * time.Second
)

// Options configures a Service.
type Options struct {
	Engine      engine.Options
	DefaultCash decimal.Decimal // used when a request omits initial_cash
}

// Service handles run operations. Each run is processed by a single writer
// (its session lock); different runs proceed in parallel.
type Service struct {
	store       store.Store
	sessions    *Sessions
	defaultCash decimal.Decimal
	wsHub       *WSHub // optional
}

// NewService creates a new portfolio service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, opts Options, hub *WSHub) *Service {
	return &Service{
		store:       st,
		sessions:    NewSessions(st, opts.Engine),
		defaultCash: opts.DefaultCash,
		wsHub:       hub,
	}
}

// Sessions exposes the in-memory engine registry (for the janitor).
func (s *Service) Sessions() *Sessions { return s.sessions }

// Routes registers the run endpoints on r.
func (s *Service) Routes(r chi.Router) {
	r.Get("/runs", s.ListRuns)
	r.Post("/runs", s.CreateRun)
	r.Get("/runs/{runID}", s.GetRun)
	r.Post("/runs/{runID}/reset", s.ResetRun)
	r.Post("/runs/{runID}/events", s.ProcessEvent)
	r.Post("/runs/{runID}/upload", s.Upload)
	r.Get("/runs/{runID}/ledger", s.GetLedger)
	r.Get("/runs/{runID}/summary", s.GetSummary)
}

// --- Request/Response types ---

// RunRequest is the JSON body for run creation and reset.
type RunRequest struct {
	InitialCash *decimal.Decimal `json:"initial_cash"`
}

// EventRequest is the JSON body for POST /runs/{runID}/events.
type EventRequest struct {
	Ticker string          `json:"ticker"`
	Side   string          `json:"side"` // buy, sell or hold
	Price  decimal.Decimal `json:"price"`
	// Quantity is a number or a notation string: "10", "-10", "(10)", "-(10)".
	Quantity      any      `json:"quantity"`
	Date          string   `json:"date,omitempty"`
	AssetType     string   `json:"asset_type,omitempty"`
	MarketCap     string   `json:"market_cap,omitempty"`
	Industry      string   `json:"industry,omitempty"`
	Sector        string   `json:"sector,omitempty"`
	TakeProfitPct *float64 `json:"take_profit_pct,omitempty"`
	StopLossPct   *float64 `json:"stop_loss_pct,omitempty"`
}

// Event converts the request into an engine event.
func (req *EventRequest) Event() (model.TradeEvent, error) {
	side, err := model.ParseSide(req.Side)
	if err != nil {
		return model.TradeEvent{}, err
	}
	qty := decimal.Zero
	if req.Quantity != nil || side != model.Hold {
		if qty, err = normalize.Quantity(req.Quantity); err != nil {
			return model.TradeEvent{}, err
		}
	}
	return model.TradeEvent{
		Ticker:   req.Ticker,
		Side:     side,
		Price:    req.Price,
		Quantity: qty,
		Date:     req.Date,
		Class: model.Classification{
			AssetType: req.AssetType,
			MarketCap: req.MarketCap,
			Industry:  req.Industry,
			Sector:    req.Sector,
		},
		TakeProfitPct: req.TakeProfitPct,
		StopLossPct:   req.StopLossPct,
	}, nil
}

// UploadResponse is returned from POST /runs/{runID}/upload.
type UploadResponse struct {
	Processed int               `json:"processed"`
	Rows      []model.OutputRow `json:"rows"`
}

// --- HTTP Handlers ---

// CreateRun handles POST /api/v1/runs
func (s *Service) CreateRun(w http.ResponseWriter, r *http.Request) {
	cash, ok := s.initialCash(w, r, s.defaultCash)
	if !ok {
		return
	}

	now := time.Now().UTC()
	run := &model.Run{
		ID:          uuid.New().String(),
		InitialCash: cash,
		CreatedAt:   now,
		ResetAt:     now,
	}
	if err := s.store.CreateRun(r.Context(), run); err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}
	s.sessions.start(run)

	slog.Info("run created", "id", run.ID, "initial_cash", cash.String())
	writeJSON(w, http.StatusCreated, run)
}

// ListRuns handles GET /api/v1/runs
func (s *Service) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRuns(r.Context())
	if err != nil {
		writeError(w, "failed to list runs", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetRun handles GET /api/v1/runs/{runID}
func (s *Service) GetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// ResetRun handles POST /api/v1/runs/{runID}/reset. Without initial_cash the
// run restarts with its previous balance.
func (s *Service) ResetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookup(w, r)
	if !ok {
		return
	}
	cash, ok := s.initialCash(w, r, run.InitialCash)
	if !ok {
		return
	}

	ctx := r.Context()
	sess, err := s.sessions.acquire(ctx, run)
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer s.sessions.release(sess)

	at := time.Now().UTC()
	if err := s.store.ResetRun(ctx, run.ID, cash, at); err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	sess.eng.Reset(cash)
	run.InitialCash, run.EventCount, run.ResetAt = cash, 0, at

	slog.Info("run reset", "id", run.ID, "initial_cash", cash.String())
	writeJSON(w, http.StatusOK, run)
}

// ProcessEvent handles POST /api/v1/runs/{runID}/events
func (s *Service) ProcessEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	ev, err := req.Event()
	if err != nil {
		reject(err)
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	run, ok := s.lookup(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	sess, err := s.sessions.acquire(ctx, run)
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer s.sessions.release(sess)

	row, err := s.apply(r, sess, run.ID, ev)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// Upload handles POST /api/v1/runs/{runID}/upload. The body is a CSV file,
// either raw or as the multipart field "file". Rows are processed in order;
// on the first bad row the response is 400 and earlier rows stay applied.
func (s *Service) Upload(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookup(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	var src io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		f, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, "missing multipart field \"file\"", http.StatusBadRequest)
			return
		}
		defer f.Close()
		src = f
	}

	cr, err := csvio.NewReader(src)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	sess, err := s.sessions.acquire(ctx, run)
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer s.sessions.release(sess)

	resp := UploadResponse{Rows: []model.OutputRow{}}
	for {
		ev, err := cr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err == nil {
			var row model.OutputRow
			if row, err = s.apply(r, sess, run.ID, ev); err == nil {
				resp.Rows = append(resp.Rows, row)
				resp.Processed++
				continue
			}
			if statusFor(err) == http.StatusBadRequest {
				err = &csvio.RowError{Row: cr.Row(), Err: err}
			}
		} else {
			reject(err)
		}
		status := statusFor(err)
		slog.Warn("upload stopped", "run_id", run.ID, "processed", resp.Processed, "err", err)
		writeJSON(w, status, map[string]any{
			"error":     err.Error(),
			"row":       cr.Row(),
			"processed": resp.Processed,
		})
		return
	}

	slog.Info("upload processed", "run_id", run.ID, "rows", resp.Processed)
	writeJSON(w, http.StatusOK, resp)
}

// GetLedger handles GET /api/v1/runs/{runID}/ledger. Supports offset and
// limit paging; format=csv downloads the canonical column export.
func (s *Service) GetLedger(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookup(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	offset, err1 := intParam(q.Get("offset"))
	limit, err2 := intParam(q.Get("limit"))
	if err1 != nil || err2 != nil || offset < 0 || limit < 0 {
		writeError(w, "offset and limit must be non-negative integers", http.StatusBadRequest)
		return
	}

	rows, err := s.store.ListRows(r.Context(), run.ID, offset, limit)
	if err != nil {
		writeError(w, "failed to read ledger", http.StatusInternalServerError)
		return
	}

	switch q.Get("format") {
	case "", "json":
		if rows == nil {
			rows = []model.OutputRow{}
		}
		writeJSON(w, http.StatusOK, rows)
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "ledger-"+run.ID+".csv"))
		if err := csvio.WriteLedger(w, rows); err != nil {
			slog.Error("ledger export failed", "run_id", run.ID, "err", err)
		}
	default:
		writeError(w, "format must be json or csv", http.StatusBadRequest)
	}
}

// GetSummary handles GET /api/v1/runs/{runID}/summary
func (s *Service) GetSummary(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookup(w, r)
	if !ok {
		return
	}
	rows, err := s.store.ListRows(r.Context(), run.ID, 0, 0)
	if err != nil {
		writeError(w, "failed to read ledger", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, report.Build(run.ID, run.InitialCash, rows))
}

// --- Internals ---

// apply runs ev through the session's engine and persists the event with its
// row in one write. If persisting fails the engine is dropped so the next
// request rebuilds it from what the store actually holds.
func (s *Service) apply(r *http.Request, sess *session, runID string, ev model.TradeEvent) (model.OutputRow, error) {
	start := time.Now()
	row, err := sess.eng.Process(ev)
	if err != nil {
		reject(err)
		return model.OutputRow{}, err
	}
	side := ev.Side.String()
	metrics.EventLatency.WithLabelValues(side).Observe(time.Since(start).Seconds())

	// The engine has already applied the event; a client hanging up must
	// not cancel the write that records it.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), persistTimeout)
	defer cancel()
	err = s.store.Append(ctx, &model.StoredEvent{RunID: runID, Seq: row.Seq, Event: ev}, &row)
	if err != nil {
		sess.eng = nil
		slog.Error("persist event failed", "run_id", runID, "seq", row.Seq, "err", err)
		return model.OutputRow{}, fmt.Errorf("persist event %d: %w", row.Seq, err)
	}

	metrics.EventsTotal.WithLabelValues(side).Inc()
	slog.Debug("event processed",
		"run_id", runID,
		"seq", row.Seq,
		"ticker", row.Ticker,
		"side", side,
		"account_value", row.AccountValue.String(),
	)
	if s.wsHub != nil {
		s.wsHub.Broadcast(rowAppended(runID, &row))
	}
	return row, nil
}

func (s *Service) lookup(w http.ResponseWriter, r *http.Request) (*model.Run, bool) {
	runID := chi.URLParam(r, "runID")
	run, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, "run not found", http.StatusNotFound)
		} else {
			writeError(w, "failed to load run", http.StatusInternalServerError)
		}
		return nil, false
	}
	return run, true
}

// initialCash reads an optional RunRequest body. An empty body yields def.
func (s *Service) initialCash(w http.ResponseWriter, r *http.Request, def decimal.Decimal) (decimal.Decimal, bool) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return decimal.Zero, false
	}
	if req.InitialCash == nil {
		return def, true
	}
	if req.InitialCash.IsNegative() {
		writeError(w, "initial_cash must not be negative", http.StatusBadRequest)
		return decimal.Zero, false
	}
	return *req.InitialCash, true
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, normalize.ErrMalformedQuantity),
		errors.Is(err, model.ErrInvalidSide),
		errors.Is(err, engine.ErrEmptyTicker),
		errors.Is(err, csvio.ErrInvalidRow),
		errors.Is(err, csvio.ErrMissingColumn):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// reject counts a refused event by reason.
func reject(err error) {
	reason := "other"
	switch {
	case errors.Is(err, normalize.ErrMalformedQuantity):
		reason = "quantity"
	case errors.Is(err, model.ErrInvalidSide):
		reason = "side"
	case errors.Is(err, engine.ErrEmptyTicker):
		reason = "ticker"
	case errors.Is(err, csvio.ErrInvalidPrice):
		reason = "price"
	}
	metrics.EventRejections.WithLabelValues(reason).Inc()
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

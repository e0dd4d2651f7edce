// Package model defines the core domain types shared across the portfolio engine.
// All monetary values and quantities use shopspring/decimal; statistics that are
// inherently approximate (ratios, percentages) use float64 wrapped in Ratio.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrInvalidSide = errors.New("model: invalid side")

// Side is the action carried by a trade event.
type Side int

const (
	Hold Side = iota
	Buy
	Sell
)

// ParseSide accepts the spellings found in broker exports (case-insensitive).
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy", "b", "long":
		return Buy, nil
	case "sell", "s", "short":
		return Sell, nil
	case "hold", "h":
		return Hold, nil
	}
	return Hold, fmt.Errorf("%w: %q (expected buy, sell or hold)", ErrInvalidSide, s)
}

func (s Side) Valid() bool { return s == Hold || s == Buy || s == Sell }

func (s Side) String() string {
	switch s {
	case Buy:
		return "Buy"
	case Sell:
		return "Sell"
	case Hold:
		return "Hold"
	}
	return fmt.Sprintf("Side(%d)", int(s))
}

func (s Side) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSide, int(s))
	}
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(b []byte) error {
	v, err := ParseSide(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Direction is derived from the sign of a quantity and never stored alongside it.
type Direction int

const (
	Flat Direction = iota
	Long
	Short
)

// DirectionOf returns the direction implied by a signed quantity.
func DirectionOf(q decimal.Decimal) Direction {
	switch q.Sign() {
	case 1:
		return Long
	case -1:
		return Short
	}
	return Flat
}

func (d Direction) String() string {
	switch d {
	case Long:
		return "Long"
	case Short:
		return "Short"
	}
	return "Flat"
}

func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Direction) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "long":
		*d = Long
	case "short":
		*d = Short
	default:
		*d = Flat
	}
	return nil
}

// Classification carries optional grouping hints for a ticker. Empty fields
// mean "unknown" and fall back to the reference table.
type Classification struct {
	AssetType string `json:"asset_type,omitempty"`
	MarketCap string `json:"market_cap,omitempty"`
	Industry  string `json:"industry,omitempty"`
	Sector    string `json:"sector,omitempty"`
}

// TradeEvent is one immutable input to the engine.
// Quantity is a magnitude; its sign is ignored and direction comes from Side.
type TradeEvent struct {
	Ticker   string          `json:"ticker"`
	Side     Side            `json:"side"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Date     string          `json:"date,omitempty"` // parsed leniently; unparseable dates degrade date metrics only
	Class    Classification  `json:"classification"`

	// Per-event overrides of the engine defaults; nil keeps the default.
	TakeProfitPct *float64 `json:"take_profit_pct,omitempty"`
	StopLossPct   *float64 `json:"stop_loss_pct,omitempty"`
}

// Run is one reset-delimited processing session.
type Run struct {
	ID          string          `json:"id" db:"id"`
	InitialCash decimal.Decimal `json:"initial_cash" db:"initial_cash"`
	EventCount  int             `json:"event_count" db:"event_count"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	ResetAt     time.Time       `json:"reset_at" db:"reset_at"`
}

// StoredEvent is an accepted event with its 1-based position in the run.
type StoredEvent struct {
	RunID string     `json:"run_id" db:"run_id"`
	Seq   int        `json:"seq" db:"seq"`
	Event TradeEvent `json:"event"`
}

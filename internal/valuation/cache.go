// Package valuation keeps the last mark-to-market of every open position and
// the portfolio-wide totals. Each event re-marks only the traded ticker and
// applies the difference to the totals, so the cost per event does not grow
// with the number of tickers held.
package valuation

import (
	"github.com/shopspring/decimal"

	"github.com/atmx/portfolio-engine/internal/ledger"
)

// Entry is the cached valuation of one ticker at its last traded price.
type Entry struct {
	Unrealized decimal.Decimal `json:"unrealized"`
	Value      decimal.Decimal `json:"value"` // cost basis + unrealized
}

// Mark is the result of re-valuing one ticker.
type Mark struct {
	Entry
	Prev  Entry
	Long  decimal.Decimal // unrealized P&L of a long lot, else zero
	Short decimal.Decimal // unrealized P&L of a short lot, else zero

	TotalUnrealized decimal.Decimal
	TotalValue      decimal.Decimal
}

// Cache holds per-ticker entries and their running totals.
type Cache struct {
	entries         map[string]Entry
	totalUnrealized decimal.Decimal
	totalValue      decimal.Decimal
}

func NewCache() *Cache {
	return &Cache{
		entries:         make(map[string]Entry),
		totalUnrealized: decimal.Zero,
		totalValue:      decimal.Zero,
	}
}

// Update re-values ticker from its current position at price and folds the
// change into the totals. On the event that opens a position (opening=true)
// the unrealized P&L is exactly zero: entry and mark prices are the same.
func (c *Cache) Update(ticker string, pos ledger.Position, price decimal.Decimal, opening bool) Mark {
	m := Mark{Long: decimal.Zero, Short: decimal.Zero}
	m.Prev = c.Get(ticker)

	q := pos.Quantity
	unrealized := decimal.Zero
	if !opening && pos.AvgPrice.IsPositive() {
		switch {
		case q.IsPositive():
			m.Long = price.Sub(pos.AvgPrice).Mul(q)
			unrealized = m.Long
		case q.IsNegative():
			m.Short = pos.AvgPrice.Sub(price).Mul(q.Abs())
			unrealized = m.Short
		}
	}

	value := decimal.Zero
	if !q.IsZero() && pos.AvgPrice.IsPositive() {
		value = pos.CostBasis.Add(unrealized)
	}
	m.Entry = Entry{Unrealized: unrealized, Value: value}

	if q.IsZero() {
		delete(c.entries, ticker)
	} else {
		c.entries[ticker] = m.Entry
	}
	c.totalUnrealized = c.totalUnrealized.Add(m.Unrealized.Sub(m.Prev.Unrealized))
	c.totalValue = c.totalValue.Add(m.Value.Sub(m.Prev.Value))

	m.TotalUnrealized = c.totalUnrealized
	m.TotalValue = c.totalValue
	return m
}

// Get returns the cached entry for ticker; flat or unknown tickers are zero.
func (c *Cache) Get(ticker string) Entry {
	if e, ok := c.entries[ticker]; ok {
		return e
	}
	return Entry{Unrealized: decimal.Zero, Value: decimal.Zero}
}

func (c *Cache) TotalUnrealized() decimal.Decimal { return c.totalUnrealized }
func (c *Cache) TotalValue() decimal.Decimal      { return c.totalValue }

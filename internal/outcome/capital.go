package outcome

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/atmx/portfolio-engine/internal/model"
)

// Capital tracks how much capital trades put to work: the biggest single
// entry per ticker, traded volume extremes and the average opening size.
type Capital struct {
	biggest map[string]decimal.Decimal

	volumeSeen      bool
	highest, lowest decimal.Decimal

	openedSum decimal.Decimal
	openedN   int
}

func NewCapital() *Capital {
	return &Capital{biggest: make(map[string]decimal.Decimal), openedSum: decimal.Zero}
}

// Trade records a buy or sell of magnitude at price. Buys always count as an
// entry; sells count only when they open or extend a short (oldQ ≤ 0).
func (c *Capital) Trade(ticker string, side model.Side, price, magnitude, oldQ decimal.Decimal) {
	if side == model.Hold {
		return
	}
	volume := price.Mul(magnitude)

	if side == model.Buy || !oldQ.IsPositive() {
		if volume.GreaterThan(c.biggest[ticker]) {
			c.biggest[ticker] = volume
		}
	}

	if !c.volumeSeen {
		c.volumeSeen = true
		c.highest, c.lowest = volume, volume
		return
	}
	if volume.GreaterThan(c.highest) {
		c.highest = volume
	}
	if volume.LessThan(c.lowest) {
		c.lowest = volume
	}
}

// Opened records the absolute size of a newly opened lot.
func (c *Capital) Opened(qty decimal.Decimal) {
	if q := qty.Abs(); q.IsPositive() {
		c.openedSum = c.openedSum.Add(q)
		c.openedN++
	}
}

// BiggestInvestment renders "T: v" for every ticker with a positive entry,
// largest first.
func (c *Capital) BiggestInvestment() string {
	type entry struct {
		ticker string
		v      decimal.Decimal
	}
	var entries []entry
	for t, v := range c.biggest {
		if v.IsPositive() {
			entries = append(entries, entry{t, v})
		}
	}
	if len(entries) == 0 {
		return none
	}
	sort.Slice(entries, func(i, j int) bool {
		if c := entries[i].v.Cmp(entries[j].v); c != 0 {
			return c > 0
		}
		return entries[i].ticker < entries[j].ticker
	})
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = fmt.Sprintf("%s: %d", e.ticker, e.v.IntPart())
	}
	return strings.Join(parts, ", ")
}

// Volumes returns the highest and lowest traded volume rounded to cents, or
// zero before the first trade.
func (c *Capital) Volumes() (highest, lowest decimal.Decimal) {
	if !c.volumeSeen {
		return decimal.Zero, decimal.Zero
	}
	return c.highest.Round(2), c.lowest.Round(2)
}

// AveragePosition is the mean size of opened lots; invalid before the first.
func (c *Capital) AveragePosition() decimal.NullDecimal {
	if c.openedN == 0 {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(c.openedSum.Div(decimal.NewFromInt(int64(c.openedN))))
}

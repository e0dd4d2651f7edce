package outcome

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/atmx/portfolio-engine/internal/model"
)

type group struct {
	value decimal.Decimal
	n     int
}

// breakdown is a set of value totals keyed by one classification field.
type breakdown struct {
	groups map[string]*group
	total  decimal.Decimal
}

func newBreakdown() *breakdown {
	return &breakdown{groups: make(map[string]*group), total: decimal.Zero}
}

func (b *breakdown) add(key string, v decimal.Decimal, sign int) {
	if key == "" {
		return
	}
	g, ok := b.groups[key]
	if !ok {
		g = &group{value: decimal.Zero}
		b.groups[key] = g
	}
	if sign < 0 {
		v = v.Neg()
	}
	g.value = g.value.Add(v)
	g.n += sign
	b.total = b.total.Add(v)
	if g.n == 0 {
		delete(b.groups, key)
	}
}

func (b *breakdown) keys() []string {
	keys := make([]string, 0, len(b.groups))
	for k := range b.groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// shares renders "Key: p%" of denom per key, or "None".
func (b *breakdown) shares(denom decimal.Decimal) string {
	if len(b.groups) == 0 || denom.IsZero() {
		return none
	}
	keys := b.keys()
	parts := make([]string, len(keys))
	for i, k := range keys {
		pct := b.groups[k].value.Div(denom).Mul(decimal.NewFromInt(100))
		parts[i] = fmt.Sprintf("%s: %s%%", k, pct.StringFixed(2))
	}
	return strings.Join(parts, ", ")
}

type held struct {
	class model.Classification
	value decimal.Decimal
}

// Composition keeps the value of every open position grouped by asset type
// and, for equities, by market cap, industry and sector. Each update moves
// one ticker's contribution, so rendering only walks the group keys.
type Composition struct {
	held      map[string]held
	byType    *breakdown
	marketCap *breakdown
	industry  *breakdown
	sector    *breakdown
}

func NewComposition() *Composition {
	return &Composition{
		held:      make(map[string]held),
		byType:    newBreakdown(),
		marketCap: newBreakdown(),
		industry:  newBreakdown(),
		sector:    newBreakdown(),
	}
}

func isEquity(assetType string) bool { return strings.EqualFold(assetType, "equity") }

func (c *Composition) apply(h held, sign int) {
	c.byType.add(h.class.AssetType, h.value, sign)
	if !isEquity(h.class.AssetType) {
		return
	}
	c.marketCap.add(h.class.MarketCap, h.value, sign)
	c.industry.add(h.class.Industry, h.value, sign)
	c.sector.add(h.class.Sector, h.value, sign)
}

// Update sets ticker's classification and current position value. A ticker
// that is no longer open leaves every group.
func (c *Composition) Update(ticker string, class model.Classification, value decimal.Decimal, open bool) {
	if prev, ok := c.held[ticker]; ok {
		c.apply(prev, -1)
		delete(c.held, ticker)
	}
	if !open {
		return
	}
	h := held{class: class, value: value}
	c.held[ticker] = h
	c.apply(h, 1)
}

// Distribution renders value per asset type ("Type: v") and its share of
// totalValue ("Type: p%").
func (c *Composition) Distribution(totalValue decimal.Decimal) (string, string) {
	if len(c.byType.groups) == 0 || totalValue.IsZero() {
		return none, none
	}
	keys := c.byType.keys()
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %s", k, c.byType.groups[k].value.StringFixed(2))
	}
	return strings.Join(parts, ", "), c.byType.shares(totalValue)
}

// EquityDistribution renders each equity breakdown as shares of its own total.
func (c *Composition) EquityDistribution() (marketCap, industry, sector string) {
	return c.marketCap.shares(c.marketCap.total),
		c.industry.shares(c.industry.total),
		c.sector.shares(c.sector.total)
}

// AssetCount renders "Type: n" over open tickers, or "None".
func (c *Composition) AssetCount() string {
	keys := c.byType.keys()
	if len(keys) == 0 {
		return none
	}
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %d", k, c.byType.groups[k].n)
	}
	return strings.Join(parts, ", ")
}

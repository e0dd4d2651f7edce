package outcome

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

const none = "None"

func join(parts []string) string {
	if len(parts) == 0 {
		return none
	}
	return strings.Join(parts, ", ")
}

// Rankings holds the per-ticker tallies behind the quantity and trade-count
// columns.
type Rankings struct {
	quantity map[string]decimal.Decimal
	tradeIDs map[string]map[int]struct{}
	opened   map[string]decimal.Decimal
}

func NewRankings() *Rankings {
	return &Rankings{
		quantity: make(map[string]decimal.Decimal),
		tradeIDs: make(map[string]map[int]struct{}),
		opened:   make(map[string]decimal.Decimal),
	}
}

// Traded records magnitude on ticker and the trade id shown on the row, if any.
func (r *Rankings) Traded(ticker string, magnitude decimal.Decimal, id int, hasID bool) {
	if !magnitude.IsZero() {
		r.quantity[ticker] = r.quantity[ticker].Add(magnitude.Abs())
	}
	if hasID {
		ids, ok := r.tradeIDs[ticker]
		if !ok {
			ids = make(map[int]struct{})
			r.tradeIDs[ticker] = ids
		}
		ids[id] = struct{}{}
	}
}

// Opened adds magnitude to ticker's opening-side total (long buys and short sells).
func (r *Rankings) Opened(ticker string, magnitude decimal.Decimal) {
	if magnitude.IsZero() {
		return
	}
	r.opened[ticker] = r.opened[ticker].Add(magnitude.Abs())
}

type tally struct {
	ticker string
	n      decimal.Decimal
}

func sortedTallies(m map[string]decimal.Decimal, desc bool) []tally {
	out := make([]tally, 0, len(m))
	for t, n := range m {
		out = append(out, tally{t, n})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].n.Cmp(out[j].n); c != 0 {
			return (c > 0) == desc
		}
		return out[i].ticker < out[j].ticker
	})
	return out
}

// QuantityCounts renders "T n" by total traded magnitude, largest first.
func (r *Rankings) QuantityCounts() string {
	if len(r.quantity) == 0 {
		return ""
	}
	var parts []string
	for _, t := range sortedTallies(r.quantity, true) {
		parts = append(parts, fmt.Sprintf("%s %d", t.ticker, t.n.IntPart()))
	}
	return join(parts)
}

// MostLeastTraded ranks tickers by the number of distinct trade ids seen.
func (r *Rankings) MostLeastTraded() (most, least string) {
	counts := make(map[string]decimal.Decimal, len(r.tradeIDs))
	for t, ids := range r.tradeIDs {
		counts[t] = decimal.NewFromInt(int64(len(ids)))
	}
	render := func(ts []tally) string {
		var parts []string
		for _, t := range ts {
			parts = append(parts, fmt.Sprintf("%s %d", t.ticker, t.n.IntPart()))
		}
		return join(parts)
	}
	return render(sortedTallies(counts, true)), render(sortedTallies(counts, false))
}

// MostBought lists the ticker(s) with the largest opening-side total.
func (r *Rankings) MostBought() string {
	var top decimal.Decimal
	var winners []string
	for t, q := range r.opened {
		switch c := q.Cmp(top); {
		case winners == nil || c > 0:
			top, winners = q, []string{t}
		case c == 0:
			winners = append(winners, t)
		}
	}
	sort.Strings(winners)
	parts := make([]string, len(winners))
	for i, t := range winners {
		parts[i] = fmt.Sprintf("%s %d", t, top.IntPart())
	}
	return join(parts)
}

// Profit tracks realized P&L samples: averages of the losing and winning ones
// and the extremes among the winners.
type Profit struct {
	lossSum, winSum decimal.Decimal
	lossN, winN     int

	best, worst             decimal.Decimal
	bestTicker, worstTicker []string
}

func NewProfit() *Profit {
	return &Profit{lossSum: decimal.Zero, winSum: decimal.Zero}
}

// Add records ticker's realized P&L for the event, if any.
func (p *Profit) Add(ticker string, realized decimal.NullDecimal) {
	if !realized.Valid {
		return
	}
	v := realized.Decimal
	switch v.Sign() {
	case -1:
		p.lossSum = p.lossSum.Add(v)
		p.lossN++
		return
	case 0:
		return
	}
	p.winSum = p.winSum.Add(v)
	p.winN++

	switch c := v.Cmp(p.best); {
	case p.bestTicker == nil || c > 0:
		p.best, p.bestTicker = v, []string{ticker}
	case c == 0:
		p.bestTicker = append(p.bestTicker, ticker)
	}
	switch c := v.Cmp(p.worst); {
	case p.worstTicker == nil || c < 0:
		p.worst, p.worstTicker = v, []string{ticker}
	case c == 0:
		p.worstTicker = append(p.worstTicker, ticker)
	}
}

// Averages returns the mean losing and mean winning P&L, zero when empty.
func (p *Profit) Averages() (losing, winning decimal.Decimal) {
	losing, winning = decimal.Zero, decimal.Zero
	if p.lossN > 0 {
		losing = p.lossSum.Div(decimal.NewFromInt(int64(p.lossN)))
	}
	if p.winN > 0 {
		winning = p.winSum.Div(decimal.NewFromInt(int64(p.winN)))
	}
	return losing, winning
}

func renderTies(tickers []string, v decimal.Decimal) string {
	sorted := append([]string(nil), tickers...)
	sort.Strings(sorted)
	parts := make([]string, len(sorted))
	for i, t := range sorted {
		parts[i] = fmt.Sprintf("%s %s", t, v)
	}
	return join(parts)
}

// MostLeastProfitable renders the largest and smallest winning samples with ties.
func (p *Profit) MostLeastProfitable() (most, least string) {
	if p.bestTicker == nil {
		return none, none
	}
	return renderTies(p.bestTicker, p.best), renderTies(p.worstTicker, p.worst)
}

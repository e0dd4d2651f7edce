package stats

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/atmx/portfolio-engine/internal/model"
)

// TradeReturns accumulates per-closing price returns, r = ±(exit - entry)/entry,
// and derives the backtester columns from running sums.
type TradeReturns struct {
	n, wins, losses      int
	sum, winSum, lossSum float64

	equity, peak, worst float64
}

func NewTradeReturns() *TradeReturns {
	return &TradeReturns{equity: 100, peak: 100}
}

// Add records one trade return and advances the synthetic equity curve
// that starts at 100.
func (t *TradeReturns) Add(r float64) {
	t.n++
	t.sum += r
	switch {
	case r > 0:
		t.wins++
		t.winSum += r
	case r < 0:
		t.losses++
		t.lossSum += r
	}

	t.equity *= 1 + r
	if t.equity > t.peak {
		t.peak = t.equity
	} else if dd := (t.equity - t.peak) / t.peak; dd < t.worst {
		t.worst = dd
	}
}

func (t *TradeReturns) Count() int { return t.n }

func pct(sum float64, n int) model.Ratio {
	if n == 0 {
		return model.UndefinedRatio()
	}
	return model.FiniteRatio(sum / float64(n) * 100)
}

func (t *TradeReturns) AvgWinningPct() model.Ratio { return pct(t.winSum, t.wins) }
func (t *TradeReturns) AvgLosingPct() model.Ratio  { return pct(t.lossSum, t.losses) }
func (t *TradeReturns) AvgPct() model.Ratio        { return pct(t.sum, t.n) }

// RewardRisk is average winning % over |average losing %|; +inf with wins and
// no losses, undefined without wins.
func (t *TradeReturns) RewardRisk() model.Ratio {
	if t.wins == 0 {
		return model.UndefinedRatio()
	}
	if t.losses == 0 {
		return model.InfRatio(1)
	}
	win := t.winSum / float64(t.wins)
	loss := t.lossSum / float64(t.losses)
	return model.FiniteRatio(win / math.Abs(loss))
}

// Expectancy is RR × winRatio − (1 − winRatio), with winRate given in percent.
func (t *TradeReturns) Expectancy(winRate model.Ratio) model.Ratio {
	rr, ok := t.RewardRisk().Float()
	wr, wok := winRate.Float()
	if !ok || !wok {
		return model.UndefinedRatio()
	}
	w := wr / 100
	return model.FiniteRatio(rr*w - (1 - w))
}

// MaxDrawdown is the most negative (equity - peak)/peak of the compounded
// curve, in percent (≤ 0). Undefined before the first return.
func (t *TradeReturns) MaxDrawdown() model.Ratio {
	if t.n == 0 {
		return model.UndefinedRatio()
	}
	return model.FiniteRatio(t.worst * 100)
}

type openEntry struct {
	entry decimal.Decimal
	long  bool
}

// NetPerformance compounds the price-only return of every completed trade
// with the mark-to-market return of every open trade.
type NetPerformance struct {
	completed float64
	order     []string
	open      map[string]openEntry
	last      map[string]decimal.Decimal
}

func NewNetPerformance() *NetPerformance {
	return &NetPerformance{
		completed: 1,
		open:      make(map[string]openEntry),
		last:      make(map[string]decimal.Decimal),
	}
}

func priceReturn(e openEntry, price decimal.Decimal) float64 {
	r := price.Sub(e.entry).Div(e.entry).InexactFloat64()
	if !e.long {
		r = -r
	}
	return r
}

// Trade records a fill on ticker. A close completes the trade at price; an
// open starts one. A flip does both on the same event.
func (p *NetPerformance) Trade(ticker string, price, oldQ, newQ decimal.Decimal) {
	p.last[ticker] = price

	closes := !oldQ.IsZero() && (newQ.IsZero() || oldQ.Sign() != newQ.Sign())
	opens := !newQ.IsZero() && (oldQ.IsZero() || oldQ.Sign() != newQ.Sign())

	if closes {
		if e, ok := p.open[ticker]; ok && e.entry.IsPositive() {
			p.completed *= 1 + priceReturn(e, price)
		}
		p.remove(ticker)
	}
	if opens {
		p.open[ticker] = openEntry{entry: price, long: newQ.IsPositive()}
		p.order = append(p.order, ticker)
	}
}

func (p *NetPerformance) remove(ticker string) {
	if _, ok := p.open[ticker]; !ok {
		return
	}
	delete(p.open, ticker)
	for i, t := range p.order {
		if t == ticker {
			p.order = append(p.order[:i], p.order[i+1:]...)
			return
		}
	}
}

// Percent is (product - 1) × 100, marking open trades at their last traded
// price, or at entry when that price is not positive.
func (p *NetPerformance) Percent() model.Ratio {
	compound := p.completed
	for _, t := range p.order {
		e := p.open[t]
		if !e.entry.IsPositive() {
			continue
		}
		mark := p.last[t]
		if !mark.IsPositive() {
			mark = e.entry
		}
		compound *= 1 + priceReturn(e, mark)
	}
	return model.FiniteRatio((compound - 1) * 100)
}

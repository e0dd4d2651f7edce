// Package stats holds the running statistics of a portfolio run. Every
// accumulator is updated once per event in constant time; none of them keeps
// the sample history.
package stats

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/atmx/portfolio-engine/internal/model"
)

// Welford is an online count/mean/M2 accumulator.
type Welford struct {
	n    int
	mean float64
	m2   float64
}

func (w *Welford) Add(x float64) {
	w.n++
	delta := x - w.mean
	w.mean += delta / float64(w.n)
	w.m2 += delta * (x - w.mean)
}

func (w *Welford) Count() int    { return w.n }
func (w *Welford) Mean() float64 { return w.mean }

// PopVariance is M2/n, or 0 with no samples.
func (w *Welford) PopVariance() float64 {
	if w.n == 0 {
		return 0
	}
	return w.m2 / float64(w.n)
}

func (w *Welford) PopStdDev() float64 { return math.Sqrt(w.PopVariance()) }

// stdScale is the fixed divisor applied to the standard deviation of raw
// realized P&L samples before it is used as a ratio denominator. The result
// is multiplied back by the same factor.
const stdScale = 100.0

// RiskRatios feeds realized point-in-time P&L samples into two Welford
// accumulators: every sample, and the negative subset.
type RiskRatios struct {
	all      Welford
	downside Welford
}

// Observe records one realized P&L sample.
func (r *RiskRatios) Observe(pnl decimal.Decimal) {
	v := pnl.InexactFloat64()
	r.all.Add(v)
	if v < 0 {
		r.downside.Add(v)
	}
}

func (r *RiskRatios) Samples() int { return r.all.Count() }

func excessReturn(cumRealized, initial decimal.Decimal, rf float64) (float64, bool) {
	if initial.IsZero() {
		return 0, false
	}
	return cumRealized.Div(initial).InexactFloat64() - rf, true
}

func scaled(excess float64, w *Welford) model.Ratio {
	if w.Count() < 2 {
		return model.UndefinedRatio()
	}
	std := w.PopStdDev()
	if std == 0 || math.IsNaN(std) {
		return model.UndefinedRatio()
	}
	return model.FiniteRatio(excess / (std / stdScale) * stdScale)
}

// Sharpe is (cumulative realized / initial - rf) over the scaled population
// standard deviation of every realized sample. Undefined with fewer than two
// samples, a zero deviation, or a zero initial balance.
func (r *RiskRatios) Sharpe(cumRealized, initial decimal.Decimal, rf float64) model.Ratio {
	excess, ok := excessReturn(cumRealized, initial, rf)
	if !ok {
		return model.UndefinedRatio()
	}
	return scaled(excess, &r.all)
}

// Sortino mirrors Sharpe over the downside samples. With realized samples but
// no losses yet the ratio is +inf for a positive excess return.
func (r *RiskRatios) Sortino(cumRealized, initial decimal.Decimal, rf float64) model.Ratio {
	excess, ok := excessReturn(cumRealized, initial, rf)
	if !ok {
		return model.UndefinedRatio()
	}
	if r.downside.Count() == 0 {
		if r.all.Count() > 0 && excess > 0 {
			return model.InfRatio(1)
		}
		return model.UndefinedRatio()
	}
	return scaled(excess, &r.downside)
}

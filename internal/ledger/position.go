// Package ledger owns per-ticker position state: signed quantity, cost basis
// and average price. It applies one trade at a time and reports what the trade
// did (opened, added, reduced, closed, flipped) together with the realized P&L
// of the closed portion.
package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/atmx/portfolio-engine/internal/model"
)

// Position is the state of one ticker. Quantity is signed (long > 0, short < 0);
// CostBasis and AvgPrice are always non-negative magnitudes and are exactly
// zero whenever Quantity is zero.
type Position struct {
	Quantity  decimal.Decimal `json:"quantity"`
	CostBasis decimal.Decimal `json:"cost_basis"`
	AvgPrice  decimal.Decimal `json:"avg_price"`
}

// Direction is derived from the sign of the quantity.
func (p Position) Direction() model.Direction { return model.DirectionOf(p.Quantity) }

func (p Position) IsFlat() bool { return p.Quantity.IsZero() }

// Transition classifies the effect of a trade on a position.
type Transition int

const (
	Unchanged Transition = iota // hold, or zero magnitude
	Open
	Add
	Reduce
	Close
	Flip
)

func (t Transition) String() string {
	switch t {
	case Open:
		return "open"
	case Add:
		return "add"
	case Reduce:
		return "reduce"
	case Close:
		return "close"
	case Flip:
		return "flip"
	}
	return "unchanged"
}

// Opens reports whether the trade starts a new lot (fresh open or the new side of a flip).
func (t Transition) Opens() bool { return t == Open || t == Flip }

// Closes reports whether the trade ends a lot (full close or the old side of a flip).
func (t Transition) Closes() bool { return t == Close || t == Flip }

// Fill is the outcome of applying one trade.
type Fill struct {
	Prev       Position
	Next       Position
	Transition Transition

	// Closed is the magnitude taken off the previous lot.
	Closed decimal.Decimal

	// Realized is the P&L of the closed portion against the previous average
	// price. Invalid when nothing closed or the previous average was not positive.
	Realized decimal.NullDecimal

	// Return is Realized expressed per unit of previous average price.
	// Only meaningful when Realized is valid.
	Return float64
}

// Apply computes the effect of trading magnitude at price on prev. It does
// not mutate anything; the Book stores the result.
func Apply(prev Position, side model.Side, price, magnitude decimal.Decimal) Fill {
	f := Fill{Prev: prev, Next: prev, Closed: decimal.Zero}
	if side == model.Hold || magnitude.IsZero() {
		return f
	}

	oldQ := prev.Quantity
	newQ := oldQ.Add(magnitude)
	if side == model.Sell {
		newQ = oldQ.Sub(magnitude)
	}

	// Realized P&L uses the average price in effect before this trade.
	closing := (side == model.Sell && oldQ.IsPositive()) || (side == model.Buy && oldQ.IsNegative())
	if closing {
		f.Closed = decimal.Min(magnitude, oldQ.Abs())
		if f.Closed.IsPositive() && prev.AvgPrice.IsPositive() {
			perUnit := price.Sub(prev.AvgPrice)
			if oldQ.IsNegative() {
				perUnit = perUnit.Neg()
			}
			f.Realized = decimal.NewNullDecimal(perUnit.Mul(f.Closed))
			f.Return = perUnit.Div(prev.AvgPrice).InexactFloat64()
		}
	}

	oldAbs, newAbs := oldQ.Abs(), newQ.Abs()
	next := Position{Quantity: newQ}

	switch {
	case oldQ.IsZero():
		f.Transition = Open
		next.CostBasis = price.Mul(magnitude)
	case newQ.IsZero():
		f.Transition = Close
		next.CostBasis = decimal.Zero
	case oldQ.Sign() != newQ.Sign():
		// Only the excess beyond the closed lot is carried, at this price.
		f.Transition = Flip
		next.CostBasis = newAbs.Mul(price)
	case newAbs.GreaterThan(oldAbs):
		f.Transition = Add
		next.CostBasis = prev.CostBasis.Add(price.Mul(magnitude))
	default:
		f.Transition = Reduce
		next.CostBasis = prev.CostBasis.Mul(newAbs).Div(oldAbs)
	}

	if newQ.IsZero() {
		next.AvgPrice = decimal.Zero
	} else {
		next.AvgPrice = next.CostBasis.Div(newAbs)
	}
	f.Next = next
	return f
}

// Remaining returns available cash after the trade. Closing a long returns
// the sale proceeds; covering a short returns initial + (initial - final),
// where initial is the previous average price times the covered quantity and
// final is the execution price times it. Any excess beyond the closeable
// quantity opens a new lot and is paid at the execution price.
func Remaining(cash decimal.Decimal, prev Position, side model.Side, price, magnitude decimal.Decimal) decimal.Decimal {
	if side == model.Hold || magnitude.IsZero() {
		return cash
	}
	oldQ := prev.Quantity
	switch side {
	case model.Buy:
		if oldQ.IsNegative() {
			cover := decimal.Min(magnitude, oldQ.Abs())
			initial := prev.AvgPrice.Mul(cover)
			final := price.Mul(cover)
			cash = cash.Add(initial.Add(initial.Sub(final)))
			if excess := magnitude.Sub(cover); excess.IsPositive() {
				cash = cash.Sub(price.Mul(excess))
			}
			return cash
		}
		return cash.Sub(price.Mul(magnitude))
	case model.Sell:
		if oldQ.IsPositive() {
			closed := decimal.Min(magnitude, oldQ)
			cash = cash.Add(price.Mul(closed))
			if excess := magnitude.Sub(closed); excess.IsPositive() {
				cash = cash.Sub(price.Mul(excess))
			}
			return cash
		}
		return cash.Sub(price.Mul(magnitude))
	}
	return cash
}

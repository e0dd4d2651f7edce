package engine

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/atmx/portfolio-engine/internal/ledger"
	"github.com/atmx/portfolio-engine/internal/model"
)

var hundred = decimal.NewFromInt(100)

func ratioOf(v decimal.Decimal) model.Ratio {
	return model.FiniteRatio(v.InexactFloat64())
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	s = strings.ToLower(s)
	return strings.ToUpper(s[:1]) + s[1:]
}

// openStrings renders every open position as "T q", its cached value as
// "T v" and its unrealized P&L as "T u", in first-seen ticker order.
func (e *Engine) openStrings() (positions, values, unrealized string) {
	var pos, val, unr []string
	e.st.book.Each(func(ticker string, p ledger.Position) {
		mark := e.st.marks.Get(ticker)
		pos = append(pos, ticker+" "+p.Quantity.String())
		val = append(val, ticker+" "+mark.Value.String())
		unr = append(unr, ticker+" "+mark.Unrealized.String())
	})
	if len(pos) == 0 {
		return "None", "None", "None"
	}
	return strings.Join(pos, ", "), strings.Join(val, ", "), strings.Join(unr, ", ")
}

// riskLevels returns the liquidation, take-profit and stop-loss prices of an
// open position. All three are invalid when flat or without a positive
// average price.
func riskLevels(pos ledger.Position, tp, sl float64) (liq, takeProfit, stopLoss decimal.NullDecimal) {
	avg := pos.AvgPrice
	if pos.Quantity.IsZero() || !avg.IsPositive() {
		return
	}
	one := decimal.NewFromInt(1)
	tpd, sld := decimal.NewFromFloat(tp), decimal.NewFromFloat(sl)
	if pos.Quantity.IsPositive() {
		liq = decimal.NewNullDecimal(decimal.Zero)
		takeProfit = decimal.NewNullDecimal(avg.Mul(one.Add(tpd)))
		stopLoss = decimal.NewNullDecimal(avg.Mul(one.Sub(sld)))
		return
	}
	liq = decimal.NewNullDecimal(avg.Mul(decimal.NewFromInt(2)))
	takeProfit = decimal.NewNullDecimal(avg.Mul(one.Sub(tpd)))
	stopLoss = decimal.NewNullDecimal(avg.Mul(one.Add(sld)))
	return
}

package lifecycle

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/portfolio-engine/internal/model"
)

// Monthly counts trades active in the event's calendar month: the trades
// still open when the month began plus those opened within it.
type Monthly struct {
	year    int
	month   time.Month
	carried int
	opened  map[int]struct{}
}

func NewMonthly() *Monthly {
	return &Monthly{opened: make(map[int]struct{})}
}

// Update renders "count (Month)". openBefore is the number of trades open
// before this event and seeds the count when the month changes. opening
// marks an event that starts a lot (including the new side of a flip) with
// id as that lot's trade id. Empty without a date.
func (m *Monthly) Update(date time.Time, ok bool, openBefore int, opening bool, id int) string {
	if !ok {
		return ""
	}
	if date.Year() != m.year || date.Month() != m.month {
		m.year, m.month = date.Year(), date.Month()
		m.carried = openBefore
		m.opened = make(map[int]struct{})
	}
	if opening && id > 0 {
		m.opened[id] = struct{}{}
	}
	return fmt.Sprintf("%d (%s)", m.carried+len(m.opened), m.month)
}

type openedAt struct {
	period int
	date   time.Time
	dated  bool
}

// Holding measures days held per closed lot, weighted by the closed
// quantity. Without dates on both ends the event count stands in for days.
type Holding struct {
	open   map[string]openedAt
	sum    decimal.Decimal
	closed decimal.Decimal
}

func NewHolding() *Holding {
	return &Holding{open: make(map[string]openedAt), sum: decimal.Zero, closed: decimal.Zero}
}

// Open starts timing ticker's lot unless one is already timed.
func (h *Holding) Open(ticker string, period int, date time.Time, dated bool) {
	if _, ok := h.open[ticker]; ok {
		return
	}
	h.open[ticker] = openedAt{period: period, date: date, dated: dated}
}

// Close ends ticker's lot at period/date and folds qty into the average.
func (h *Holding) Close(ticker string, period int, date time.Time, dated bool, qty decimal.Decimal) {
	o, ok := h.open[ticker]
	if !ok {
		return
	}
	delete(h.open, ticker)
	if !qty.IsPositive() {
		return
	}
	days := period - o.period + 1
	if o.dated && dated {
		days = int(math.Floor(date.Sub(o.date).Hours() / 24))
	}
	h.sum = h.sum.Add(decimal.NewFromInt(int64(days)).Mul(qty))
	h.closed = h.closed.Add(qty)
}

// Average is the weighted mean days held, rounded to 3 places. It is shown
// only on rows that close a lot.
func (h *Holding) Average(closing bool) model.Ratio {
	if !closing || !h.closed.IsPositive() {
		return model.UndefinedRatio()
	}
	return model.FiniteRatio(h.sum.Div(h.closed).Round(3).InexactFloat64())
}

// Package outcome accumulates the trade outcome, ranking and capital
// composition columns. Each accumulator folds in the current event's
// contribution; none looks back at earlier rows.
package outcome

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/atmx/portfolio-engine/internal/model"
)

// Outcome is the sign of a trade's P&L.
type Outcome int

const (
	Neither Outcome = iota
	Win
	Loss
)

func (o Outcome) String() string {
	switch o {
	case Win:
		return "Win"
	case Loss:
		return "Loss"
	}
	return ""
}

func outcomeOf(v decimal.Decimal) Outcome {
	switch v.Sign() {
	case 1:
		return Win
	case -1:
		return Loss
	}
	return Neither
}

// Classify labels a row from its realized and unrealized P&L. Rows without a
// trade id are never labelled.
func Classify(hasID bool, realized decimal.NullDecimal, unrealized decimal.Decimal) Outcome {
	if !hasID {
		return Neither
	}
	total := unrealized
	if realized.Valid {
		total = total.Add(realized.Decimal)
	}
	return outcomeOf(total)
}

// WinLoss keeps finalized win/loss counts plus one slot per open trade that
// reflects the sign of its unrealized P&L.
type WinLoss struct {
	wins, losses int
	slots        map[string]Outcome
}

func NewWinLoss() *WinLoss {
	return &WinLoss{slots: make(map[string]Outcome)}
}

// Update folds one event on ticker into the counts. closing marks a full
// close or a flip; realized is the P&L of the closed portion.
func (w *WinLoss) Update(ticker string, closing bool, realized decimal.NullDecimal, unrealized, newQ decimal.Decimal) {
	if closing {
		delete(w.slots, ticker)
		if realized.Valid {
			if realized.Decimal.IsPositive() {
				w.wins++
			} else {
				w.losses++
			}
		}
		if newQ.IsZero() {
			return
		}
	}
	if newQ.IsZero() {
		delete(w.slots, ticker)
		return
	}
	if o := outcomeOf(unrealized); o != Neither {
		w.slots[ticker] = o
	} else {
		delete(w.slots, ticker)
	}
}

// counts adds ticker's open slot to the finalized counts. Only the current
// ticker's slot is included so that rows with and without interleaved holds
// agree at the same (date, ticker).
func (w *WinLoss) counts(ticker string) (int, int) {
	wins, losses := w.wins, w.losses
	switch w.slots[ticker] {
	case Win:
		wins++
	case Loss:
		losses++
	}
	return wins, losses
}

// Rate is the win percentage, undefined before any outcome.
func (w *WinLoss) Rate(ticker string) model.Ratio {
	wins, losses := w.counts(ticker)
	if wins+losses == 0 {
		return model.UndefinedRatio()
	}
	return model.FiniteRatio(float64(wins) / float64(wins+losses) * 100)
}

// Ratio renders "wins:losses".
func (w *WinLoss) Ratio(ticker string) string {
	wins, losses := w.counts(ticker)
	return fmt.Sprintf("%d:%d", wins, losses)
}

// Package lifecycle follows each ticker's trade from open to close: it mints
// trade ids, renders the trade descriptor, counts trades per calendar month and
// measures how long closed lots were held.
package lifecycle

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/atmx/portfolio-engine/internal/model"
)

// Tracker assigns trade ids. A ticker holds an active id exactly while its
// quantity is non-zero. Ids come from one global counter and are never reused.
type Tracker struct {
	active map[string]int
	next   int
}

func NewTracker() *Tracker {
	return &Tracker{active: make(map[string]int), next: 1}
}

// Assign returns the id to show on the event's row and updates the active id.
//
//	open (0 → q)      mints a new id
//	continue          keeps the id
//	close (q → 0)     returns the id and retires it
//	flip (q → -q')    returns the old id and mints the next one for the new lot
//	hold              returns the id if the ticker is open
func (t *Tracker) Assign(ticker string, side model.Side, oldQ, newQ decimal.Decimal) (int, bool) {
	id, tracked := t.active[ticker]
	if side == model.Hold {
		if tracked && !oldQ.IsZero() {
			return id, true
		}
		return 0, false
	}

	switch {
	case oldQ.IsZero() && !newQ.IsZero():
		t.active[ticker] = t.mint()
		return t.active[ticker], true
	case !oldQ.IsZero() && newQ.IsZero():
		delete(t.active, ticker)
		return id, tracked
	case !oldQ.IsZero() && oldQ.Sign() != newQ.Sign():
		t.active[ticker] = t.mint()
		return id, tracked
	case !oldQ.IsZero():
		return id, tracked
	}
	return 0, false
}

func (t *Tracker) mint() int {
	id := t.next
	t.next++
	return id
}

// Active returns the id of ticker's open trade.
func (t *Tracker) Active(ticker string) (int, bool) {
	id, ok := t.active[ticker]
	return id, ok
}

// Minted is the number of ids handed out so far.
func (t *Tracker) Minted() int { return t.next - 1 }

// Open is the number of currently active ids.
func (t *Tracker) Open() int { return len(t.active) }

// NoTrade is the descriptor of a row that carries no trade id.
const NoTrade = "No Buy/Sell"

// Descriptor renders "Direction - Side - #id Trade - |q|", suffixed with
// " - Close" when the quantity reaches zero or " - Flipped" when the event
// reversed direction.
func Descriptor(side model.Side, dir model.Direction, id int, ok bool, newQ decimal.Decimal, flipped bool) string {
	if !ok {
		return NoTrade
	}
	dirName := "Null"
	if dir != model.Flat {
		dirName = dir.String()
	}
	qty := newQ.Abs().String()
	switch {
	case newQ.IsZero():
		qty += " - Close"
	case flipped:
		qty += " - Flipped"
	}
	return fmt.Sprintf("%s - %s - #%d Trade - %s", dirName, side, id, qty)
}

// TotalTrades renders the running trade count, carrying prev forward on rows
// without a trade id.
func TotalTrades(minted int, hasID bool, prev string) string {
	if !hasID {
		if prev == "" {
			return NoTrade
		}
		return prev
	}
	return fmt.Sprintf("%d Trades", minted)
}

package ledger

import "github.com/shopspring/decimal"

// Book holds every ticker's Position. Tickers are remembered in the order
// they were first seen so that rendered lists are stable across runs.
type Book struct {
	positions map[string]Position
	order     []string
	open      int
}

func NewBook() *Book {
	return &Book{positions: make(map[string]Position)}
}

// Get returns the position for ticker; unknown tickers are flat.
func (b *Book) Get(ticker string) Position {
	p, ok := b.positions[ticker]
	if !ok {
		return Position{Quantity: decimal.Zero, CostBasis: decimal.Zero, AvgPrice: decimal.Zero}
	}
	return p
}

// Set stores the position for ticker and keeps the open-position count current.
func (b *Book) Set(ticker string, p Position) {
	prev, seen := b.positions[ticker]
	if !seen {
		b.order = append(b.order, ticker)
	}
	if seen && !prev.IsFlat() {
		b.open--
	}
	if !p.IsFlat() {
		b.open++
	}
	b.positions[ticker] = p
}

// Holdings is the number of tickers with a non-zero quantity.
func (b *Book) Holdings() int { return b.open }

// Each calls fn for every open position in first-seen order.
func (b *Book) Each(fn func(ticker string, p Position)) {
	for _, t := range b.order {
		if p := b.positions[t]; !p.IsFlat() {
			fn(t, p)
		}
	}
}

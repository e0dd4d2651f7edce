// Package classify resolves a ticker's asset type and, for equities, its
// market-cap bucket, industry and sector.
package classify

import (
	"strings"

	"github.com/atmx/portfolio-engine/internal/model"
)

// Lookup returns reference classification data for a ticker.
type Lookup interface {
	Lookup(ticker string) (model.Classification, bool)
}

// Table is a static in-memory Lookup keyed by upper-case ticker.
type Table map[string]model.Classification

func (t Table) Lookup(ticker string) (model.Classification, bool) {
	c, ok := t[strings.ToUpper(ticker)]
	return c, ok
}

// Resolver merges event hints, the reference table and what was resolved for
// the ticker on earlier events, in that order of precedence.
type Resolver struct {
	ref   Lookup
	known map[string]model.Classification
}

// NewResolver returns a Resolver backed by ref; nil uses Default.
func NewResolver(ref Lookup) *Resolver {
	if ref == nil {
		ref = Default
	}
	return &Resolver{ref: ref, known: make(map[string]model.Classification)}
}

func first(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// Resolve returns the ticker's classification and remembers it. Market cap,
// industry and sector are only kept for equities.
func (r *Resolver) Resolve(ticker string, hint model.Classification) model.Classification {
	ref, _ := r.ref.Lookup(ticker)
	prev := r.known[ticker]

	c := model.Classification{AssetType: first(hint.AssetType, ref.AssetType, prev.AssetType)}
	if strings.EqualFold(c.AssetType, "equity") {
		c.MarketCap = first(hint.MarketCap, ref.MarketCap, prev.MarketCap)
		c.Industry = first(hint.Industry, ref.Industry, prev.Industry)
		c.Sector = first(hint.Sector, ref.Sector, prev.Sector)
	}
	r.known[ticker] = c
	return c
}

func equity(mcap, industry, sector string) model.Classification {
	return model.Classification{AssetType: "Equity", MarketCap: mcap, Industry: industry, Sector: sector}
}

var (
	crypto      = model.Classification{AssetType: "Crypto"}
	plainEquity = model.Classification{AssetType: "Equity"}
)

// Default is the built-in reference table.
var Default = Table{
	"AAPL":  equity("High", "Software", "Technology"),
	"MSFT":  equity("High", "Software", "Technology"),
	"NVDA":  equity("High", "Software", "Technology"),
	"TSLA":  equity("High", "Auto Manufacturers", "Consumer Cyclical"),
	"JPM":   equity("High", "Credit Services", "Financial Services"),
	"V":     equity("High", "Credit Services", "Financial Services"),
	"JNJ":   equity("High", "Drug Manufacturers", "Healthcare"),
	"PFE":   equity("Mid", "Drug Manufacturers", "Healthcare"),
	"SQ":    equity("Mid", "Software", "Technology"),
	"PLTR":  equity("Mid", "Software", "Technology"),
	"DOCU":  equity("Mid", "Software", "Technology"),
	"F":     equity("Mid", "Auto Manufacturers", "Consumer Cyclical"),
	"GM":    equity("Mid", "Auto Manufacturers", "Consumer Cyclical"),
	"COIN":  equity("Mid", "Credit Services", "Financial Services"),
	"SOFI":  equity("Low", "Credit Services", "Financial Services"),
	"LCID":  equity("Low", "Auto Manufacturers", "Consumer Cyclical"),
	"RIVN":  equity("Low", "Auto Manufacturers", "Consumer Cyclical"),
	"HOOD":  equity("Low", "Credit Services", "Financial Services"),
	"PATH":  equity("Low", "Software", "Technology"),
	"GOOGL": plainEquity,
	"GOOG":  plainEquity,
	"AMZN":  plainEquity,
	"META":  plainEquity,
	"BRK.A": plainEquity,
	"BRK.B": plainEquity,
	"PG":    plainEquity,
	"XOM":   plainEquity,
	"CVX":   plainEquity,
	"HD":    plainEquity,
	"MA":    plainEquity,
	"UNH":   plainEquity,
	"DIS":   plainEquity,
	"KO":    plainEquity,
	"PEP":   plainEquity,
	"INTC":  plainEquity,
	"NFLX":  plainEquity,
	"ADBE":  plainEquity,
	"ORCL":  plainEquity,
	"CSCO":  plainEquity,
	"SPY":   plainEquity,
	"IVV":   plainEquity,
	"VOO":   plainEquity,
	"QQQ":   plainEquity,

	"BTC":      crypto,
	"BTCUSD":   crypto,
	"BTC-USDT": crypto,
	"ETH":      crypto,
	"ETHUSD":   crypto,
	"ETH-USDT": crypto,
	"SOL":      crypto,
	"SOLUSD":   crypto,
	"BNB":      crypto,
	"XRP":      crypto,
	"ADA":      crypto,
	"DOGE":     crypto,
	"DOGEUSD":  crypto,
}

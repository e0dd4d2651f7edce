// Package csvio reads trade events from broker-style CSV exports and writes
// the ledger back out in the canonical column order.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/atmx/portfolio-engine/internal/model"
	"github.com/atmx/portfolio-engine/internal/normalize"
)

var (
	ErrMissingColumn = errors.New("csvio: missing required column")
	ErrInvalidRow    = errors.New("csvio: invalid row")
	ErrInvalidPrice  = errors.New("csvio: invalid price")
)

// RowError reports the 1-based data row (header excluded) that failed.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%v %d: %v", ErrInvalidRow, e.Row, e.Err)
}

func (e *RowError) Unwrap() []error { return []error{ErrInvalidRow, e.Err} }

type field int

const (
	fieldTicker field = iota
	fieldSide
	fieldPrice
	fieldQuantity
	fieldDate
	fieldAssetType
	fieldMarketCap
	fieldIndustry
	fieldSector
	numFields
)

var fieldNames = [numFields]string{"ticker", "side", "price", "quantity", "date", "asset type", "market cap", "industry", "sector"}

// aliases maps a lower-cased, trimmed header to the field it fills. The
// first matching header wins.
var aliases = map[string]field{
	"ticker":         fieldTicker,
	"symbol":         fieldTicker,
	"asset":          fieldTicker,
	"instrument":     fieldTicker,
	"side":           fieldSide,
	"action":         fieldSide,
	"type":           fieldSide,
	"direction":      fieldSide,
	"buy/sell":       fieldSide,
	"price":          fieldPrice,
	"executed price": fieldPrice,
	"fill price":     fieldPrice,
	"trade price":    fieldPrice,
	"quantity":       fieldQuantity,
	"qty":            fieldQuantity,
	"quantity buy":   fieldQuantity,
	"amount":         fieldQuantity,
	"shares":         fieldQuantity,
	"size":           fieldQuantity,
	"date":           fieldDate,
	"datetime":       fieldDate,
	"timestamp":      fieldDate,
	"time":           fieldDate,
	"trade date":     fieldDate,
	"asset type":     fieldAssetType,
	"asset_type":     fieldAssetType,
	"market cap":     fieldMarketCap,
	"market_cap":     fieldMarketCap,
	"industry":       fieldIndustry,
	"sector":         fieldSector,
}

var required = []field{fieldTicker, fieldSide, fieldPrice, fieldQuantity}

// Reader decodes trade events one row at a time.
type Reader struct {
	csv *csv.Reader
	idx [numFields]int
	row int
}

// NewReader consumes the header row and resolves column aliases.
func NewReader(r io.Reader) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty input", ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("csvio: read header: %w", err)
	}

	rd := &Reader{csv: cr}
	for i := range rd.idx {
		rd.idx[i] = -1
	}
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if f, ok := aliases[key]; ok && rd.idx[f] < 0 {
			rd.idx[f] = i
		}
	}

	var missing []string
	for _, f := range required {
		if rd.idx[f] < 0 {
			missing = append(missing, fieldNames[f])
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return rd, nil
}

func (r *Reader) get(rec []string, f field) string {
	i := r.idx[f]
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// ParsePrice accepts plain decimals and tolerates currency symbols and
// thousands separators.
func ParsePrice(s string) (decimal.Decimal, error) {
	clean := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(s))
	p, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrInvalidPrice, s)
	}
	return p, nil
}

// Next returns the next event, or io.EOF after the last row. Blank lines
// are skipped by encoding/csv.
func (r *Reader) Next() (model.TradeEvent, error) {
	rec, err := r.csv.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return model.TradeEvent{}, io.EOF
		}
		r.row++
		return model.TradeEvent{}, &RowError{Row: r.row, Err: err}
	}
	r.row++

	ev, err := r.decode(rec)
	if err != nil {
		return model.TradeEvent{}, &RowError{Row: r.row, Err: err}
	}
	return ev, nil
}

func (r *Reader) decode(rec []string) (model.TradeEvent, error) {
	side, err := model.ParseSide(r.get(rec, fieldSide))
	if err != nil {
		return model.TradeEvent{}, err
	}
	price, err := ParsePrice(r.get(rec, fieldPrice))
	if err != nil {
		return model.TradeEvent{}, err
	}
	qty := decimal.Zero
	if raw := r.get(rec, fieldQuantity); raw != "" || side != model.Hold {
		if qty, err = normalize.QuantityString(raw); err != nil {
			return model.TradeEvent{}, err
		}
	}
	return model.TradeEvent{
		Ticker:   r.get(rec, fieldTicker),
		Side:     side,
		Price:    price,
		Quantity: qty,
		Date:     r.get(rec, fieldDate),
		Class: model.Classification{
			AssetType: r.get(rec, fieldAssetType),
			MarketCap: r.get(rec, fieldMarketCap),
			Industry:  r.get(rec, fieldIndustry),
			Sector:    r.get(rec, fieldSector),
		},
	}, nil
}

// Row is the number of data rows read so far.
func (r *Reader) Row() int { return r.row }

// ReadAll decodes every row. It stops at the first bad row.
func ReadAll(src io.Reader) ([]model.TradeEvent, error) {
	r, err := NewReader(src)
	if err != nil {
		return nil, err
	}
	var out []model.TradeEvent
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, ev)
	}
}

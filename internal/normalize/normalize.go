// Package normalize turns loosely formatted trade inputs into the values the
// engine works with: unsigned quantity magnitudes and timestamps.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrMalformedQuantity = errors.New("normalize: malformed quantity")

// parenRegex matches accounting notation: "(N)" and "-(N)".
var parenRegex = regexp.MustCompile(`^-?\((.+)\)$`)

// Quantity parses a quantity value into an unsigned magnitude. Numbers are
// taken by absolute value; strings may be "N", "-N", "(N)" or "-(N)", with
// any embedded whitespace ignored. The sign never survives: direction is
// carried by the trade side.
func Quantity(v any) (decimal.Decimal, error) {
	switch q := v.(type) {
	case decimal.Decimal:
		return q.Abs(), nil
	case *decimal.Decimal:
		if q == nil {
			return decimal.Zero, fmt.Errorf("%w: nil", ErrMalformedQuantity)
		}
		return q.Abs(), nil
	case float64:
		if math.IsNaN(q) || math.IsInf(q, 0) {
			return decimal.Zero, fmt.Errorf("%w: %v", ErrMalformedQuantity, q)
		}
		return decimal.NewFromFloat(q).Abs(), nil
	case float32:
		if f := float64(q); math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Zero, fmt.Errorf("%w: %v", ErrMalformedQuantity, q)
		}
		return decimal.NewFromFloat32(q).Abs(), nil
	case int:
		return decimal.NewFromInt(int64(q)).Abs(), nil
	case int64:
		return decimal.NewFromInt(q).Abs(), nil
	case int32:
		return decimal.NewFromInt32(q).Abs(), nil
	case json.Number:
		return QuantityString(q.String())
	case string:
		return QuantityString(q)
	case nil:
		return decimal.Zero, fmt.Errorf("%w: missing", ErrMalformedQuantity)
	}
	return decimal.Zero, fmt.Errorf("%w: unsupported type %T", ErrMalformedQuantity, v)
}

// QuantityString is Quantity for string input.
func QuantityString(s string) (decimal.Decimal, error) {
	compact := strings.Join(strings.Fields(s), "")
	if m := parenRegex.FindStringSubmatch(compact); m != nil {
		compact = m[1]
	}
	d, err := decimal.NewFromString(compact)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrMalformedQuantity, s)
	}
	return d.Abs(), nil
}

// dateLayouts are tried in order. Day-first layouts only match where the
// month-first reading is impossible (e.g. 25/12/2024).
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	"1/2/2006",
	"1/2/2006 15:04:05",
	"2/1/2006",
	"2/1/2006 15:04:05",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// Timestamp parses a trade date. It reports false instead of failing so that
// date-dependent metrics can degrade while the rest of the row is computed.
func Timestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

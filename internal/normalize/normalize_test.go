package normalize

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestQuantity_Notations(t *testing.T) {
	tests := []struct {
		in   any
		want float64
	}{
		{"5", 5},
		{"  12.5 ", 12.5},
		{"(7)", 7},
		{"-(7)", 7},
		{"-3", 3},
		{"( 1 000 )", 1000},
		{10, 10},
		{int64(-4), 4},
		{-2.25, 2.25},
		{json.Number("8"), 8},
		{d(-9), 9},
	}
	for _, tt := range tests {
		got, err := Quantity(tt.in)
		if err != nil {
			t.Errorf("Quantity(%v): unexpected error: %v", tt.in, err)
			continue
		}
		if !got.Equal(d(tt.want)) {
			t.Errorf("Quantity(%v) = %s, want %v", tt.in, got, tt.want)
		}
	}
}

func TestQuantity_Malformed(t *testing.T) {
	for _, in := range []any{"", "abc", "()", "-(x)", "1.2.3", nil, []int{1}} {
		if _, err := Quantity(in); !errors.Is(err, ErrMalformedQuantity) {
			t.Errorf("Quantity(%#v): expected ErrMalformedQuantity, got %v", in, err)
		}
	}
}

func TestQuantity_NonFiniteFloats(t *testing.T) {
	for _, in := range []any{math.NaN(), math.Inf(1), math.Inf(-1), float32(math.Inf(1)), float32(math.NaN())} {
		got, err := Quantity(in)
		if !errors.Is(err, ErrMalformedQuantity) {
			t.Errorf("Quantity(%v): expected ErrMalformedQuantity, got %v", in, err)
		}
		if !got.IsZero() {
			t.Errorf("Quantity(%v) = %s, want zero", in, got)
		}
	}
}

func TestTimestamp(t *testing.T) {
	ok := []string{
		"2024-03-01",
		"2024-03-01 09:30:00",
		"03/01/2024",
		"1/2/2025",
		"25/12/2024",
		"2024-03-01T09:30:00Z",
		"2024-03-01T09:30",
	}
	for _, s := range ok {
		if _, parsed := Timestamp(s); !parsed {
			t.Errorf("Timestamp(%q): expected to parse", s)
		}
	}

	got, _ := Timestamp("25/12/2024")
	if got.Month() != 12 || got.Day() != 25 {
		t.Errorf("day-first fallback: got %s", got)
	}

	for _, s := range []string{"", "yesterday", "2024-13-45"} {
		if _, parsed := Timestamp(s); parsed {
			t.Errorf("Timestamp(%q): expected failure", s)
		}
	}
}

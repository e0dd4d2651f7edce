package model

import (
	"encoding/json"
	"math"
	"strconv"
)

// RatioKind tells a defined number apart from the two explicit infinities
// and from "undefined".
type RatioKind uint8

const (
	Undefined RatioKind = iota
	Finite
	PosInf
	NegInf
)

// Ratio is a float statistic that may be undefined or infinite. It never
// carries NaN: constructors fold NaN into Undefined.
//
// JSON: undefined is null, finite is a number, infinities are "inf" / "-inf".
type Ratio struct {
	Kind  RatioKind
	Value float64
}

func UndefinedRatio() Ratio { return Ratio{} }

func FiniteRatio(v float64) Ratio {
	switch {
	case math.IsNaN(v):
		return Ratio{}
	case math.IsInf(v, 1):
		return Ratio{Kind: PosInf}
	case math.IsInf(v, -1):
		return Ratio{Kind: NegInf}
	}
	return Ratio{Kind: Finite, Value: v}
}

// InfRatio returns +inf for sign >= 0 and -inf otherwise.
func InfRatio(sign int) Ratio {
	if sign < 0 {
		return Ratio{Kind: NegInf}
	}
	return Ratio{Kind: PosInf}
}

func (r Ratio) Defined() bool { return r.Kind != Undefined }

// Float returns the value as a float64 (±Inf for the infinite kinds) and
// whether it is defined.
func (r Ratio) Float() (float64, bool) {
	switch r.Kind {
	case Finite:
		return r.Value, true
	case PosInf:
		return math.Inf(1), true
	case NegInf:
		return math.Inf(-1), true
	}
	return 0, false
}

func (r Ratio) String() string {
	switch r.Kind {
	case Finite:
		return strconv.FormatFloat(r.Value, 'f', -1, 64)
	case PosInf:
		return "inf"
	case NegInf:
		return "-inf"
	}
	return ""
}

func (r Ratio) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case Finite:
		return []byte(strconv.FormatFloat(r.Value, 'g', -1, 64)), nil
	case PosInf, NegInf:
		return json.Marshal(r.String())
	}
	return []byte("null"), nil
}

func (r *Ratio) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		*r = Ratio{}
		return nil
	}
	if len(s) > 0 && s[0] == '"' {
		var text string
		if err := json.Unmarshal(b, &text); err != nil {
			return err
		}
		return r.UnmarshalText([]byte(text))
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*r = FiniteRatio(v)
	return nil
}

// MarshalText is used by encoders without JSON support (msgpack cache pages).
func (r Ratio) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Ratio) UnmarshalText(b []byte) error {
	switch s := string(b); s {
	case "":
		*r = Ratio{}
	case "inf", "+inf":
		*r = Ratio{Kind: PosInf}
	case "-inf":
		*r = Ratio{Kind: NegInf}
	default:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*r = FiniteRatio(v)
	}
	return nil
}

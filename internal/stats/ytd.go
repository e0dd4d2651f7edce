package stats

import (
	"time"

	"github.com/shopspring/decimal"
)

// YTD measures realized P&L since the first event of the current calendar
// year. The baseline is the cumulative realized P&L carried into the year.
type YTD struct {
	year     int
	baseline decimal.Decimal
}

// Update returns cumRealized minus the baseline of date's year. carried is the
// cumulative realized P&L as of the previous event and becomes the baseline
// whenever the year changes. Invalid without a date.
func (y *YTD) Update(date time.Time, ok bool, cumRealized, carried decimal.Decimal) decimal.NullDecimal {
	if !ok {
		return decimal.NullDecimal{}
	}
	if date.Year() != y.year {
		y.year = date.Year()
		y.baseline = carried
	}
	return decimal.NewNullDecimal(cumRealized.Sub(y.baseline))
}

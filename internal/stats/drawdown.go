package stats

import (
	"math"
	"time"

	"github.com/atmx/portfolio-engine/internal/model"
)

// Drawdown tracks a running peak and the largest fractional decline from it.
// The first observed value seeds the peak.
type Drawdown struct {
	seeded bool
	peak   float64
	max    float64
}

// Update folds v into the tracker and returns the maximum drawdown so far as
// a fraction in [0, 1] for positive series.
func (d *Drawdown) Update(v float64) float64 {
	if !d.seeded {
		d.seeded = true
		d.peak = v
		d.max = 0
	}
	if v > d.peak {
		d.peak = v
	} else if d.peak > 0 {
		if dd := (d.peak - v) / d.peak; dd > d.max {
			d.max = dd
		}
	}
	return d.max
}

func (d *Drawdown) Max() float64  { return d.max }
func (d *Drawdown) Peak() float64 { return d.peak }

// minCalmarDrawdown is the drawdown below which the account is treated as
// having never declined.
const minCalmarDrawdown = 0.0001

// Calmar is annualized account return over the maximum drawdown of account
// value. It needs dated events: the elapsed days come from the earliest and
// latest dates seen so far.
type Calmar struct {
	dated    bool
	min, max time.Time
	dd       Drawdown
}

// Update records the account value at date and returns the ratio. Undated
// events (ok=false) leave the tracker untouched and yield undefined.
func (c *Calmar) Update(account, initial float64, date time.Time, ok bool) model.Ratio {
	if initial == 0 || !ok {
		return model.UndefinedRatio()
	}
	if !c.dated || date.Before(c.min) {
		c.min = date
	}
	if !c.dated || date.After(c.max) {
		c.max = date
	}
	c.dated = true

	days := int(c.max.Sub(c.min).Hours() / 24)
	ratio := account / initial
	arr := ratio - 1
	if days > 0 {
		if a := math.Pow(ratio, 365.0/float64(days)) - 1; !math.IsNaN(a) {
			arr = a
		}
	}

	if dd := c.dd.Update(account); dd < minCalmarDrawdown {
		c.dd.max = 0
	}
	mdd := c.dd.max

	if mdd == 0 {
		switch {
		case arr > 0:
			return model.InfRatio(1)
		case arr == 0:
			return model.FiniteRatio(0)
		}
		return model.UndefinedRatio()
	}
	return model.FiniteRatio(arr / mdd)
}

package stats

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/atmx/portfolio-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestWelford_MatchesBatchPopulationVariance(t *testing.T) {
	samples := []float64{10, -4.5, 6, 0.25, -12, 3, 3, 18.75}
	var w Welford
	for i, x := range samples {
		w.Add(x)
		batch := samples[:i+1]
		assert.InDelta(t, stat.Mean(batch, nil), w.Mean(), 1e-9)
		assert.InDelta(t, stat.PopVariance(batch, nil), w.PopVariance(), 1e-9)
	}
	assert.Equal(t, len(samples), w.Count())
}

func TestSharpe(t *testing.T) {
	var r RiskRatios
	r.Observe(d(10))
	assert.False(t, r.Sharpe(d(10), d(200), 0).Defined(), "one sample")

	r.Observe(d(-4))
	// population std of {10, -4} is 7
	got, ok := r.Sharpe(d(6), d(200), 0).Float()
	require.True(t, ok)
	assert.InDelta(t, (6.0/200)/(7.0/100)*100, got, 1e-9)

	assert.False(t, r.Sharpe(d(6), decimal.Zero, 0).Defined(), "zero initial balance")
}

func TestSharpe_ZeroDeviationUndefined(t *testing.T) {
	var r RiskRatios
	r.Observe(d(5))
	r.Observe(d(5))
	assert.False(t, r.Sharpe(d(10), d(100), 0).Defined())
}

func TestSortino(t *testing.T) {
	var r RiskRatios
	assert.False(t, r.Sortino(d(0), d(100), 0).Defined(), "no samples")

	r.Observe(d(10))
	assert.Equal(t, model.PosInf, r.Sortino(d(10), d(100), 0).Kind)
	assert.False(t, r.Sortino(d(10), d(100), 0.5).Defined(), "non-positive excess with no downside")

	r.Observe(d(-2))
	assert.False(t, r.Sortino(d(8), d(100), 0).Defined(), "one downside sample")

	r.Observe(d(-6))
	got, ok := r.Sortino(d(2), d(100), 0).Float()
	require.True(t, ok)
	assert.InDelta(t, (2.0/100)/(2.0/100)*100, got, 1e-9)
}

func TestDrawdown(t *testing.T) {
	var dd Drawdown
	for _, v := range []float64{100, 120, 90, 110, 60, 130} {
		dd.Update(v)
	}
	assert.InDelta(t, 0.5, dd.Max(), 1e-12)
	assert.Equal(t, 130.0, dd.Peak())
}

func TestDrawdown_NonPositivePeakIgnored(t *testing.T) {
	var dd Drawdown
	dd.Update(0)
	dd.Update(-5)
	assert.Equal(t, 0.0, dd.Max())
}

func TestCalmar(t *testing.T) {
	var c Calmar
	assert.False(t, c.Update(100, 100, time.Time{}, false).Defined(), "undated")

	got := c.Update(100, 100, day("2024-01-01"), true)
	assert.Equal(t, model.FiniteRatio(0), got, "no gain, no drawdown")

	got = c.Update(110, 100, day("2024-01-01"), true)
	assert.Equal(t, model.PosInf, got.Kind)

	got = c.Update(99, 100, day("2024-07-01"), true)
	v, ok := got.Float()
	require.True(t, ok)
	days := 182.0
	arr := math.Pow(0.99, 365/days) - 1
	assert.InDelta(t, arr/(11.0/110), v, 1e-9)
}

func TestCalmar_NegativeReturnNoDrawdownUndefined(t *testing.T) {
	var c Calmar
	got := c.Update(90, 100, day("2024-01-01"), true)
	assert.False(t, got.Defined())
}

func TestCalmar_TinyDrawdownTreatedAsZero(t *testing.T) {
	var c Calmar
	c.Update(1000, 900, day("2024-01-01"), true)
	got := c.Update(999.95, 900, day("2024-01-02"), true)
	assert.Equal(t, model.PosInf, got.Kind)
}

func TestTradeReturns(t *testing.T) {
	tr := NewTradeReturns()
	assert.False(t, tr.AvgPct().Defined())
	assert.False(t, tr.MaxDrawdown().Defined())
	assert.False(t, tr.RewardRisk().Defined())

	tr.Add(0.10)
	assert.Equal(t, model.PosInf, tr.RewardRisk().Kind)

	tr.Add(-0.20)
	tr.Add(0.30)

	win, _ := tr.AvgWinningPct().Float()
	loss, _ := tr.AvgLosingPct().Float()
	avg, _ := tr.AvgPct().Float()
	assert.InDelta(t, 20, win, 1e-9)
	assert.InDelta(t, -20, loss, 1e-9)
	assert.InDelta(t, 20.0/3, avg, 1e-9)

	rr, _ := tr.RewardRisk().Float()
	assert.InDelta(t, 1, rr, 1e-9)

	exp, ok := tr.Expectancy(model.FiniteRatio(50)).Float()
	require.True(t, ok)
	assert.InDelta(t, 0, exp, 1e-9)
	assert.False(t, tr.Expectancy(model.UndefinedRatio()).Defined())

	// 100 -> 110 -> 88 -> 114.4
	mdd, _ := tr.MaxDrawdown().Float()
	assert.InDelta(t, -20, mdd, 1e-9)
}

func TestNetPerformance(t *testing.T) {
	p := NewNetPerformance()
	assert.Equal(t, model.FiniteRatio(0), p.Percent())

	p.Trade("AAPL", d(10), d(0), d(10))
	p.Trade("AAPL", d(12), d(10), d(5))
	v, _ := p.Percent().Float()
	assert.InDelta(t, 20, v, 1e-9, "open long marked at last price")

	p.Trade("AAPL", d(11), d(5), d(0))
	v, _ = p.Percent().Float()
	assert.InDelta(t, 10, v, 1e-9, "completed at 11")

	p.Trade("TSLA", d(20), d(0), d(-5))
	p.Trade("TSLA", d(18), d(-5), d(-2))
	v, _ = p.Percent().Float()
	assert.InDelta(t, (1.1*1.1-1)*100, v, 1e-9)
}

func TestNetPerformance_FlipCompletesAndReopens(t *testing.T) {
	p := NewNetPerformance()
	p.Trade("AAPL", d(10), d(0), d(5))
	p.Trade("AAPL", d(12), d(5), d(-5))

	v, _ := p.Percent().Float()
	assert.InDelta(t, 20, v, 1e-9, "short just opened at 12")

	p.Trade("AAPL", d(6), d(-5), d(-5))
	v, _ = p.Percent().Float()
	assert.InDelta(t, (1.2*1.5-1)*100, v, 1e-9)
}

func TestYTD(t *testing.T) {
	var y YTD
	assert.False(t, y.Update(time.Time{}, false, d(5), d(0)).Valid)

	got := y.Update(day("2023-06-01"), true, d(10), d(0))
	assert.True(t, got.Decimal.Equal(d(10)))

	got = y.Update(day("2023-12-01"), true, d(25), d(10))
	assert.True(t, got.Decimal.Equal(d(25)))

	got = y.Update(day("2024-01-02"), true, d(30), d(25))
	assert.True(t, got.Decimal.Equal(d(5)))
}

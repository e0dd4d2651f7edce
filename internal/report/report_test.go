package report

import (
	"bytes"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/portfolio-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestBuild_Empty(t *testing.T) {
	s := Build("run-1", d(200), nil)
	assert.Equal(t, 0, s.Events)
	assert.True(t, s.AccountValue.Equal(d(200)))
	assert.True(t, s.AvailableBalance.Equal(d(200)))
	assert.False(t, s.MeanDailyPct.Defined())
	assert.False(t, s.StdDailyPct.Defined())
	assert.Equal(t, "None", s.OpenPositions)
}

func TestBuild_UsesLastRowAndDailyDispersion(t *testing.T) {
	rows := []model.OutputRow{
		{Seq: 1, DailyPct: model.FiniteRatio(1)},
		{Seq: 2, DailyPct: model.UndefinedRatio()},
		{Seq: 3, DailyPct: model.FiniteRatio(3)},
		{
			Seq:                4,
			DailyPct:           model.InfRatio(1),
			AvailableBalance:   d(120),
			AccountValue:       d(230),
			RealizedCumulative: d(20),
			UnrealizedTotal:    d(10),
			TotalPnL:           d(30),
			CumulativePct:      model.FiniteRatio(15),
			TotalTrades:        "2 Trades",
			OpenPositions:      "AAPL 10",
			Holdings:           1,
		},
	}
	s := Build("run-1", d(200), rows)
	assert.Equal(t, 4, s.Events)
	assert.True(t, s.AccountValue.Equal(d(230)))
	assert.True(t, s.TotalPnL.Equal(d(30)))
	assert.Equal(t, "2 Trades", s.TotalTrades)
	assert.Equal(t, "AAPL 10", s.OpenPositions)
	assert.Equal(t, 1, s.Holdings)

	// Only finite daily returns count: {1, 3}.
	assert.Equal(t, model.FiniteRatio(2), s.MeanDailyPct)
	assert.InDelta(t, math.Sqrt2, s.StdDailyPct.Value, 1e-12)
}

func TestBuild_SingleSampleHasNoDispersion(t *testing.T) {
	s := Build("", d(100), []model.OutputRow{{DailyPct: model.FiniteRatio(-4)}})
	assert.Equal(t, model.FiniteRatio(-4), s.MeanDailyPct)
	assert.False(t, s.StdDailyPct.Defined())
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		in   decimal.Decimal
		want string
	}{
		{d(1234.567), "$1,234.57"},
		{d(0), "$0.00"},
		{d(-5), "-$5.00"},
		{d(1000000), "$1,000,000.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatMoney(tt.in), tt.in.String())
	}
}

func TestWriteText(t *testing.T) {
	s := Build("run-1", d(200), []model.OutputRow{{
		AccountValue:  d(210),
		TotalPnL:      d(10),
		CumulativePct: model.FiniteRatio(5),
		Sharpe:        model.InfRatio(1),
		TotalTrades:   "1 Trade",
	}})
	var buf bytes.Buffer
	require.NoError(t, s.WriteText(&buf))

	out := buf.String()
	assert.Contains(t, out, "Run")
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "$210.00")
	assert.Contains(t, out, "5.00%")
	assert.Contains(t, out, "inf")
	assert.Contains(t, out, "n/a")
}

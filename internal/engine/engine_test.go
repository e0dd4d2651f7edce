package engine

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/atmx/portfolio-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func ev(ticker string, side model.Side, price, qty float64, date string) model.TradeEvent {
	return model.TradeEvent{Ticker: ticker, Side: side, Price: d(price), Quantity: d(qty), Date: date}
}

func newEngine(t *testing.T, cash float64) *Engine {
	t.Helper()
	e := New(DefaultOptions())
	e.Reset(d(cash))
	return e
}

func mustProcess(t *testing.T, e *Engine, in model.TradeEvent) model.OutputRow {
	t.Helper()
	row, err := e.Process(in)
	if err != nil {
		t.Fatalf("Process(%+v): %v", in, err)
	}
	return row
}

func assertDec(t *testing.T, field string, want float64, got decimal.Decimal) {
	t.Helper()
	if !got.Equal(d(want)) {
		t.Errorf("%s: got %s, want %v", field, got, want)
	}
}

func TestProcess_LongFlipAndCover(t *testing.T) {
	e := newEngine(t, 200)

	row := mustProcess(t, e, ev("AAPL", model.Buy, 10, 10, "2024-01-02"))
	assertDec(t, "remaining", 100, row.AvailableBalance)
	assertDec(t, "cost basis", 100, row.CostBasis)
	assertDec(t, "account", 200, row.AccountValue)
	assertDec(t, "ticker unrealized", 0, row.TickerUnrealized)
	if row.TradeDescriptor != "Long - Buy - #1 Trade - 10" {
		t.Errorf("descriptor: %q", row.TradeDescriptor)
	}
	if row.OpenPositions != "AAPL 10" {
		t.Errorf("open positions: %q", row.OpenPositions)
	}
	if !row.LiquidationPrice.Valid || !row.LiquidationPrice.Decimal.IsZero() {
		t.Errorf("long liquidation: %+v", row.LiquidationPrice)
	}
	assertDec(t, "take profit", 12, row.TakeProfit.Decimal)
	assertDec(t, "stop loss", 9, row.StopLoss.Decimal)

	// Sell 16 closes the 10 long and opens 6 short at 11.
	row = mustProcess(t, e, ev("AAPL", model.Sell, 11, 16, "2024-01-05"))
	assertDec(t, "remaining", 144, row.AvailableBalance)
	assertDec(t, "quantity", -6, row.CurrentQuantity)
	assertDec(t, "cost basis", 66, row.CostBasis)
	assertDec(t, "realized", 10, row.RealizedAtPoint.Decimal)
	assertDec(t, "account", 210, row.AccountValue)
	assertDec(t, "daily pnl", 10, row.DailyPnL)
	assertDec(t, "liquidation", 22, row.LiquidationPrice.Decimal)
	if row.Direction != model.Short {
		t.Errorf("direction: %v", row.Direction)
	}
	if row.TradeDescriptor != "Short - Sell - #1 Trade - 6 - Flipped" {
		t.Errorf("descriptor: %q", row.TradeDescriptor)
	}
	if row.TotalTrades != "2 Trades" {
		t.Errorf("total trades: %q", row.TotalTrades)
	}
	if row.EquityShort.IsZero() || !row.EquityLong.IsZero() {
		t.Errorf("equity long/short: %s / %s", row.EquityLong, row.EquityShort)
	}

	// Cover at 9: initial 66 + (66 - 54).
	row = mustProcess(t, e, ev("AAPL", model.Buy, 9, 6, "2024-01-09"))
	assertDec(t, "remaining", 222, row.AvailableBalance)
	assertDec(t, "realized", 12, row.RealizedAtPoint.Decimal)
	assertDec(t, "realized cumulative", 22, row.RealizedCumulative)
	assertDec(t, "total pnl", 22, row.TotalPnL)
	assertDec(t, "avg price", 0, row.AvgPrice)
	assertDec(t, "cost basis", 0, row.CostBasis)
	if row.TradeDescriptor != "Short - Buy - #2 Trade - 0 - Close" {
		t.Errorf("descriptor: %q", row.TradeDescriptor)
	}
	if row.OpenPositions != "None" || row.Holdings != 0 {
		t.Errorf("open positions: %q holdings %d", row.OpenPositions, row.Holdings)
	}
	if row.LiquidationPrice.Valid || row.TakeProfit.Valid || row.StopLoss.Valid {
		t.Error("flat position should have no risk levels")
	}
	if row.WinLossRatio != "2:0" {
		t.Errorf("win/loss ratio: %q", row.WinLossRatio)
	}
	if row.WinRate != model.FiniteRatio(100) {
		t.Errorf("win rate: %+v", row.WinRate)
	}
	if v, _ := row.CumulativePct.Float(); v != 11 {
		t.Errorf("cumulative pct: %v", v)
	}
	if !row.AverageHoldingDays.Defined() {
		t.Error("average holding days should be defined on a closing row")
	}

	if n := len(e.Ledger()); n != 3 {
		t.Fatalf("ledger length %d", n)
	}
}

func TestProcess_HoldMarksToMarket(t *testing.T) {
	e := newEngine(t, 1000)
	mustProcess(t, e, ev("AAPL", model.Buy, 10, 10, ""))
	mustProcess(t, e, ev("TSLA", model.Sell, 20, 5, ""))

	row := mustProcess(t, e, ev("AAPL", model.Hold, 12, 5, ""))
	assertDec(t, "quantity buy", 0, row.QuantityBuy)
	assertDec(t, "quantity", 10, row.CurrentQuantity)
	assertDec(t, "long unrealized", 20, row.LongUnrealized)
	assertDec(t, "remaining", 800, row.AvailableBalance)
	assertDec(t, "total equity", 220, row.TotalEquity)
	if row.TradeDescriptor != "Long - Hold - #1 Trade - 10" || row.WinLoss != "Win" {
		t.Errorf("hold row: descriptor %q win/loss %q", row.TradeDescriptor, row.WinLoss)
	}

	row = mustProcess(t, e, ev("MSFT", model.Hold, 300, 0, ""))
	if row.TradeDescriptor != "No Buy/Sell" || row.WinLoss != "" {
		t.Errorf("hold on unknown ticker: descriptor %q win/loss %q", row.TradeDescriptor, row.WinLoss)
	}

	row = mustProcess(t, e, ev("TSLA", model.Hold, 18, 0, ""))
	assertDec(t, "short unrealized", 10, row.ShortUnrealized)
	assertDec(t, "unrealized total", 30, row.UnrealizedTotal)
	assertDec(t, "account", 1030, row.AccountValue)
	if row.OpenUnrealized != "AAPL 20, TSLA 10" {
		t.Errorf("open unrealized: %q", row.OpenUnrealized)
	}
	if row.TotalTrades != "2 Trades" {
		t.Errorf("total trades carried: %q", row.TotalTrades)
	}
	if row.Calmar.Defined() {
		t.Error("calmar needs dated events")
	}
}

func TestProcess_UnparseableDateDegradesDateMetrics(t *testing.T) {
	e := newEngine(t, 200)
	row := mustProcess(t, e, ev("AAPL", model.Buy, 10, 10, "2024-01-02"))
	if !row.YTDPnL.Valid || row.TradesPerMonth == "" {
		t.Fatalf("dated row: ytd %+v trades/month %q", row.YTDPnL, row.TradesPerMonth)
	}

	row = mustProcess(t, e, ev("AAPL", model.Sell, 12, 5, "yesterday"))
	if row.Date != "yesterday" {
		t.Errorf("date: %q", row.Date)
	}
	if row.Calmar.Defined() {
		t.Errorf("calmar: got %v, want undefined", row.Calmar)
	}
	if row.YTDPnL.Valid {
		t.Errorf("ytd: got %s, want null", row.YTDPnL.Decimal)
	}
	if row.TradesPerMonth != "" {
		t.Errorf("trades per month: %q", row.TradesPerMonth)
	}

	// Everything that does not depend on the date is still computed.
	assertDec(t, "quantity", 5, row.CurrentQuantity)
	assertDec(t, "remaining", 160, row.AvailableBalance)
	assertDec(t, "realized", 10, row.RealizedAtPoint.Decimal)
	assertDec(t, "account", 220, row.AccountValue)
	assertDec(t, "total pnl", 20, row.TotalPnL)
	if row.TradeDescriptor != "Long - Sell - #1 Trade - 5" {
		t.Errorf("descriptor: %q", row.TradeDescriptor)
	}
}

func TestProcess_TradeIdsAreSequential(t *testing.T) {
	e := newEngine(t, 100000)
	for i := 0; i < 10; i++ {
		mustProcess(t, e, ev(fmt.Sprintf("T%d", i), model.Buy, 1, 1, ""))
	}
	row := mustProcess(t, e, ev("AAPL", model.Buy, 1, 1, ""))
	if !strings.Contains(row.TradeDescriptor, "#11 Trade") {
		t.Errorf("descriptor: %q", row.TradeDescriptor)
	}
	if row.Holdings != 11 {
		t.Errorf("holdings: %d", row.Holdings)
	}
	if row.InvestmentCount != 11 {
		t.Errorf("investment count: %d", row.InvestmentCount)
	}
}

func TestProcess_TickerAndClassification(t *testing.T) {
	e := newEngine(t, 10000)
	row := mustProcess(t, e, ev(" aapl ", model.Buy, 100, 10, "2024-02-01"))
	if row.Ticker != "AAPL" || row.AssetType != "Equity" {
		t.Errorf("ticker %q asset type %q", row.Ticker, row.AssetType)
	}
	if row.EquityBySector != "Technology: 100.00%" {
		t.Errorf("sector: %q", row.EquityBySector)
	}

	in := ev("btc", model.Buy, 50, 2, "2024-02-02")
	in.Class = model.Classification{AssetType: "CRYPTO"}
	row = mustProcess(t, e, in)
	if row.AssetType != "Crypto" {
		t.Errorf("asset type %q", row.AssetType)
	}
	if row.AssetCount != "Crypto: 1, Equity: 1" {
		t.Errorf("asset count: %q", row.AssetCount)
	}
	if row.Distribution != "Crypto: 100.00, Equity: 1000.00" {
		t.Errorf("distribution: %q", row.Distribution)
	}
}

func TestProcess_EventRiskOverrides(t *testing.T) {
	e := newEngine(t, 1000)
	tp, sl := 0.5, 0.25
	in := ev("AAPL", model.Sell, 100, 1, "")
	in.TakeProfitPct, in.StopLossPct = &tp, &sl
	row := mustProcess(t, e, in)
	assertDec(t, "take profit", 50, row.TakeProfit.Decimal)
	assertDec(t, "stop loss", 125, row.StopLoss.Decimal)
}

func TestProcess_AssetPerformanceFromFirstPrice(t *testing.T) {
	e := newEngine(t, 1000)
	mustProcess(t, e, ev("AAPL", model.Buy, 10, 1, ""))
	row := mustProcess(t, e, ev("AAPL", model.Hold, 15, 0, ""))
	if v, _ := row.AssetPerformancePct.Float(); v != 50 {
		t.Errorf("asset performance: %v", v)
	}
}

func TestProcess_Invariants(t *testing.T) {
	e := newEngine(t, 5000)
	events := []model.TradeEvent{
		ev("AAPL", model.Buy, 100, 10, "2024-01-02"),
		ev("MSFT", model.Sell, 50, 4, "2024-01-03"),
		ev("AAPL", model.Buy, 110, 5, "2024-01-04"),
		ev("AAPL", model.Sell, 120, 7, "2024-01-05"),
		ev("MSFT", model.Buy, 45, 10, "2024-01-08"),
		ev("BTC", model.Buy, 30000, 0.01, "2024-01-09"),
		ev("AAPL", model.Hold, 90, 0, "2024-01-10"),
		ev("MSFT", model.Sell, 60, 6, "2024-02-01"),
		ev("AAPL", model.Sell, 95, 8, "2024-02-02"),
		ev("BTC", model.Sell, 32000, 0.01, "2024-02-05"),
	}

	initial := d(5000)
	realizedSum := decimal.Zero
	for i, in := range events {
		prevQty := e.Position(in.Ticker).Quantity
		row := mustProcess(t, e, in)

		if !row.AccountValue.Equal(row.TotalEquity.Add(row.AvailableBalance)) {
			t.Errorf("row %d: account %s != equity %s + cash %s", i, row.AccountValue, row.TotalEquity, row.AvailableBalance)
		}
		if !row.TotalPnL.Equal(row.AccountValue.Sub(initial)) {
			t.Errorf("row %d: total pnl %s", i, row.TotalPnL)
		}
		if row.RealizedAtPoint.Valid {
			realizedSum = realizedSum.Add(row.RealizedAtPoint.Decimal)
		}
		if !realizedSum.Equal(row.RealizedCumulative) {
			t.Errorf("row %d: realized sum %s != cumulative %s", i, realizedSum, row.RealizedCumulative)
		}
		if prevQty.IsZero() && !row.CurrentQuantity.IsZero() && !row.TickerUnrealized.IsZero() {
			t.Errorf("row %d: opening row has unrealized %s", i, row.TickerUnrealized)
		}
		if row.CurrentQuantity.IsZero() && (!row.CostBasis.IsZero() || !row.AvgPrice.IsZero()) {
			t.Errorf("row %d: flat position keeps cost basis %s avg %s", i, row.CostBasis, row.AvgPrice)
		}
		if !row.TotalGain.Equal(row.RealizedCumulative.Add(row.UnrealizedTotal)) {
			t.Errorf("row %d: total gain %s", i, row.TotalGain)
		}
	}
}

func TestProcess_HoldsDoNotChangeWinRate(t *testing.T) {
	run := func(withHolds bool) model.OutputRow {
		e := newEngine(t, 1000)
		mustProcess(t, e, ev("AAPL", model.Buy, 10, 10, ""))
		if withHolds {
			mustProcess(t, e, ev("AAPL", model.Hold, 8, 0, ""))
			mustProcess(t, e, ev("AAPL", model.Hold, 13, 0, ""))
		}
		return mustProcess(t, e, ev("AAPL", model.Sell, 12, 10, ""))
	}
	a, b := run(false), run(true)
	if a.WinRate != b.WinRate || a.WinLossRatio != b.WinLossRatio {
		t.Errorf("holds changed outcome: %+v %q vs %+v %q", a.WinRate, a.WinLossRatio, b.WinRate, b.WinLossRatio)
	}
}

func TestProcess_RejectsInvalidEventsWithoutMutation(t *testing.T) {
	e := New(DefaultOptions())
	if _, err := e.Process(ev("AAPL", model.Buy, 1, 1, "")); !errors.Is(err, ErrNotReset) {
		t.Fatalf("before reset: %v", err)
	}

	e.Reset(d(100))
	mustProcess(t, e, ev("AAPL", model.Buy, 5, 2, ""))

	tests := []struct {
		name string
		in   model.TradeEvent
		want error
	}{
		{"empty ticker", ev("  ", model.Buy, 1, 1, ""), ErrEmptyTicker},
		{"bad side", ev("AAPL", model.Side(9), 1, 1, ""), model.ErrInvalidSide},
	}
	for _, tt := range tests {
		if _, err := e.Process(tt.in); !errors.Is(err, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, err, tt.want)
		}
	}
	if e.Len() != 1 {
		t.Errorf("ledger grew to %d", e.Len())
	}
	assertDec(t, "position", 2, e.Position("AAPL").Quantity)

	row := mustProcess(t, e, ev("AAPL", model.Hold, 5, 0, ""))
	if row.Seq != 2 {
		t.Errorf("seq after rejected events: %d", row.Seq)
	}
}

func TestReset_ClearsState(t *testing.T) {
	e := newEngine(t, 100)
	mustProcess(t, e, ev("AAPL", model.Buy, 5, 2, ""))
	e.Reset(d(50))
	if e.Len() != 0 || !e.Position("AAPL").Quantity.IsZero() {
		t.Fatal("reset kept state")
	}
	row := mustProcess(t, e, ev("AAPL", model.Buy, 5, 2, ""))
	if !strings.Contains(row.TradeDescriptor, "#1 Trade") {
		t.Errorf("trade ids not reset: %q", row.TradeDescriptor)
	}
	assertDec(t, "remaining", 40, row.AvailableBalance)
}

func TestLedger_ReturnsCopy(t *testing.T) {
	e := newEngine(t, 100)
	mustProcess(t, e, ev("AAPL", model.Buy, 5, 2, ""))
	rows := e.Ledger()
	rows[0].Ticker = "MUTATED"
	if e.Ledger()[0].Ticker != "AAPL" {
		t.Error("ledger exposed internal slice")
	}
}

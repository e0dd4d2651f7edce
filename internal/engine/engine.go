// Package engine is the portfolio accounting engine. It turns one trade event
// at a time into updated position, valuation and statistics state and
// appends the resulting snapshot row to an append-only ledger.
//
// An Engine has a single writer: callers serialize Process calls. Ledger
// returns a copy that is safe to hand to other goroutines.
package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/atmx/portfolio-engine/internal/classify"
	"github.com/atmx/portfolio-engine/internal/ledger"
	"github.com/atmx/portfolio-engine/internal/lifecycle"
	"github.com/atmx/portfolio-engine/internal/model"
	"github.com/atmx/portfolio-engine/internal/normalize"
	"github.com/atmx/portfolio-engine/internal/outcome"
	"github.com/atmx/portfolio-engine/internal/stats"
	"github.com/atmx/portfolio-engine/internal/valuation"
)

var (
	ErrNotReset    = errors.New("engine: reset required before processing events")
	ErrEmptyTicker = errors.New("engine: empty ticker")
)

// Options are the per-engine defaults. Events may override the take-profit
// and stop-loss percentages.
type Options struct {
	TakeProfitPct float64
	StopLossPct   float64
	RiskFreeRate  float64

	// Classifier is the reference table consulted when an event carries no
	// classification hints. Nil uses classify.Default.
	Classifier classify.Lookup
}

func DefaultOptions() Options {
	return Options{TakeProfitPct: 0.20, StopLossPct: 0.10}
}

// Engine owns all per-run state. The zero value is unusable until Reset.
type Engine struct {
	opts Options
	st   *state
}

type state struct {
	initial decimal.Decimal
	cash    decimal.Decimal

	book    *ledger.Book
	marks   *valuation.Cache
	classes *classify.Resolver

	risk     stats.RiskRatios
	calmar   stats.Calmar
	equityDD stats.Drawdown
	returns  *stats.TradeReturns
	netPerf  *stats.NetPerformance
	ytd      stats.YTD

	trades  *lifecycle.Tracker
	monthly *lifecycle.Monthly
	holding *lifecycle.Holding

	winLoss     *outcome.WinLoss
	rankings    *outcome.Rankings
	profit      *outcome.Profit
	capital     *outcome.Capital
	composition *outcome.Composition

	realizedCum      decimal.Decimal
	realizedByTicker map[string]decimal.Decimal
	startPrice       map[string]decimal.Decimal
	investments      int
	period           int

	lastTotalPnL    decimal.Decimal
	lastAccount     decimal.Decimal
	lastTotalTrades string

	rows []model.OutputRow
}

func New(opts Options) *Engine {
	return &Engine{opts: opts}
}

// Reset discards all state and starts a new run with initialCash available.
func (e *Engine) Reset(initialCash decimal.Decimal) {
	e.st = &state{
		initial:          initialCash,
		cash:             initialCash,
		book:             ledger.NewBook(),
		marks:            valuation.NewCache(),
		classes:          classify.NewResolver(e.opts.Classifier),
		returns:          stats.NewTradeReturns(),
		netPerf:          stats.NewNetPerformance(),
		trades:           lifecycle.NewTracker(),
		monthly:          lifecycle.NewMonthly(),
		holding:          lifecycle.NewHolding(),
		winLoss:          outcome.NewWinLoss(),
		rankings:         outcome.NewRankings(),
		profit:           outcome.NewProfit(),
		capital:          outcome.NewCapital(),
		composition:      outcome.NewComposition(),
		realizedCum:      decimal.Zero,
		realizedByTicker: make(map[string]decimal.Decimal),
		startPrice:       make(map[string]decimal.Decimal),
		lastTotalPnL:     decimal.Zero,
		lastAccount:      initialCash,
		lastTotalTrades:  lifecycle.NoTrade,
	}
}

// Ready reports whether Reset has been called.
func (e *Engine) Ready() bool { return e.st != nil }

// InitialCash is the balance the current run started with.
func (e *Engine) InitialCash() decimal.Decimal {
	if e.st == nil {
		return decimal.Zero
	}
	return e.st.initial
}

// Ledger returns a copy of every row produced since the last Reset.
func (e *Engine) Ledger() []model.OutputRow {
	if e.st == nil {
		return nil
	}
	out := make([]model.OutputRow, len(e.st.rows))
	copy(out, e.st.rows)
	return out
}

// Len is the number of rows produced since the last Reset.
func (e *Engine) Len() int {
	if e.st == nil {
		return 0
	}
	return len(e.st.rows)
}

// Position returns the current position of ticker.
func (e *Engine) Position(ticker string) ledger.Position {
	if e.st == nil {
		return ledger.Position{}
	}
	return e.st.book.Get(strings.ToUpper(strings.TrimSpace(ticker)))
}

// validate checks ev and returns the canonical ticker. Nothing is mutated.
func (e *Engine) validate(ev model.TradeEvent) (string, error) {
	if e.st == nil {
		return "", ErrNotReset
	}
	ticker := strings.ToUpper(strings.TrimSpace(ev.Ticker))
	if ticker == "" {
		return "", ErrEmptyTicker
	}
	if !ev.Side.Valid() {
		return "", fmt.Errorf("%w: %d", model.ErrInvalidSide, int(ev.Side))
	}
	return ticker, nil
}

func pctOr(override *float64, def float64) float64 {
	if override != nil {
		return *override
	}
	return def
}

// Process applies one event and returns the row appended for it. An event
// that fails validation leaves the engine untouched.
func (e *Engine) Process(ev model.TradeEvent) (model.OutputRow, error) {
	ticker, err := e.validate(ev)
	if err != nil {
		return model.OutputRow{}, err
	}
	st := e.st

	side, price := ev.Side, ev.Price
	magnitude := ev.Quantity.Abs()
	if side == model.Hold {
		magnitude = decimal.Zero
	}
	date, dated := normalize.Timestamp(ev.Date)
	tp := pctOr(ev.TakeProfitPct, e.opts.TakeProfitPct)
	sl := pctOr(ev.StopLossPct, e.opts.StopLossPct)

	st.period++
	class := st.classes.Resolve(ticker, ev.Class)
	class.AssetType = capitalize(class.AssetType)

	// Position ledger.
	prev := st.book.Get(ticker)
	prevCash := st.cash
	remaining := ledger.Remaining(prevCash, prev, side, price, magnitude)
	fill := ledger.Apply(prev, side, price, magnitude)
	st.book.Set(ticker, fill.Next)

	pos := fill.Next
	oldQ, newQ := prev.Quantity, pos.Quantity
	flipped := fill.Transition == ledger.Flip
	opening := fill.Transition.Opens()

	switch {
	case flipped:
		st.holding.Close(ticker, st.period, date, dated, oldQ.Abs())
		st.holding.Open(ticker, st.period, date, dated)
	case fill.Transition == ledger.Open:
		st.holding.Open(ticker, st.period, date, dated)
	case fill.Transition == ledger.Close:
		st.holding.Close(ticker, st.period, date, dated, oldQ.Abs())
	}
	st.netPerf.Trade(ticker, price, oldQ, newQ)

	dir := model.DirectionOf(newQ)
	if dir == model.Flat {
		dir = model.DirectionOf(oldQ)
	}

	realized := fill.Realized
	carried := st.realizedCum
	tickerRealized := st.realizedByTicker[ticker]
	if realized.Valid {
		st.realizedCum = st.realizedCum.Add(realized.Decimal)
		tickerRealized = tickerRealized.Add(realized.Decimal)
		st.returns.Add(fill.Return)
		st.risk.Observe(realized.Decimal)
	}
	st.realizedByTicker[ticker] = tickerRealized

	// Valuation.
	mark := st.marks.Update(ticker, pos, price, fill.Transition == ledger.Open)
	totalValue, totalUnrealized := mark.TotalValue, mark.TotalUnrealized
	account := totalValue.Add(remaining)
	totalPnL := account.Sub(st.initial)

	row := model.OutputRow{
		Seq:       st.period,
		Date:      ev.Date,
		Ticker:    ticker,
		AssetType: class.AssetType,
		Side:      side,
		Direction: dir,

		InitialBalance:   st.initial,
		BuyableSellable:  decimal.Zero,
		QuantityBuy:      magnitude,
		AvailableBalance: remaining,
		CurrentQuantity:  newQ,
		Price:            price,
		AvgPrice:         pos.AvgPrice,
		CostBasis:        pos.CostBasis,
		Equity:           newQ.Abs().Mul(price),

		LongUnrealized:     mark.Long,
		ShortUnrealized:    mark.Short,
		TickerUnrealized:   mark.Unrealized,
		TickerRealized:     tickerRealized,
		RealizedAtPoint:    realized,
		UnrealizedAtPoint:  totalUnrealized,
		EquityLong:         decimal.Zero,
		EquityShort:        decimal.Zero,
		TotalEquity:        totalValue,
		AccountValue:       account,
		RealizedCumulative: st.realizedCum,
		UnrealizedTotal:    totalUnrealized,
		TotalPnL:           totalPnL,
		DailyPnL:           totalPnL.Sub(st.lastTotalPnL),
	}
	row.LastDayPnL = row.DailyPnL
	if price.IsPositive() {
		row.BuyableSellable = prevCash.Div(price)
	}
	switch {
	case newQ.IsPositive():
		row.EquityLong = mark.Value
	case newQ.IsNegative():
		row.EquityShort = mark.Value
	}
	row.OpenPositions, row.OpenEquity, row.OpenUnrealized = e.openStrings()

	// Returns and risk ratios.
	if st.lastAccount.IsPositive() {
		row.DailyPct = ratioOf(account.Sub(st.lastAccount).Div(st.lastAccount).Mul(hundred))
	}
	if st.initial.IsPositive() {
		row.CumulativePct = ratioOf(account.Div(st.initial).Sub(decimal.NewFromInt(1)).Mul(hundred))
	}
	row.Performance = row.CumulativePct
	row.Sharpe = st.risk.Sharpe(st.realizedCum, st.initial, e.opts.RiskFreeRate)
	row.Sortino = st.risk.Sortino(st.realizedCum, st.initial, e.opts.RiskFreeRate)
	row.Calmar = st.calmar.Update(account.InexactFloat64(), st.initial.InexactFloat64(), date, dated)
	row.NetPerformancePct = st.netPerf.Percent()

	// Trade lifecycle.
	openBefore := st.trades.Open()
	id, hasID := st.trades.Assign(ticker, side, oldQ, newQ)
	closing := hasID && (newQ.IsZero() || flipped)
	row.TradeDescriptor = lifecycle.Descriptor(side, dir, id, hasID, newQ, flipped)
	row.AverageHoldingDays = st.holding.Average(closing)
	row.TotalTrades = lifecycle.TotalTrades(st.trades.Minted(), hasID, st.lastTotalTrades)
	st.lastTotalTrades = row.TotalTrades

	row.LiquidationPrice, row.TakeProfit, row.StopLoss = riskLevels(pos, tp, sl)

	// Outcomes.
	row.WinLoss = outcome.Classify(hasID, realized, mark.Unrealized).String()
	st.winLoss.Update(ticker, closing, realized, mark.Unrealized, newQ)
	row.WinRate = st.winLoss.Rate(ticker)
	row.WinLossRatio = st.winLoss.Ratio(ticker)

	openedID := id
	if flipped {
		openedID, _ = st.trades.Active(ticker)
	}
	row.TradesPerMonth = st.monthly.Update(date, dated, openBefore, opening, openedID)

	st.rankings.Traded(ticker, magnitude, id, hasID)
	entry := (dir == model.Long && side == model.Buy) || (dir == model.Short && side == model.Sell)
	if entry {
		st.rankings.Opened(ticker, magnitude)
		st.investments++
	}
	row.InvestmentCount = st.investments
	row.AbsoluteQuantityCount = st.rankings.QuantityCounts()
	row.MostTraded, row.LeastTraded = st.rankings.MostLeastTraded()
	row.MostBought = st.rankings.MostBought()

	st.profit.Add(ticker, realized)
	row.AvgLosingPnL, row.AvgWinningPnL = st.profit.Averages()
	row.MostProfitable, row.LeastProfitable = st.profit.MostLeastProfitable()

	row.RewardRisk = st.returns.RewardRisk()
	row.Expectancy = st.returns.Expectancy(row.WinRate)
	row.AvgWinningPct = st.returns.AvgWinningPct()
	row.AvgLosingPct = st.returns.AvgLosingPct()
	row.AvgPnLPct = st.returns.AvgPct()
	row.BacktestMaxDrawdown = st.returns.MaxDrawdown()

	row.MaxDrawdown = model.FiniteRatio(st.equityDD.Update(totalValue.InexactFloat64()) * 100)
	row.TotalGain = st.realizedCum.Add(totalUnrealized)
	if minted := st.trades.Minted(); minted > 0 {
		row.AverageGain = decimal.NewNullDecimal(row.TotalGain.Div(decimal.NewFromInt(int64(minted))))
	}

	// Capital and composition.
	st.capital.Trade(ticker, side, price, magnitude, oldQ)
	if opening {
		st.capital.Opened(newQ)
	}
	row.BiggestInvestment = st.capital.BiggestInvestment()
	row.AveragePosition = st.capital.AveragePosition()
	row.HighestVolume, row.LowestVolume = st.capital.Volumes()
	row.Holdings = st.book.Holdings()

	st.composition.Update(ticker, class, mark.Value, !newQ.IsZero())
	row.AssetCount = st.composition.AssetCount()
	row.Distribution, row.DistributionPct = st.composition.Distribution(totalValue)
	row.EquityByMarketCap, row.EquityByIndustry, row.EquityBySector = st.composition.EquityDistribution()

	row.YTDPnL = st.ytd.Update(date, dated, st.realizedCum, carried)

	start, seen := st.startPrice[ticker]
	if !seen {
		start = price
		st.startPrice[ticker] = price
	}
	if start.IsPositive() {
		row.AssetPerformancePct = ratioOf(price.Sub(start).Div(start).Mul(hundred))
	}

	st.cash = remaining
	st.lastTotalPnL = totalPnL
	st.lastAccount = account
	st.rows = append(st.rows, row)
	return row, nil
}

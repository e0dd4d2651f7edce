package model

import "github.com/shopspring/decimal"

// OutputRow is the full metric snapshot produced by one event. Rows are
// append-only: once assembled they are never modified.
//
// Optional money values use decimal.NullDecimal; optional statistics use Ratio.
// Composite string fields render "None" when empty, matching the exported ledger.
type OutputRow struct {
	Seq int `json:"seq"`

	// Identity.
	Date      string    `json:"date,omitempty"`
	Ticker    string    `json:"ticker"`
	AssetType string    `json:"asset_type"`
	Side      Side      `json:"side"`
	Direction Direction `json:"direction"`

	// Balances and position.
	InitialBalance   decimal.Decimal `json:"initial_balance"`
	BuyableSellable  decimal.Decimal `json:"buyable_sellable"`
	QuantityBuy      decimal.Decimal `json:"quantity_buy"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	CurrentQuantity  decimal.Decimal `json:"current_quantity"`
	Price            decimal.Decimal `json:"price"`
	AvgPrice         decimal.Decimal `json:"avg_price"`
	CostBasis        decimal.Decimal `json:"cost_basis"`
	Equity           decimal.Decimal `json:"equity"`

	// Per-ticker P&L.
	LongUnrealized     decimal.Decimal     `json:"pnl_long_unrealized"`
	ShortUnrealized    decimal.Decimal     `json:"pnl_short_unrealized"`
	OpenUnrealized     string              `json:"pnl_unrealized"`
	TickerUnrealized   decimal.Decimal     `json:"ticker_unrealized_total"`
	TickerRealized     decimal.Decimal     `json:"ticker_realized_total"`
	RealizedAtPoint    decimal.NullDecimal `json:"realized_at_point"`
	UnrealizedAtPoint  decimal.Decimal     `json:"unrealized_at_point"`
	EquityLong         decimal.Decimal     `json:"equity_long"`
	EquityShort        decimal.Decimal     `json:"equity_short"`
	OpenPositions      string              `json:"open_positions"`
	OpenEquity         string              `json:"open_equity"`
	TotalEquity        decimal.Decimal     `json:"total_equity"`
	AccountValue       decimal.Decimal     `json:"account_value"`
	RealizedCumulative decimal.Decimal     `json:"realized_cumulative"`
	UnrealizedTotal    decimal.Decimal     `json:"unrealized_total"`
	TotalPnL           decimal.Decimal     `json:"total_pnl"`
	DailyPnL           decimal.Decimal     `json:"daily_pnl"`

	// Risk levels.
	LiquidationPrice decimal.NullDecimal `json:"liquidation_price"`
	TakeProfit       decimal.NullDecimal `json:"take_profit"`
	StopLoss         decimal.NullDecimal `json:"stop_loss"`

	// Returns and ratios.
	LastDayPnL          decimal.Decimal `json:"last_day_pnl"`
	DailyPct            Ratio           `json:"daily_pct"`
	CumulativePct       Ratio           `json:"cumulative_pct"`
	InvestmentCount     int             `json:"investment_count"`
	Performance         Ratio           `json:"performance"`
	NetPerformancePct   Ratio           `json:"net_performance_pct"`
	Sharpe              Ratio           `json:"sharpe"`
	Sortino             Ratio           `json:"sortino"`
	Calmar              Ratio           `json:"calmar"`
	AssetCount          string          `json:"asset_count"`
	AssetPerformancePct Ratio           `json:"asset_performance_pct"`

	// Trade bookkeeping.
	TradeDescriptor       string `json:"trade_descriptor"`
	TotalTrades           string `json:"total_trades"`
	WinLoss               string `json:"win_loss,omitempty"`
	WinRate               Ratio  `json:"win_rate"`
	WinLossRatio          string `json:"win_loss_ratio"`
	RewardRisk            Ratio  `json:"reward_risk"`
	Expectancy            Ratio  `json:"expectancy"`
	AvgWinningPct         Ratio  `json:"avg_winning_pct"`
	AvgLosingPct          Ratio  `json:"avg_losing_pct"`
	AvgPnLPct             Ratio  `json:"avg_pnl_pct"`
	BacktestMaxDrawdown   Ratio  `json:"backtest_max_drawdown"`
	TradesPerMonth        string `json:"trades_per_month,omitempty"`
	AbsoluteQuantityCount string `json:"absolute_quantity_counts"`
	MostTraded            string `json:"most_traded"`
	MostBought            string `json:"most_bought"`
	LeastTraded           string `json:"least_traded"`

	// Composition.
	AvgLosingPnL       decimal.Decimal     `json:"avg_losing_pnl"`
	AvgWinningPnL      decimal.Decimal     `json:"avg_winning_pnl"`
	MostProfitable     string              `json:"most_profitable"`
	LeastProfitable    string              `json:"least_profitable"`
	MaxDrawdown        Ratio               `json:"max_drawdown"`
	TotalGain          decimal.Decimal     `json:"total_gain"`
	AverageGain        decimal.NullDecimal `json:"average_gain"`
	BiggestInvestment  string              `json:"biggest_investment"`
	AveragePosition    decimal.NullDecimal `json:"average_position"`
	Holdings           int                 `json:"holdings"`
	YTDPnL             decimal.NullDecimal `json:"ytd_pnl"`
	HighestVolume      decimal.Decimal     `json:"highest_traded_volume"`
	LowestVolume       decimal.Decimal     `json:"lowest_traded_volume"`
	AverageHoldingDays Ratio               `json:"average_holding_days"`
	Distribution       string              `json:"distribution"`
	DistributionPct    string              `json:"distribution_pct"`
	EquityByMarketCap  string              `json:"equity_distribution_market_cap"`
	EquityByIndustry   string              `json:"equity_distribution_industry"`
	EquityBySector     string              `json:"equity_distribution_sector"`
}

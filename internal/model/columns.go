package model

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// Column is one named field of the exported ledger.
type Column struct {
	Name  string
	Value func(r *OutputRow) string
}

func dec(d decimal.Decimal) string { return d.String() }

func nullDec(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

// Columns is the canonical export order of an OutputRow.
var Columns = []Column{
	{"Date", func(r *OutputRow) string { return r.Date }},
	{"Ticker", func(r *OutputRow) string { return r.Ticker }},
	{"Asset Type", func(r *OutputRow) string { return r.AssetType }},
	{"Side", func(r *OutputRow) string { return r.Side.String() }},
	{"Direction", func(r *OutputRow) string {
		if r.Direction == Flat {
			return ""
		}
		return r.Direction.String()
	}},
	{"Initial Balance", func(r *OutputRow) string { return dec(r.InitialBalance) }},
	{"Buyable/Sellable", func(r *OutputRow) string { return dec(r.BuyableSellable) }},
	{"Quantity Buy", func(r *OutputRow) string { return dec(r.QuantityBuy) }},
	{"Available Balance", func(r *OutputRow) string { return dec(r.AvailableBalance) }},
	{"Current Quantity", func(r *OutputRow) string { return dec(r.CurrentQuantity) }},
	{"Price", func(r *OutputRow) string { return dec(r.Price) }},
	{"Avg Price", func(r *OutputRow) string { return dec(r.AvgPrice) }},
	{"Cost Basis", func(r *OutputRow) string { return dec(r.CostBasis) }},
	{"Equity", func(r *OutputRow) string { return dec(r.Equity) }},
	{"PnL (Long) Unrealized", func(r *OutputRow) string { return dec(r.LongUnrealized) }},
	{"PnL (Short) Unrealized", func(r *OutputRow) string { return dec(r.ShortUnrealized) }},
	{"Pnl Unrealized", func(r *OutputRow) string { return r.OpenUnrealized }},
	{"PnL Unrealized Total Value for Current Ticker", func(r *OutputRow) string { return dec(r.TickerUnrealized) }},
	{"PnL realized Total Value for Current Ticker", func(r *OutputRow) string { return dec(r.TickerRealized) }},
	{"PnL Realized at Point of Time", func(r *OutputRow) string { return nullDec(r.RealizedAtPoint) }},
	{"PnL Unrealized at Point of Time", func(r *OutputRow) string { return dec(r.UnrealizedAtPoint) }},
	{"Equity (Long)", func(r *OutputRow) string { return dec(r.EquityLong) }},
	{"Equity (Short)", func(r *OutputRow) string { return dec(r.EquityShort) }},
	{"Open Position", func(r *OutputRow) string { return r.OpenPositions }},
	{"Open Equity", func(r *OutputRow) string { return r.OpenEquity }},
	{"Total Equity", func(r *OutputRow) string { return dec(r.TotalEquity) }},
	{"Account Value", func(r *OutputRow) string { return dec(r.AccountValue) }},
	{"Realized PnL at Point of Time (Portfolio)", func(r *OutputRow) string { return dec(r.RealizedCumulative) }},
	{"Unrealized PnL at Point of Time (Portfolio)", func(r *OutputRow) string { return dec(r.UnrealizedTotal) }},
	{"Total PnL Overall (Unrealized+Realized)", func(r *OutputRow) string { return dec(r.TotalPnL) }},
	{"Daily PnL (Unrealized+Realized)", func(r *OutputRow) string { return dec(r.DailyPnL) }},
	{"Liquidation Price", func(r *OutputRow) string { return nullDec(r.LiquidationPrice) }},
	{"Take Profit", func(r *OutputRow) string { return nullDec(r.TakeProfit) }},
	{"Stop Loss", func(r *OutputRow) string { return nullDec(r.StopLoss) }},
	{"Last Day Pnl / Daily $", func(r *OutputRow) string { return dec(r.LastDayPnL) }},
	{"Daily %", func(r *OutputRow) string { return r.DailyPct.String() }},
	{"Cumulative %", func(r *OutputRow) string { return r.CumulativePct.String() }},
	{"Investment Count", func(r *OutputRow) string { return strconv.Itoa(r.InvestmentCount) }},
	{"Performance", func(r *OutputRow) string { return r.Performance.String() }},
	{"Backtester Net Performance %", func(r *OutputRow) string { return r.NetPerformancePct.String() }},
	{"Sharpe Ratio", func(r *OutputRow) string { return r.Sharpe.String() }},
	{"Sortino Ratio", func(r *OutputRow) string { return r.Sortino.String() }},
	{"Calmar Ratio", func(r *OutputRow) string { return r.Calmar.String() }},
	{"Asset Count", func(r *OutputRow) string { return r.AssetCount }},
	{"Asset Performance %", func(r *OutputRow) string { return r.AssetPerformancePct.String() }},
	{"Trade No. (Position - Trade no. - Current Quantity)", func(r *OutputRow) string { return r.TradeDescriptor }},
	{"Total Trades", func(r *OutputRow) string { return r.TotalTrades }},
	{"Win/Loss", func(r *OutputRow) string { return r.WinLoss }},
	{"Win Rate", func(r *OutputRow) string { return r.WinRate.String() }},
	{"Win:Loss Ratio", func(r *OutputRow) string { return r.WinLossRatio }},
	{"Backtester Reward/Risk Ratio", func(r *OutputRow) string { return r.RewardRisk.String() }},
	{"Backtester Expectancy", func(r *OutputRow) string { return r.Expectancy.String() }},
	{"Backtester Avg Winning PnL %", func(r *OutputRow) string { return r.AvgWinningPct.String() }},
	{"Backtester Avg Losing PnL %", func(r *OutputRow) string { return r.AvgLosingPct.String() }},
	{"Backtester Avg PnL %", func(r *OutputRow) string { return r.AvgPnLPct.String() }},
	{"Backtester Max Drawdown", func(r *OutputRow) string { return r.BacktestMaxDrawdown.String() }},
	{"Trades/Month", func(r *OutputRow) string { return r.TradesPerMonth }},
	{"Absolute Quantity Counts", func(r *OutputRow) string { return r.AbsoluteQuantityCount }},
	{"Most Traded Symbol", func(r *OutputRow) string { return r.MostTraded }},
	{"Most Bought", func(r *OutputRow) string { return r.MostBought }},
	{"Least Traded", func(r *OutputRow) string { return r.LeastTraded }},
	{"Avg Losing PnL", func(r *OutputRow) string { return dec(r.AvgLosingPnL) }},
	{"Avg Winning PnL", func(r *OutputRow) string { return dec(r.AvgWinningPnL) }},
	{"Most Profitable", func(r *OutputRow) string { return r.MostProfitable }},
	{"Least Profitable", func(r *OutputRow) string { return r.LeastProfitable }},
	{"Max Drawdown", func(r *OutputRow) string { return r.MaxDrawdown.String() }},
	{"Total Gain", func(r *OutputRow) string { return dec(r.TotalGain) }},
	{"Average Gain", func(r *OutputRow) string { return nullDec(r.AverageGain) }},
	{"Biggest Investment", func(r *OutputRow) string { return r.BiggestInvestment }},
	{"Average Position", func(r *OutputRow) string { return nullDec(r.AveragePosition) }},
	{"Holdings", func(r *OutputRow) string { return strconv.Itoa(r.Holdings) }},
	{"YTD PnL", func(r *OutputRow) string { return nullDec(r.YTDPnL) }},
	{"Highest Traded Volume", func(r *OutputRow) string { return dec(r.HighestVolume) }},
	{"Lowest Traded Volume", func(r *OutputRow) string { return dec(r.LowestVolume) }},
	{"Average Holding Days", func(r *OutputRow) string { return r.AverageHoldingDays.String() }},
	{"Distribution", func(r *OutputRow) string { return r.Distribution }},
	{"Distribution in %", func(r *OutputRow) string { return r.DistributionPct }},
	{"Equity Distribution (Market Cap)", func(r *OutputRow) string { return r.EquityByMarketCap }},
	{"Equity Distribution (Industry)", func(r *OutputRow) string { return r.EquityByIndustry }},
	{"Equity Distribution (Sector)", func(r *OutputRow) string { return r.EquityBySector }},
}

// ColumnNames returns the export header.
func ColumnNames() []string {
	names := make([]string, len(Columns))
	for i, c := range Columns {
		names[i] = c.Name
	}
	return names
}

// Record renders the row in Columns order.
func (r *OutputRow) Record() []string {
	rec := make([]string, len(Columns))
	for i, c := range Columns {
		rec[i] = c.Value(r)
	}
	return rec
}

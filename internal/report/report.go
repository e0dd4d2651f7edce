// Package report condenses a run's ledger into a summary for the API and the
// command line.
package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"github.com/atmx/portfolio-engine/internal/lifecycle"
	"github.com/atmx/portfolio-engine/internal/model"
)

// Currency is the display currency for summaries. The engine itself is
// currency-agnostic.
const Currency = money.USD

// Summary is the end state of a run plus the dispersion of its daily returns.
type Summary struct {
	RunID       string          `json:"run_id,omitempty"`
	Events      int             `json:"events"`
	InitialCash decimal.Decimal `json:"initial_cash"`

	AvailableBalance decimal.Decimal `json:"available_balance"`
	AccountValue     decimal.Decimal `json:"account_value"`
	RealizedPnL      decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL    decimal.Decimal `json:"unrealized_pnl"`
	TotalPnL         decimal.Decimal `json:"total_pnl"`

	CumulativePct model.Ratio `json:"cumulative_pct"`
	MeanDailyPct  model.Ratio `json:"mean_daily_pct"`
	StdDailyPct   model.Ratio `json:"std_daily_pct"`
	Sharpe        model.Ratio `json:"sharpe"`
	Sortino       model.Ratio `json:"sortino"`
	Calmar        model.Ratio `json:"calmar"`
	MaxDrawdown   model.Ratio `json:"max_drawdown"`
	WinRate       model.Ratio `json:"win_rate"`

	TotalTrades   string `json:"total_trades"`
	OpenPositions string `json:"open_positions"`
	Holdings      int    `json:"holdings"`
	MostTraded    string `json:"most_traded"`
	Distribution  string `json:"distribution"`
}

// Build summarizes rows, which must be in processing order. A run with no
// rows reports its initial cash as both balance and account value.
func Build(runID string, initialCash decimal.Decimal, rows []model.OutputRow) Summary {
	s := Summary{
		RunID:            runID,
		Events:           len(rows),
		InitialCash:      initialCash,
		AvailableBalance: initialCash,
		AccountValue:     initialCash,
		TotalTrades:      lifecycle.NoTrade,
		OpenPositions:    "None",
		Distribution:     "None",
	}
	if len(rows) == 0 {
		return s
	}

	last := rows[len(rows)-1]
	s.AvailableBalance = last.AvailableBalance
	s.AccountValue = last.AccountValue
	s.RealizedPnL = last.RealizedCumulative
	s.UnrealizedPnL = last.UnrealizedTotal
	s.TotalPnL = last.TotalPnL
	s.CumulativePct = last.CumulativePct
	s.Sharpe = last.Sharpe
	s.Sortino = last.Sortino
	s.Calmar = last.Calmar
	s.MaxDrawdown = last.MaxDrawdown
	s.WinRate = last.WinRate
	s.TotalTrades = last.TotalTrades
	s.OpenPositions = last.OpenPositions
	s.Holdings = last.Holdings
	s.MostTraded = last.MostTraded
	s.Distribution = last.Distribution

	daily := make([]float64, 0, len(rows))
	for _, r := range rows {
		if r.DailyPct.Kind == model.Finite {
			daily = append(daily, r.DailyPct.Value)
		}
	}
	switch len(daily) {
	case 0:
	case 1:
		s.MeanDailyPct = model.FiniteRatio(daily[0])
	default:
		mean, std := stat.MeanStdDev(daily, nil)
		s.MeanDailyPct = model.FiniteRatio(mean)
		s.StdDailyPct = model.FiniteRatio(std)
	}
	return s
}

// FormatMoney renders amount in Currency, e.g. "$1,234.56". Amounts are
// rounded to the currency's minor unit.
func FormatMoney(amount decimal.Decimal) string {
	cur := money.GetCurrency(Currency)
	if cur == nil {
		return amount.StringFixed(2)
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0)
	return money.New(minor.IntPart(), Currency).Display()
}

func pct(r model.Ratio) string {
	if r.Kind == model.Finite {
		return fmt.Sprintf("%.2f%%", r.Value)
	}
	if r.Defined() {
		return r.String()
	}
	return "n/a"
}

func num(r model.Ratio) string {
	if r.Kind == model.Finite {
		return fmt.Sprintf("%.4f", r.Value)
	}
	if r.Defined() {
		return r.String()
	}
	return "n/a"
}

// WriteText prints s as an aligned two-column table.
func (s Summary) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	lines := [][2]string{
		{"Events", fmt.Sprint(s.Events)},
		{"Initial cash", FormatMoney(s.InitialCash)},
		{"Available balance", FormatMoney(s.AvailableBalance)},
		{"Account value", FormatMoney(s.AccountValue)},
		{"Realized P&L", FormatMoney(s.RealizedPnL)},
		{"Unrealized P&L", FormatMoney(s.UnrealizedPnL)},
		{"Total P&L", FormatMoney(s.TotalPnL)},
		{"Cumulative return", pct(s.CumulativePct)},
		{"Mean daily return", pct(s.MeanDailyPct)},
		{"Daily return std", pct(s.StdDailyPct)},
		{"Sharpe", num(s.Sharpe)},
		{"Sortino", num(s.Sortino)},
		{"Calmar", num(s.Calmar)},
		{"Max drawdown", pct(s.MaxDrawdown)},
		{"Win rate", pct(s.WinRate)},
		{"Trades", s.TotalTrades},
		{"Holdings", fmt.Sprint(s.Holdings)},
		{"Open positions", s.OpenPositions},
		{"Most traded", s.MostTraded},
		{"Distribution", s.Distribution},
	}
	if s.RunID != "" {
		lines = append([][2]string{{"Run", s.RunID}}, lines...)
	}
	for _, l := range lines {
		if _, err := fmt.Fprintf(tw, "%s\t%s\n", l[0], l[1]); err != nil {
			return err
		}
	}
	return tw.Flush()
}

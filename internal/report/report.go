// Package report flattens a BacktestResult into row-oriented tables that any
// tabular exporter can serialize. Money is rounded to cents and prices to
// four places with decimal arithmetic so exported figures do not show float
// residue.
package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"grid-backtester/internal/types"
)

const (
	TableSummary      = "summary"
	TableCashFlows    = "cash_flows"
	TablePairedTrades = "paired_trades"
	TableTrades       = "trades"
	TableEquity       = "equity"
)

const timeLayout = "2006-01-02 15:04:05"

// Table is a named grid of string cells. Every row has len(Columns) cells.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// Build returns all report tables in a fixed order.
func Build(res *types.BacktestResult) []Table {
	return []Table{
		Summary(res),
		CashFlows(res),
		PairedTrades(res),
		Trades(res),
		Equity(res),
	}
}

// Summary is a two-column metric/value table.
func Summary(res *types.BacktestResult) Table {
	s := res.Summary
	xirr := ""
	if res.XIRR != nil {
		xirr = pct(*res.XIRR * 100)
	}

	rows := [][]string{
		{"run_id", res.RunID},
		{"symbol", s.Symbol},
		{"start", formatTime(s.Start)},
		{"end", formatTime(s.End)},
		{"cancelled", strconv.FormatBool(res.Cancelled)},
		{"initial_capital", money(s.InitialCapital)},
		{"final_equity", money(s.FinalEquity)},
		{"total_return_pct", pct(s.TotalReturnPct)},
		{"realized_pnl", money(s.RealizedPnL)},
		{"unrealized_pnl", money(s.UnrealizedPnL)},
		{"total_band_profit", money(s.TotalBandProfit)},
		{"max_capital_used", money(s.MaxCapitalUsed)},
		{"return_on_used_pct", pct(s.ReturnOnUsedPct)},
		{"max_drawdown_pct", pct(s.MaxDrawdownPct)},
		{"xirr_pct", xirr},
		{"last_price", price(s.LastPrice)},
		{"final_cash", money(res.FinalAccount.Cash)},
		{"final_position", qty(res.FinalAccount.Position)},
		{"position_cost_basis", price(res.FinalAccount.PositionCostBasis)},
		{"buy_count", strconv.Itoa(s.BuyCount)},
		{"sell_count", strconv.Itoa(s.SellCount)},
		{"closed_bands", strconv.Itoa(s.ClosedBands)},
		{"open_bands", strconv.Itoa(s.OpenBands)},
		{"retained_shares", qty(s.RetainedShares)},
		{"winning_bands", strconv.Itoa(s.WinningBands)},
		{"win_rate_pct", pct(s.WinRate)},
		{"ticks_processed", strconv.FormatUint(s.TicksProcessed, 10)},
		{"skipped_ticks", strconv.Itoa(s.SkippedTicks)},
		{"clamped_buys", strconv.Itoa(s.ClampedBuys)},
		{"clamped_sells", strconv.Itoa(s.ClampedSells)},
		{"rejected_signals", strconv.Itoa(s.RejectedSignals)},
		{"orphan_sells", strconv.Itoa(s.OrphanSells)},
	}
	return Table{Name: TableSummary, Columns: []string{"metric", "value"}, Rows: rows}
}

// CashFlows is the XIRR input with a trailing TOTAL row.
func CashFlows(res *types.BacktestResult) Table {
	t := Table{Name: TableCashFlows, Columns: []string{"date", "amount"}}
	total := decimal.Zero
	for _, cf := range res.CashFlows {
		amt := decimal.NewFromFloat(cf.Amount)
		total = total.Add(amt)
		t.Rows = append(t.Rows, []string{formatTime(cf.Date), amt.StringFixed(2)})
	}
	t.Rows = append(t.Rows, []string{"TOTAL", total.StringFixed(2)})
	return t
}

func PairedTrades(res *types.BacktestResult) Table {
	t := Table{Name: TablePairedTrades, Columns: []string{
		"id", "level", "grid_type", "status",
		"buy_time", "buy_price", "buy_amount", "buy_value",
		"sell_time", "sell_price", "sell_amount", "sell_value",
		"remaining_shares", "band_profit", "band_profit_rate_pct",
	}}
	for _, p := range res.PairedTrades {
		sellTime := ""
		if p.SellTime != nil {
			sellTime = formatTime(*p.SellTime)
		}
		t.Rows = append(t.Rows, []string{
			strconv.Itoa(p.ID),
			strconv.Itoa(p.Level),
			string(p.GridType),
			string(p.Status),
			formatTime(p.BuyTime),
			price(p.BuyPrice),
			qty(p.BuyAmount),
			money(p.BuyValue),
			sellTime,
			optional(p.SellPrice, price),
			optional(p.SellAmount, qty),
			optional(p.SellValue, money),
			qty(p.RemainingShares),
			optional(p.BandProfit, money),
			optional(p.BandProfitRate, pct),
		})
	}
	return t
}

func Trades(res *types.BacktestResult) Table {
	t := Table{Name: TableTrades, Columns: []string{
		"time", "level", "grid_type", "side", "price", "amount", "value", "clamped", "orphan",
	}}
	for _, tr := range res.Trades {
		t.Rows = append(t.Rows, []string{
			formatTime(tr.Time),
			strconv.Itoa(tr.Level),
			string(tr.GridType),
			string(tr.Side),
			price(tr.Price),
			qty(tr.Amount),
			money(tr.Value),
			strconv.FormatBool(tr.Clamped),
			strconv.FormatBool(tr.Orphan),
		})
	}
	return t
}

func Equity(res *types.BacktestResult) Table {
	t := Table{Name: TableEquity, Columns: []string{"day", "equity"}}
	for _, p := range res.Equity {
		t.Rows = append(t.Rows, []string{p.Day.Format("2006-01-02"), money(p.Equity)})
	}
	return t
}

// WriteCSV writes the header row followed by every data row.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}

func money(v float64) string { return decimal.NewFromFloat(v).StringFixed(2) }
func price(v float64) string { return decimal.NewFromFloat(v).StringFixed(4) }
func pct(v float64) string   { return decimal.NewFromFloat(v).StringFixed(2) }
func qty(v float64) string   { return decimal.NewFromFloat(v).String() }

func optional(v *float64, format func(float64) string) string {
	if v == nil {
		return ""
	}
	return format(*v)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timeLayout)
}

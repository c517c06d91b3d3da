package engine

import (
	"math"

	"grid-backtester/internal/types"
)

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// progressInterval picks the progress cadence: the configured value, else
// 1% of a known total, else DefaultProgressEvery.
func progressInterval(configured int, total uint64) uint64 {
	if configured > 0 {
		return uint64(configured)
	}
	if total > 0 {
		if every := total / 100; every > 0 {
			return every
		}
		return 1
	}
	return DefaultProgressEvery
}

// BuildCashFlows turns executed trades into XIRR input. Buys are outflows and
// sells inflows, each dated at its trade. A position still held at the end
// is valued at last.Price and added as one inflow dated at last.Time.
func BuildCashFlows(trades []types.Trade, position float64, last types.Tick) []types.CashFlow {
	flows := make([]types.CashFlow, 0, len(trades)+1)
	for _, t := range trades {
		amount := t.Value
		if t.Side == types.SideBuy {
			amount = -amount
		}
		flows = append(flows, types.CashFlow{Date: t.Time, Amount: amount})
	}
	if position > 0 && last.Price > 0 && !last.Time.IsZero() {
		flows = append(flows, types.CashFlow{Date: last.Time, Amount: position * last.Price})
	}
	return flows
}

func (s *simulation) summary(processed uint64, res *types.BacktestResult) types.Summary {
	acct := res.FinalAccount
	val := s.account.MarkToMarket(s.last.Price)
	stats := s.executor.stats

	sum := types.Summary{
		Symbol:          s.symbol,
		Start:           s.first.Time,
		End:             s.last.Time,
		LastPrice:       s.last.Price,
		InitialCapital:  acct.InitialCapital,
		FinalEquity:     val.Equity,
		RealizedPnL:     acct.RealizedPnL,
		UnrealizedPnL:   val.UnrealizedPnL,
		TotalBandProfit: s.ledger.TotalBandProfit(),
		RetainedShares:  s.ledger.TotalRetainedShares(),
		MaxCapitalUsed:  acct.MaxCapitalUsed,
		MaxDrawdownPct:  s.equity.drawdownPct(),
		BuyCount:        stats.buys,
		SellCount:       stats.sells,
		TicksProcessed:  processed,
		SkippedTicks:    s.skipped,
		ClampedBuys:     stats.clampedBuys,
		ClampedSells:    stats.clampedSells,
		RejectedSignals: stats.rejected,
		OrphanSells:     stats.orphans,
	}

	gain := sum.FinalEquity - sum.InitialCapital
	if sum.InitialCapital > 0 {
		sum.TotalReturnPct = gain / sum.InitialCapital * 100
	}
	if sum.MaxCapitalUsed > 0 {
		sum.ReturnOnUsedPct = gain / sum.MaxCapitalUsed * 100
	}

	for _, p := range res.PairedTrades {
		if p.Status != types.StatusClosed {
			sum.OpenBands++
			continue
		}
		sum.ClosedBands++
		if p.BandProfit != nil && *p.BandProfit > 0 {
			sum.WinningBands++
		}
	}
	if sum.ClosedBands > 0 {
		sum.WinRate = float64(sum.WinningBands) / float64(sum.ClosedBands) * 100
	}
	return sum
}

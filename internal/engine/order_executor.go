package engine

import (
	"context"
	"fmt"

	"grid-backtester/internal/account"
	"grid-backtester/internal/grid"
	"grid-backtester/internal/ledger"
	"grid-backtester/internal/logger"
	"grid-backtester/internal/metrics"
	"grid-backtester/internal/types"
)

type execStats struct {
	buys         int
	sells        int
	clampedBuys  int
	clampedSells int
	rejected     int
	orphans      int
}

// orderExecutor books grid signals: ledger first, then the account, both
// with the same (possibly clamped) amount.
type orderExecutor struct {
	symbol  string
	grid    *grid.Engine
	ledger  *ledger.Ledger
	account *account.State
	risk    *riskManager

	trades []types.Trade
	stats  execStats
}

func newOrderExecutor(symbol string, g *grid.Engine, led *ledger.Ledger, acct *account.State) *orderExecutor {
	return &orderExecutor{
		symbol:  symbol,
		grid:    g,
		ledger:  led,
		account: acct,
		risk:    newRiskManager(symbol, acct),
	}
}

// executeBuy books a Buy signal.
//
// Parameters:
//   - ctx: Context for logging and tracing
//   - sig: Buy signal from the grid
//
// A buy that cash cannot cover is clamped to the affordable whole amount.
// If nothing is affordable the signal is rejected and the level reverted.
func (oe *orderExecutor) executeBuy(ctx context.Context, sig types.Signal) {
	amount, clamped := oe.risk.sizeBuy(ctx, sig)
	if amount <= 0 {
		oe.reject(ctx, sig, "insufficient cash")
		return
	}
	sig.Amount = amount

	oe.ledger.Buy(sig)
	if err := oe.account.ApplyBuy(sig.Price, amount); err != nil {
		panic(fmt.Sprintf("engine: sized buy rejected by account: %v", err))
	}

	oe.stats.buys++
	if clamped {
		oe.stats.clampedBuys++
		metrics.Adjustments.WithLabelValues(metrics.AdjustClampedBuy).Inc()
	}
	oe.record(ctx, sig, amount, clamped, false)
}

// executeSell books a Sell signal.
//
// Parameters:
//   - ctx: Context for logging and tracing
//   - sig: Sell signal from the grid
//
// The amount is clamped to the account position, then again by the ledger
// to the open band size. A sell with no position at all is rejected.
func (oe *orderExecutor) executeSell(ctx context.Context, sig types.Signal) {
	amount, clamped := oe.risk.sizeSell(ctx, sig)
	if amount <= 0 {
		oe.reject(ctx, sig, "no position")
		return
	}
	sig.Amount = amount

	out := oe.ledger.Sell(ctx, sig)
	if err := oe.account.ApplySell(sig.Price, out.Amount); err != nil {
		panic(fmt.Sprintf("engine: sized sell rejected by account: %v", err))
	}

	oe.stats.sells++
	clamped = clamped || out.Clamped
	if clamped {
		oe.stats.clampedSells++
		metrics.Adjustments.WithLabelValues(metrics.AdjustClampedSell).Inc()
	}
	if out.Orphan {
		oe.stats.orphans++
		metrics.Adjustments.WithLabelValues(metrics.AdjustOrphanSell).Inc()
	}
	oe.record(ctx, sig, out.Amount, clamped, out.Orphan)
}

func (oe *orderExecutor) reject(ctx context.Context, sig types.Signal, reason string) {
	oe.stats.rejected++
	metrics.Adjustments.WithLabelValues(metrics.AdjustRejected).Inc()
	logger.Risk(ctx, oe.symbol, "SIGNAL_REJECTED",
		"side", string(sig.Side),
		"level", sig.Level,
		"price", sig.Price,
		"amount", sig.Amount,
		"reason", reason,
	)
	if err := oe.grid.Revert(sig); err != nil {
		logger.ErrorWithErr(ctx, "Failed to revert grid level", err, "level", sig.Level)
	}
}

func (oe *orderExecutor) record(ctx context.Context, sig types.Signal, amount float64, clamped, orphan bool) {
	oe.trades = append(oe.trades, types.Trade{
		Time:     sig.Time,
		Level:    sig.Level,
		GridType: sig.Kind,
		Side:     sig.Side,
		Price:    sig.Price,
		Amount:   amount,
		Value:    sig.Price * amount,
		Orphan:   orphan,
		Clamped:  clamped,
	})
	metrics.Signals.WithLabelValues(string(sig.Side)).Inc()
	logger.Trade(ctx, oe.symbol, string(sig.Side), sig.Level, amount, sig.Price,
		"time", sig.Time,
		"cash", oe.account.Cash(),
		"position", oe.account.Position(),
	)
}

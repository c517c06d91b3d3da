package engine

import (
	"context"

	"grid-backtester/internal/account"
	"grid-backtester/internal/logger"
	"grid-backtester/internal/types"
)

// riskManager sizes signals against what the account can actually do.
// It never mutates the account.
type riskManager struct {
	symbol  string
	account *account.State
}

func newRiskManager(symbol string, acct *account.State) *riskManager {
	return &riskManager{symbol: symbol, account: acct}
}

// sizeBuy returns the amount that can be bought for sig.
//
// Parameters:
//   - ctx: Context for logging
//   - sig: Buy signal as emitted by the grid
//
// Returns:
//   - amount: sig.Amount when cash covers it, else floor(cash/price); 0 means reject
//   - clamped: true if amount is below sig.Amount
func (rm *riskManager) sizeBuy(ctx context.Context, sig types.Signal) (amount float64, clamped bool) {
	if rm.account.CanBuy(sig.Price, sig.Amount) {
		return sig.Amount, false
	}

	amount = rm.account.MaxAffordable(sig.Price)
	if amount > sig.Amount {
		amount = sig.Amount
	}
	logger.Risk(ctx, rm.symbol, "BUY_CLAMPED_INSUFFICIENT_CASH",
		"level", sig.Level,
		"price", sig.Price,
		"requested", sig.Amount,
		"affordable", amount,
		"cash", rm.account.Cash(),
	)
	return amount, true
}

// sizeSell returns the amount that can be sold for sig.
//
// Parameters:
//   - ctx: Context for logging
//   - sig: Sell signal as emitted by the grid
//
// Returns:
//   - amount: sig.Amount when the position covers it, else the whole position; 0 means reject
//   - clamped: true if amount is below sig.Amount
func (rm *riskManager) sizeSell(ctx context.Context, sig types.Signal) (amount float64, clamped bool) {
	held := rm.account.Position()
	if sig.Amount <= held {
		return sig.Amount, false
	}

	logger.Risk(ctx, rm.symbol, "SELL_CLAMPED_INSUFFICIENT_POSITION",
		"level", sig.Level,
		"price", sig.Price,
		"requested", sig.Amount,
		"position", held,
	)
	return held, true
}

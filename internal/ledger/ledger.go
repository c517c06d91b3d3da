// Package ledger pairs grid buys with their sells into bands.
//
// Every Buy appends an Open PairedTrade. A Sell closes the oldest open entry
// at the same level (FIFO) against its full buy. When the sell is smaller
// than the buy the unsold shares stay on the closed row as RemainingShares
// and move to the level's retained holdings, which never pair with a later
// sell.
package ledger

import (
	"context"

	"grid-backtester/internal/logger"
	"grid-backtester/internal/types"
)

// SellOutcome describes how one Sell signal was booked.
type SellOutcome struct {
	// Amount is the number of shares actually booked. It is lower than the
	// signal amount when the sell was clamped to the open entry's size.
	Amount  float64
	Clamped bool
	// Orphan is set when the level had nothing open; the sell is then booked
	// against the account's average cost instead of a band.
	Orphan bool
	// TradeID is the closed PairedTrade, 0 for orphan sells.
	TradeID    int
	BandProfit float64
}

type Ledger struct {
	entries []types.PairedTrade
	open     [][]int // per level index, FIFO of entry positions
	retained []float64
	orphans  []types.Trade
}

// New creates a ledger for a grid with levelCount levels.
func New(levelCount int) *Ledger {
	return &Ledger{open: make([][]int, levelCount), retained: make([]float64, levelCount)}
}

// Buy records a new open band and returns its trade ID.
func (l *Ledger) Buy(sig types.Signal) int {
	l.grow(sig.LevelIndex)
	id := len(l.entries) + 1
	l.entries = append(l.entries, types.PairedTrade{
		ID:              id,
		Level:           sig.Level,
		LevelIndex:      sig.LevelIndex,
		GridType:        sig.Kind,
		BuyTime:         sig.Time,
		BuyPrice:        sig.Price,
		BuyAmount:       sig.Amount,
		BuyValue:        sig.Value(),
		RemainingShares: sig.Amount,
		Status:          types.StatusOpen,
	})
	l.open[sig.LevelIndex] = append(l.open[sig.LevelIndex], id-1)
	return id
}

// Sell books one Sell signal. Every call produces exactly one ledger update:
// either a closed band or an orphan record.
func (l *Ledger) Sell(ctx context.Context, sig types.Signal) SellOutcome {
	l.grow(sig.LevelIndex)
	queue := l.open[sig.LevelIndex]
	if len(queue) == 0 {
		l.orphans = append(l.orphans, types.Trade{
			Time:     sig.Time,
			Level:    sig.Level,
			GridType: sig.Kind,
			Side:     types.SideSell,
			Price:    sig.Price,
			Amount:   sig.Amount,
			Value:    sig.Value(),
			Orphan:   true,
		})
		logger.Warn(ctx, "Sell without open band, booked as orphan_sell",
			"level", sig.Level, "price", sig.Price, "amount", sig.Amount)
		return SellOutcome{Amount: sig.Amount, Orphan: true}
	}

	pos := queue[0]
	entry := &l.entries[pos]
	out := SellOutcome{Amount: sig.Amount}
	if sig.Amount > entry.BuyAmount {
		logger.Warn(ctx, "Sell larger than open band, clamping",
			"level", sig.Level, "sell_amount", sig.Amount, "buy_amount", entry.BuyAmount)
		out.Amount = entry.BuyAmount
		out.Clamped = true
	}

	l.open[sig.LevelIndex] = queue[1:]
	l.retained[sig.LevelIndex] += entry.BuyAmount - out.Amount

	closeEntry(entry, sig, out.Amount)
	out.TradeID = entry.ID
	out.BandProfit = *entry.BandProfit
	return out
}

func closeEntry(e *types.PairedTrade, sig types.Signal, amount float64) {
	sellTime := sig.Time
	sellPrice := sig.Price
	sellAmount := amount
	sellValue := sig.Price * amount

	remaining := e.BuyAmount - sellAmount
	if remaining < 0 {
		remaining = 0
	}
	profit := BandProfit(sellValue, remaining, sellPrice, e.BuyValue)

	e.SellTime = &sellTime
	e.SellPrice = &sellPrice
	e.SellAmount = &sellAmount
	e.SellValue = &sellValue
	e.RemainingShares = remaining
	e.BandProfit = &profit
	e.BandProfitRate = BandProfitRate(profit, e.BuyValue)
	e.Status = types.StatusClosed
}

// BandProfit is the realized result of one band, marking any unsold
// remainder at the sell price.
func BandProfit(sellValue, remaining, sellPrice, buyValue float64) float64 {
	return sellValue + remaining*sellPrice - buyValue
}

// BandProfitRate is profit as a percentage of the buy value, nil when the
// buy value is zero.
func BandProfitRate(profit, buyValue float64) *float64 {
	if buyValue == 0 {
		return nil
	}
	rate := profit / buyValue * 100
	return &rate
}

func (l *Ledger) grow(idx int) {
	for idx >= len(l.open) {
		l.open = append(l.open, nil)
		l.retained = append(l.retained, 0)
	}
}

// PairedTrades returns a copy of all entries in insertion order. Entries
// that are still open carry no sell fields and RemainingShares == BuyAmount.
func (l *Ledger) PairedTrades() []types.PairedTrade {
	out := make([]types.PairedTrade, len(l.entries))
	copy(out, l.entries)
	return out
}

// OpenTrades lists the unmatched buys at a level, oldest first.
func (l *Ledger) OpenTrades(levelIndex int) []types.OpenTrade {
	if levelIndex < 0 || levelIndex >= len(l.open) {
		return nil
	}
	out := make([]types.OpenTrade, 0, len(l.open[levelIndex]))
	for _, pos := range l.open[levelIndex] {
		e := l.entries[pos]
		out = append(out, types.OpenTrade{
			BuyTime:   e.BuyTime,
			BuyPrice:  e.BuyPrice,
			BuyAmount: e.BuyAmount,
			BuyValue:  e.BuyValue,
			GridType:  e.GridType,
		})
	}
	return out
}

func (l *Ledger) Orphans() []types.Trade {
	out := make([]types.Trade, len(l.orphans))
	copy(out, l.orphans)
	return out
}

// OpenShares is the total remaining shares across all open entries.
func (l *Ledger) OpenShares() float64 {
	var total float64
	for _, q := range l.open {
		for _, pos := range q {
			total += l.entries[pos].RemainingShares
		}
	}
	return total
}

// RetainedShares is what closed bands at a level kept unsold.
func (l *Ledger) RetainedShares(levelIndex int) float64 {
	if levelIndex < 0 || levelIndex >= len(l.retained) {
		return 0
	}
	return l.retained[levelIndex]
}

// TotalRetainedShares sums RetainedShares over all levels.
func (l *Ledger) TotalRetainedShares() float64 {
	var total float64
	for _, r := range l.retained {
		total += r
	}
	return total
}

// TotalBandProfit sums band profit over closed entries.
func (l *Ledger) TotalBandProfit() float64 {
	var total float64
	for _, e := range l.entries {
		if e.BandProfit != nil {
			total += *e.BandProfit
		}
	}
	return total
}

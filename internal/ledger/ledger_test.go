package ledger

import (
	"context"
	"math"
	"testing"
	"time"

	"grid-backtester/internal/types"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func buy(idx int, price, amount float64, day int) types.Signal {
	return types.Signal{Side: types.SideBuy, Level: idx + 1, LevelIndex: idx, Kind: types.KindNormal,
		Time: t0.AddDate(0, 0, day), Price: price, Amount: amount}
}

func sell(idx int, price, amount float64, day int) types.Signal {
	s := buy(idx, price, amount, day)
	s.Side = types.SideSell
	return s
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestFullBand(t *testing.T) {
	ctx := context.Background()
	l := New(1)
	id := l.Buy(buy(0, 0.90, 1000, 0))
	if id != 1 {
		t.Fatalf("Expected trade ID 1, got %d", id)
	}

	out := l.Sell(ctx, sell(0, 1.00, 1000, 3))
	if out.Orphan || out.Clamped || out.TradeID != 1 {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if !near(out.BandProfit, 100) {
		t.Errorf("Expected band profit 100, got %f", out.BandProfit)
	}

	trades := l.PairedTrades()
	if len(trades) != 1 {
		t.Fatalf("Expected 1 paired trade, got %d", len(trades))
	}
	pt := trades[0]
	if pt.Status != types.StatusClosed || pt.RemainingShares != 0 {
		t.Errorf("Expected closed with no remainder, got %s / %f", pt.Status, pt.RemainingShares)
	}
	if pt.BandProfitRate == nil || !near(*pt.BandProfitRate, 100.0/900.0*100) {
		t.Errorf("Expected band profit rate %.4f, got %v", 100.0/900.0*100, pt.BandProfitRate)
	}
	if pt.RemainingShares != pt.BuyAmount-*pt.SellAmount {
		t.Errorf("Expected remaining == buy - sell, got %f", pt.RemainingShares)
	}
}

func TestFIFOWithinLevel(t *testing.T) {
	ctx := context.Background()
	l := New(2)
	l.Buy(buy(0, 0.90, 100, 0))
	l.Buy(buy(1, 0.80, 100, 1))
	l.Buy(buy(0, 0.85, 100, 2))

	out := l.Sell(ctx, sell(0, 1.00, 100, 3))
	if out.TradeID != 1 {
		t.Errorf("Expected oldest entry (1) to close first, got %d", out.TradeID)
	}
	out = l.Sell(ctx, sell(0, 1.00, 100, 4))
	if out.TradeID != 3 {
		t.Errorf("Expected entry 3 to close second, got %d", out.TradeID)
	}
	if open := l.OpenTrades(1); len(open) != 1 || open[0].BuyPrice != 0.80 {
		t.Errorf("Expected level 2 untouched, got %+v", open)
	}
}

func TestPartialSellRetainsRemainder(t *testing.T) {
	ctx := context.Background()
	l := New(1)
	l.Buy(buy(0, 0.90, 1000, 0))

	out := l.Sell(ctx, sell(0, 1.00, 900, 1))
	if out.Clamped || out.Amount != 900 || out.TradeID != 1 {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if !near(out.BandProfit, 100) {
		t.Errorf("Expected band profit 100, got %f", out.BandProfit)
	}

	trades := l.PairedTrades()
	if len(trades) != 1 {
		t.Fatalf("Expected 1 paired trade, got %d", len(trades))
	}
	closed := trades[0]
	if closed.Status != types.StatusClosed || closed.BuyAmount != 1000 || !near(closed.BuyValue, 900) {
		t.Errorf("Expected closed row over the full buy, got %+v", closed)
	}
	if *closed.SellAmount != 900 || closed.RemainingShares != 100 {
		t.Errorf("Expected sell 900 with 100 remaining, got %f / %f", *closed.SellAmount, closed.RemainingShares)
	}
	if len(l.OpenTrades(0)) != 0 {
		t.Errorf("Expected nothing queued at the level, got %+v", l.OpenTrades(0))
	}
	if l.RetainedShares(0) != 100 {
		t.Errorf("Expected 100 retained shares, got %f", l.RetainedShares(0))
	}

	// The next band pairs with its own buy, not with the retained shares.
	second := l.Buy(buy(0, 0.90, 1000, 2))
	out = l.Sell(ctx, sell(0, 1.00, 900, 3))
	if out.Clamped || out.Amount != 900 || out.TradeID != second {
		t.Errorf("Expected unclamped 900 on entry %d, got %+v", second, out)
	}
	if !near(out.BandProfit, 100) {
		t.Errorf("Expected band profit 100, got %f", out.BandProfit)
	}
	if l.TotalRetainedShares() != 200 {
		t.Errorf("Expected 200 retained shares, got %f", l.TotalRetainedShares())
	}
	if l.OpenShares() != 0 {
		t.Errorf("Expected nothing open, got %f", l.OpenShares())
	}
}

func TestOversizedSellIsClamped(t *testing.T) {
	ctx := context.Background()
	l := New(1)
	l.Buy(buy(0, 0.90, 500, 0))

	out := l.Sell(ctx, sell(0, 1.00, 700, 1))
	if !out.Clamped || out.Amount != 500 {
		t.Fatalf("Expected clamp to 500, got %+v", out)
	}
	pt := l.PairedTrades()[0]
	if pt.RemainingShares != 0 || *pt.SellAmount != 500 {
		t.Errorf("Expected fully sold band, got %+v", pt)
	}
	if l.RetainedShares(0) != 0 {
		t.Errorf("Expected no retained shares, got %f", l.RetainedShares(0))
	}
}

func TestOrphanSell(t *testing.T) {
	l := New(1)
	out := l.Sell(context.Background(), sell(0, 1.00, 50, 0))
	if !out.Orphan || out.TradeID != 0 {
		t.Fatalf("Expected orphan outcome, got %+v", out)
	}
	if len(l.PairedTrades()) != 0 {
		t.Error("Expected no paired trade for an orphan sell")
	}
	if orphans := l.Orphans(); len(orphans) != 1 || !orphans[0].Orphan {
		t.Errorf("Expected one orphan record, got %+v", orphans)
	}
}

func TestClosedEntriesAreImmutable(t *testing.T) {
	ctx := context.Background()
	l := New(1)
	l.Buy(buy(0, 0.90, 100, 0))
	l.Sell(ctx, sell(0, 1.00, 100, 1))
	before := l.PairedTrades()[0]

	l.Buy(buy(0, 0.90, 100, 2))
	l.Sell(ctx, sell(0, 1.10, 100, 3))
	after := l.PairedTrades()[0]

	if *after.SellPrice != *before.SellPrice || !after.SellTime.Equal(*before.SellTime) {
		t.Errorf("Expected closed entry unchanged, before %+v after %+v", before, after)
	}
	if !near(l.TotalBandProfit(), 10+20) {
		t.Errorf("Expected total band profit 30, got %f", l.TotalBandProfit())
	}
}

func TestBandProfitRateZeroBuyValue(t *testing.T) {
	if BandProfitRate(5, 0) != nil {
		t.Error("Expected nil rate for zero buy value")
	}
	if got := BandProfit(100, 10, 1.0, 90); got != 20 {
		t.Errorf("Expected 20, got %f", got)
	}
}

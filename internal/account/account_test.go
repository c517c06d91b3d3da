package account

import (
	"errors"
	"math"
	"testing"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestNewRejectsNonPositiveCapital(t *testing.T) {
	for _, c := range []float64{0, -10, math.NaN()} {
		if _, err := New(c); err == nil {
			t.Errorf("Expected error for initial capital %v", c)
		}
	}
}

func TestWeightedCostBasis(t *testing.T) {
	acct, _ := New(10000)
	if err := acct.ApplyBuy(1.00, 1000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := acct.ApplyBuy(0.80, 1000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap := acct.Snapshot()
	if !near(snap.PositionCostBasis, 0.90) {
		t.Errorf("Expected cost basis 0.90, got %f", snap.PositionCostBasis)
	}
	if !near(snap.Cash, 8200) || snap.Position != 2000 {
		t.Errorf("Expected cash 8200 / position 2000, got %f / %f", snap.Cash, snap.Position)
	}
	if !near(snap.MaxCapitalUsed, 1800) {
		t.Errorf("Expected max capital used 1800, got %f", snap.MaxCapitalUsed)
	}

	// Sells leave the cost basis alone.
	if err := acct.ApplySell(1.00, 500); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap = acct.Snapshot()
	if !near(snap.PositionCostBasis, 0.90) {
		t.Errorf("Expected cost basis unchanged at 0.90, got %f", snap.PositionCostBasis)
	}
	if !near(snap.RealizedPnL, 50) {
		t.Errorf("Expected realized P&L 50, got %f", snap.RealizedPnL)
	}
	if !near(snap.MaxCapitalUsed, 1800) {
		t.Errorf("Expected high-water mark kept at 1800, got %f", snap.MaxCapitalUsed)
	}
}

func TestInsufficientCash(t *testing.T) {
	acct, _ := New(1000)
	err := acct.ApplyBuy(1.5, 1000)
	if !errors.Is(err, ErrInsufficientCash) {
		t.Fatalf("Expected ErrInsufficientCash, got %v", err)
	}
	if acct.Cash() != 1000 || acct.Position() != 0 {
		t.Errorf("Expected account untouched after rejected buy, got cash %f position %f", acct.Cash(), acct.Position())
	}

	n := acct.MaxAffordable(1.5)
	if n != 666 {
		t.Fatalf("Expected 666 affordable shares, got %f", n)
	}
	if err := acct.ApplyBuy(1.5, n); err != nil {
		t.Fatalf("unexpected error after clamp: %v", err)
	}
	if acct.Cash() < 0 {
		t.Errorf("Expected non-negative cash, got %f", acct.Cash())
	}
}

func TestExactSpendLeavesZeroCash(t *testing.T) {
	acct, _ := New(100)
	if err := acct.ApplyBuy(0.1, 1000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acct.Cash() < 0 {
		t.Errorf("Expected cash >= 0, got %g", acct.Cash())
	}
}

func TestInsufficientPosition(t *testing.T) {
	acct, _ := New(1000)
	_ = acct.ApplyBuy(1, 100)
	if err := acct.ApplySell(1, 150); !errors.Is(err, ErrInsufficientPosition) {
		t.Fatalf("Expected ErrInsufficientPosition, got %v", err)
	}
	if acct.Position() != 100 {
		t.Errorf("Expected position untouched, got %f", acct.Position())
	}
}

func TestInvalidOrder(t *testing.T) {
	acct, _ := New(1000)
	if err := acct.ApplyBuy(0, 10); !errors.Is(err, ErrInvalidOrder) {
		t.Errorf("Expected ErrInvalidOrder for zero price, got %v", err)
	}
	if err := acct.ApplySell(1, -1); !errors.Is(err, ErrInvalidOrder) {
		t.Errorf("Expected ErrInvalidOrder for negative amount, got %v", err)
	}
}

func TestMarkToMarketIsReadOnly(t *testing.T) {
	acct, _ := New(1000)
	_ = acct.ApplyBuy(1, 100)
	before := acct.Snapshot()

	v := acct.MarkToMarket(1.2)
	if !near(v.PositionValue, 120) || !near(v.Equity, 1020) || !near(v.UnrealizedPnL, 20) {
		t.Errorf("unexpected valuation %+v", v)
	}
	if acct.Snapshot() != before {
		t.Error("Expected MarkToMarket not to mutate the account")
	}
}

package xirr

import (
	"errors"
	"math"
	"testing"
	"time"

	"grid-backtester/internal/types"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSolveSimpleYear(t *testing.T) {
	start := day(2023, 1, 1)
	flows := []types.CashFlow{
		{Date: start, Amount: -1000},
		{Date: start.AddDate(0, 0, 365), Amount: 1100},
	}
	rate, err := Solve(flows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(rate-0.10) > 0.0001 {
		t.Errorf("Expected 10.00%%, got %.6f%%", rate*100)
	}
}

func TestSolveKnownSchedule(t *testing.T) {
	flows := []types.CashFlow{
		{Date: day(2008, 1, 1), Amount: -10000},
		{Date: day(2008, 3, 1), Amount: 2750},
		{Date: day(2008, 10, 30), Amount: 4250},
		{Date: day(2009, 2, 15), Amount: 3250},
		{Date: day(2009, 4, 1), Amount: 2750},
	}
	rate, err := Solve(flows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(rate-0.373362535) > 1e-6 {
		t.Errorf("Expected 0.373362535, got %.9f", rate)
	}
	if npv := XNPV(rate, flows); math.Abs(npv) > DefaultTolerance {
		t.Errorf("Expected XNPV ~0 at the root, got %g", npv)
	}
}

func TestSolveNegativeRate(t *testing.T) {
	start := day(2022, 6, 1)
	flows := []types.CashFlow{
		{Date: start, Amount: -1000},
		{Date: start.AddDate(0, 0, 365), Amount: 900},
	}
	rate, err := Solve(flows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(rate+0.10) > 0.0001 {
		t.Errorf("Expected -10%%, got %.6f", rate)
	}
}

func TestSolveUnorderedFlowsUsesEarliestDate(t *testing.T) {
	start := day(2023, 1, 1)
	ordered := []types.CashFlow{
		{Date: start, Amount: -1000},
		{Date: start.AddDate(0, 0, 100), Amount: 300},
		{Date: start.AddDate(0, 0, 365), Amount: 800},
	}
	shuffled := []types.CashFlow{ordered[2], ordered[0], ordered[1]}

	a, errA := Solve(ordered)
	b, errB := Solve(shuffled)
	if errA != nil || errB != nil {
		t.Fatalf("unexpected errors: %v / %v", errA, errB)
	}
	if math.Abs(a-b) > 1e-9 {
		t.Errorf("Expected order-independent result, got %f vs %f", a, b)
	}
}

func TestSolveIsDeterministic(t *testing.T) {
	start := day(2023, 1, 1)
	flows := []types.CashFlow{
		{Date: start, Amount: -500},
		{Date: start.AddDate(0, 1, 0), Amount: -500},
		{Date: start.AddDate(0, 7, 3), Amount: 400},
		{Date: start.AddDate(1, 2, 0), Amount: 750},
	}
	first, err := Solve(flows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := Solve(flows)
		if err != nil || math.Abs(again-first) > DefaultTolerance {
			t.Fatalf("run %d: expected %f, got %f (%v)", i, first, again, err)
		}
	}
}

func TestSolveRejects(t *testing.T) {
	start := day(2023, 1, 1)
	tests := []struct {
		name  string
		flows []types.CashFlow
	}{
		{"empty", nil},
		{"single flow", []types.CashFlow{{Date: start, Amount: -100}}},
		{"zeros do not count", []types.CashFlow{{Date: start, Amount: -100}, {Date: start.AddDate(0, 0, 10), Amount: 0}}},
		{"all positive", []types.CashFlow{{Date: start, Amount: 100}, {Date: start.AddDate(0, 0, 30), Amount: 50}}},
		{"all negative", []types.CashFlow{{Date: start, Amount: -100}, {Date: start.AddDate(0, 0, 30), Amount: -50}}},
		{"same magnitude", []types.CashFlow{{Date: start, Amount: -100}, {Date: start.AddDate(0, 0, 30), Amount: 100}}},
		{"rate out of range", []types.CashFlow{{Date: start, Amount: -100}, {Date: start.AddDate(0, 0, 30), Amount: 10000}}},
		{"non-finite", []types.CashFlow{{Date: start, Amount: -100}, {Date: start.AddDate(0, 0, 30), Amount: math.Inf(1)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate, err := Solve(tt.flows)
			if !errors.Is(err, ErrUnsolvable) {
				t.Errorf("Expected ErrUnsolvable, got rate %f err %v", rate, err)
			}
		})
	}
}

func TestBisectionFallback(t *testing.T) {
	start := day(2023, 1, 1)
	flows := []types.CashFlow{
		{Date: start, Amount: -1000},
		{Date: start.AddDate(0, 0, 365), Amount: 1100},
	}
	opts := DefaultOptions()
	opts.MaxIterations = 0 // force the secant stage to give up

	res, err := SolveWithOptions(flows, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Method != MethodBisection {
		t.Errorf("Expected bisection, got %s", res.Method)
	}
	if math.Abs(res.Rate-0.10) > 0.0001 {
		t.Errorf("Expected 10%%, got %f", res.Rate)
	}
}

func TestXNPVAtZeroIsSum(t *testing.T) {
	start := day(2023, 1, 1)
	flows := []types.CashFlow{
		{Date: start.AddDate(0, 0, 50), Amount: 30},
		{Date: start, Amount: -100},
		{Date: start.AddDate(0, 0, 400), Amount: 90},
	}
	if got := XNPV(0, flows); math.Abs(got-20) > 1e-12 {
		t.Errorf("Expected 20, got %f", got)
	}
}

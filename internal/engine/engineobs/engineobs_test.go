package engineobs

import (
	"context"
	"errors"
	"testing"

	"grid-backtester/internal/feed"
	"grid-backtester/internal/interfaces"
	"grid-backtester/internal/types"
)

type stubBacktester struct {
	result *types.BacktestResult
	err    error
	calls  int
}

func (s *stubBacktester) Run(ctx context.Context, f interfaces.PriceFeed) (*types.BacktestResult, error) {
	s.calls++
	return s.result, s.err
}

func TestWrapPassesResultThrough(t *testing.T) {
	rate := 0.12
	stub := &stubBacktester{result: &types.BacktestResult{RunID: "abc", XIRR: &rate}}
	res, err := Wrap(stub, "TEST").Run(context.Background(), feed.NewSlice(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stub.calls != 1 || res.RunID != "abc" {
		t.Errorf("Expected one call returning run abc, got %d calls and %q", stub.calls, res.RunID)
	}
}

func TestWrapPropagatesError(t *testing.T) {
	want := errors.New("feed broken")
	stub := &stubBacktester{err: want}
	res, err := Wrap(stub, "TEST").Run(context.Background(), feed.NewSlice(nil))
	if !errors.Is(err, want) {
		t.Errorf("Expected %v, got %v", want, err)
	}
	if res != nil {
		t.Errorf("Expected nil result on error, got %+v", res)
	}
}

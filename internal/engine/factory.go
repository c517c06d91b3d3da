package engine

import (
	"sync/atomic"

	"grid-backtester/internal/account"
	"grid-backtester/internal/grid"
	"grid-backtester/internal/store"
	"grid-backtester/internal/types"
)

const (
	// DefaultProgressEvery is the progress cadence when the feed length is unknown.
	DefaultProgressEvery = 10000
	// DefaultProgressBuffer is the Job progress channel capacity.
	DefaultProgressBuffer = 16
)

// Options configures a Backtester.
type Options struct {
	Symbol         string
	InitialCapital float64
	// ProgressEvery emits a progress event every N ticks. Zero picks 1% of
	// the feed length, or DefaultProgressEvery when the length is unknown.
	ProgressEvery  int
	ProgressBuffer int
	// Progress receives progress events on the loop's goroutine. It must not block.
	Progress func(types.Progress)
	// Cancel is polled once per tick. Setting it stops the run at the next
	// tick boundary.
	Cancel *atomic.Bool
}

// New validates the grid and the capital up front so that a bad
// configuration fails before any tick is read.
func New(opts Options, levels []types.GridLevel) (*Backtester, error) {
	if err := grid.ValidateLevels(levels); err != nil {
		return nil, err
	}
	if _, err := account.New(opts.InitialCapital); err != nil {
		return nil, err
	}
	if opts.ProgressEvery < 0 {
		return nil, &types.ConfigError{Field: "backtest.progress_every", Reason: "must not be negative"}
	}
	if opts.Symbol == "" {
		opts.Symbol = "UNKNOWN"
	}

	cp := make([]types.GridLevel, len(levels))
	copy(cp, levels)
	return &Backtester{opts: opts, levels: cp}, nil
}

// NewFromConfig builds a Backtester from a validated configuration file.
func NewFromConfig(cfg *store.Config, progress func(types.Progress)) (*Backtester, error) {
	return New(Options{
		Symbol:         cfg.Backtest.Symbol,
		InitialCapital: cfg.Backtest.InitialCapital,
		ProgressEvery:  cfg.Backtest.ProgressEvery,
		ProgressBuffer: cfg.Backtest.ProgressBuffer,
		Progress:       progress,
	}, cfg.GridLevels())
}

// Package engine drives a grid backtest: it pulls ticks from a price feed,
// runs them through the grid, books the resulting signals in the trade ledger
// and the account, and assembles the final result including XIRR.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"grid-backtester/internal/account"
	"grid-backtester/internal/grid"
	"grid-backtester/internal/interfaces"
	"grid-backtester/internal/ledger"
	"grid-backtester/internal/logger"
	"grid-backtester/internal/metrics"
	"grid-backtester/internal/types"
	"grid-backtester/internal/xirr"
)

var ErrMalformedTick = errors.New("malformed tick")

// maxSkipWarnings caps warn-level logging of skipped ticks per run.
const maxSkipWarnings = 20

type Backtester struct {
	opts   Options
	levels []types.GridLevel
}

var _ interfaces.Backtester = (*Backtester)(nil)

// Run executes a full backtest synchronously. It returns an error only when
// the feed cannot be reset; bad samples, clamps and cancellation are all
// reported through the result.
func (b *Backtester) Run(ctx context.Context, feed interfaces.PriceFeed) (*types.BacktestResult, error) {
	return b.run(ctx, feed, b.opts.Progress, b.opts.Cancel)
}

// simulation is the state of one run. It is owned by the loop goroutine.
type simulation struct {
	symbol   string
	grid     *grid.Engine
	ledger   *ledger.Ledger
	account  *account.State
	executor *orderExecutor
	equity   *positionManager

	first     types.Tick
	last      types.Tick
	seen      bool
	skipped   int
	cancelled bool
}

func (b *Backtester) run(ctx context.Context, feed interfaces.PriceFeed, progress func(types.Progress), cancel ...*atomic.Bool) (*types.BacktestResult, error) {
	if feed == nil {
		return nil, errors.New("engine: nil price feed")
	}
	if err := feed.Reset(); err != nil {
		return nil, fmt.Errorf("resetting price feed: %w", err)
	}

	sim, err := b.newSimulation()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	metrics.ActiveRuns.Inc()
	defer metrics.ActiveRuns.Dec()

	total := uint64(0)
	if n := feed.Len(); n > 0 {
		total = uint64(n)
	}
	every := progressInterval(b.opts.ProgressEvery, total)
	stop := newStopManager(ctx, cancel...)

	logger.Info(ctx, "Backtest started",
		"symbol", sim.symbol,
		"levels", len(b.levels),
		"initial_capital", b.opts.InitialCapital,
		"total_ticks", total,
	)

	var processed uint64
	for {
		if stop.shouldStop() {
			sim.cancelled = true
			logger.Info(ctx, "Backtest cancelled", "symbol", sim.symbol, "processed", processed, "reason", stop.reason())
			break
		}

		tick, err := feed.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		processed++
		metrics.TicksProcessed.Inc()

		if err != nil {
			err = fmt.Errorf("%w: %v", ErrMalformedTick, err)
		} else {
			err = sim.validate(tick)
		}
		if err != nil {
			sim.skip(ctx, processed, err)
		} else {
			sim.step(ctx, tick)
		}

		if progress != nil && processed%every == 0 {
			progress(types.Progress{Processed: processed, Total: total, Message: "running"})
		}
	}

	result := sim.finish(ctx, processed)

	status := "completed"
	if result.Cancelled {
		status = "cancelled"
	}
	if progress != nil {
		progress(types.Progress{Processed: processed, Total: total, Message: status})
	}
	metrics.RunDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

	logger.Info(ctx, "Backtest finished",
		"run_id", result.RunID,
		"symbol", sim.symbol,
		"status", status,
		"processed", processed,
		"skipped", sim.skipped,
		"trades", len(result.Trades),
		"final_equity", result.Summary.FinalEquity,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

func (b *Backtester) newSimulation() (*simulation, error) {
	g, err := grid.New(b.levels)
	if err != nil {
		return nil, err
	}
	acct, err := account.New(b.opts.InitialCapital)
	if err != nil {
		return nil, err
	}
	led := ledger.New(g.Len())
	return &simulation{
		symbol:   b.opts.Symbol,
		grid:     g,
		ledger:   led,
		account:  acct,
		executor: newOrderExecutor(b.opts.Symbol, g, led, acct),
		equity:   newPositionManager(),
	}, nil
}

// validate rejects samples the grid must never see: non-finite or
// non-positive prices, missing timestamps and time going backwards.
func (s *simulation) validate(t types.Tick) error {
	if !isFinite(t.Price) || t.Price <= 0 {
		return fmt.Errorf("%w: price %v", ErrMalformedTick, t.Price)
	}
	if t.Time.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrMalformedTick)
	}
	if s.seen && t.Time.Before(s.last.Time) {
		return fmt.Errorf("%w: time %s before previous %s", ErrMalformedTick,
			t.Time.Format(time.RFC3339), s.last.Time.Format(time.RFC3339))
	}
	return nil
}

func (s *simulation) skip(ctx context.Context, index uint64, err error) {
	s.skipped++
	metrics.TicksSkipped.Inc()
	if s.skipped <= maxSkipWarnings {
		logger.Warn(ctx, "Skipping tick", "symbol", s.symbol, "index", index, "error", err)
		if s.skipped == maxSkipWarnings {
			logger.Warn(ctx, "Further skipped ticks logged at debug level", "symbol", s.symbol)
		}
		return
	}
	logger.Debug(ctx, "Skipping tick", "symbol", s.symbol, "index", index, "error", err)
}

func (s *simulation) step(ctx context.Context, tick types.Tick) {
	if !s.seen {
		s.first = tick
		s.seen = true
	}
	s.last = tick

	for _, sig := range s.grid.ProcessTick(tick) {
		switch sig.Side {
		case types.SideBuy:
			s.executor.executeBuy(ctx, sig)
		case types.SideSell:
			s.executor.executeSell(ctx, sig)
		}
	}
	s.equity.mark(tick, s.account.MarkToMarket(tick.Price))
}

func (s *simulation) finish(ctx context.Context, processed uint64) *types.BacktestResult {
	res := &types.BacktestResult{
		RunID:        uuid.NewString(),
		Trades:       s.executor.trades,
		PairedTrades: s.ledger.PairedTrades(),
		OrphanSells:  s.ledger.Orphans(),
		FinalAccount: s.account.Snapshot(),
		Cancelled:    s.cancelled,
		Equity:       s.equity.points(),
	}
	if res.Trades == nil {
		res.Trades = []types.Trade{}
	}

	res.CashFlows = BuildCashFlows(res.Trades, res.FinalAccount.Position, s.last)
	res.XIRR = solveXIRR(ctx, s.symbol, res.CashFlows)
	res.Summary = s.summary(processed, res)
	return res
}

// solveXIRR returns nil when the flows have no meaningful rate.
func solveXIRR(ctx context.Context, symbol string, flows []types.CashFlow) *float64 {
	op := logger.StartOperation(ctx, "xirr.Solve", "symbol", symbol, "flows", len(flows))
	rate, err := xirr.Solve(flows)
	if err != nil {
		metrics.XIRRSolves.WithLabelValues("unsolvable").Inc()
		op.End("outcome", "unsolvable", "reason", err.Error())
		return nil
	}
	metrics.XIRRSolves.WithLabelValues("solved").Inc()
	op.End("outcome", "solved", "rate", rate)
	return &rate
}

package engine

import (
	"context"
	"sync/atomic"

	"grid-backtester/internal/interfaces"
	"grid-backtester/internal/types"
)

// Job is a backtest running on its own goroutine. The loop is the only
// writer; a supervisor may read progress, cancel and wait concurrently.
type Job struct {
	cancel   atomic.Bool
	progress chan types.Progress
	dropped  atomic.Uint64
	done     chan struct{}

	result *types.BacktestResult
	err    error
}

// Start runs the backtest in the background. The Options cancel flag and
// progress callback are still honored alongside the Job's own.
func (b *Backtester) Start(ctx context.Context, feed interfaces.PriceFeed) *Job {
	size := b.opts.ProgressBuffer
	if size <= 0 {
		size = DefaultProgressBuffer
	}
	j := &Job{
		progress: make(chan types.Progress, size),
		done:     make(chan struct{}),
	}

	publish := func(p types.Progress) {
		if b.opts.Progress != nil {
			b.opts.Progress(p)
		}
		select {
		case j.progress <- p:
		default:
			j.dropped.Add(1)
		}
	}

	go func() {
		defer close(j.done)
		defer close(j.progress)
		j.result, j.err = b.run(ctx, feed, publish, &j.cancel, b.opts.Cancel)
	}()
	return j
}

// Cancel asks the loop to stop at the next tick boundary. Safe to call more
// than once and from any goroutine.
func (j *Job) Cancel() { j.cancel.Store(true) }

// Progress is closed when the run ends. Events that find it full are dropped.
func (j *Job) Progress() <-chan types.Progress { return j.progress }

// Dropped counts progress events lost to a full channel.
func (j *Job) Dropped() uint64 { return j.dropped.Load() }

func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the run ends or ctx is done. Cancelling ctx here only
// stops waiting; use Cancel to stop the run.
func (j *Job) Wait(ctx context.Context) (*types.BacktestResult, error) {
	select {
	case <-j.done:
		return j.result, j.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

package engineobs

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"grid-backtester/internal/interfaces"
	"grid-backtester/internal/logger"
	"grid-backtester/internal/trace"
	"grid-backtester/internal/types"
)

type observableBacktester struct {
	backtester interfaces.Backtester
	symbol     string
}

var _ interfaces.Backtester = (*observableBacktester)(nil)

func Wrap(bt interfaces.Backtester, symbol string) interfaces.Backtester {
	return &observableBacktester{
		backtester: bt,
		symbol:     symbol,
	}
}

func (ob *observableBacktester) Run(ctx context.Context, feed interfaces.PriceFeed) (*types.BacktestResult, error) {
	ctx, span := trace.StartSpan(ctx, "engine.Run")
	defer span.End()

	start := time.Now()

	logger.InfoSkip(ctx, 1, "Starting backtest",
		"symbol", ob.symbol,
		"total_ticks", feed.Len(),
	)

	result, err := ob.backtester.Run(ctx, feed)
	if err != nil {
		if trace.Enabled() {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		logger.ErrorWithErrSkip(ctx, 1, "Backtest failed", err,
			"symbol", ob.symbol,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	if trace.Enabled() {
		span.SetAttributes(
			attribute.String("run_id", result.RunID),
			attribute.Int("trades", len(result.Trades)),
			attribute.Bool("cancelled", result.Cancelled),
		)
	}

	xirr := "n/a"
	if result.XIRR != nil {
		xirr = fmt.Sprintf("%.2f%%", *result.XIRR*100)
	}
	logger.InfoSkip(ctx, 1, "Backtest completed",
		"symbol", ob.symbol,
		"run_id", result.RunID,
		"cancelled", result.Cancelled,
		"trades", len(result.Trades),
		"final_equity", result.Summary.FinalEquity,
		"xirr", xirr,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return result, nil
}

package interfaces

import (
	"context"

	"grid-backtester/internal/types"
)

type Backtester interface {
	Run(ctx context.Context, feed PriceFeed) (*types.BacktestResult, error)
}

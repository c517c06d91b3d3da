package interfaces

import (
	"context"

	"grid-backtester/internal/types"
)

// ReportExporter writes the tables of a finished run somewhere durable.
type ReportExporter interface {
	// Export writes every report table of result.
	//
	// Returns:
	//   - paths: One entry per written table
	//   - error: Error if any table could not be written
	Export(ctx context.Context, result *types.BacktestResult) (paths []string, err error)
}

package reportobs

import (
	"context"

	"grid-backtester/internal/interfaces"
	"grid-backtester/internal/logger"
	"grid-backtester/internal/trace"
	"grid-backtester/internal/types"
)

type observableExporter struct {
	exporter interfaces.ReportExporter
}

var _ interfaces.ReportExporter = (*observableExporter)(nil)

func Wrap(exporter interfaces.ReportExporter) interfaces.ReportExporter {
	return &observableExporter{
		exporter: exporter,
	}
}

func (oe *observableExporter) Export(ctx context.Context, res *types.BacktestResult) ([]string, error) {
	ctx, span := trace.StartSpan(ctx, "report.Export")
	defer span.End()

	runID := ""
	if res != nil {
		runID = res.RunID
	}

	logger.InfoSkip(ctx, 1, "Starting report export",
		"run_id", runID,
	)

	paths, err := oe.exporter.Export(ctx, res)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Report export failed", err,
			"run_id", runID,
			"written", len(paths),
		)
		return paths, err
	}

	logger.InfoSkip(ctx, 1, "Report exported successfully",
		"run_id", runID,
		"files", paths,
	)

	return paths, nil
}

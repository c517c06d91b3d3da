package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"grid-backtester/internal/engine"
	"grid-backtester/internal/engine/engineobs"
	"grid-backtester/internal/feed"
	"grid-backtester/internal/interfaces"
	"grid-backtester/internal/logger"
	"grid-backtester/internal/metrics"
	"grid-backtester/internal/report"
	"grid-backtester/internal/report/reportobs"
	"grid-backtester/internal/store"
	"grid-backtester/internal/trace"
	"grid-backtester/internal/tradelog"
	"grid-backtester/internal/types"
)

// initializeSystem loads .env and sets up logging and tracing
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

// loadConfig loads and validates the strategy configuration
func loadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	logger.Info(ctx, "Config loaded",
		"path", path,
		"symbol", cfg.Backtest.Symbol,
		"levels", len(cfg.GridLevels()),
		"initial_capital", cfg.Backtest.InitialCapital,
	)
	return cfg, nil
}

// openFeed reads the price CSV in the configured timezone
func openFeed(ctx context.Context, cfg *store.Config, path string) (interfaces.PriceFeed, error) {
	loc, err := time.LoadLocation(cfg.Backtest.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", cfg.Backtest.Timezone, err)
	}
	f, err := feed.OpenCSV(path, loc)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to open price file", err, "path", path)
		return nil, err
	}
	logger.Info(ctx, "Price file loaded", "path", path, "rows", f.Len())
	return f, nil
}

// initializeBacktester builds the backtester with observability
func initializeBacktester(cfg *store.Config, progress func(types.Progress)) (interfaces.Backtester, error) {
	bt, err := engine.NewFromConfig(cfg, progress)
	if err != nil {
		return nil, err
	}
	return engineobs.Wrap(bt, cfg.Backtest.Symbol), nil
}

// initializeExporter builds the report exporter with observability
func initializeExporter(cfg *store.Config) interfaces.ReportExporter {
	return reportobs.Wrap(report.NewExporter(cfg.Report.OutputDir))
}

// startMetricsServer serves /metrics until ctx is done
func startMetricsServer(ctx context.Context, addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info(ctx, "Metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorWithErr(ctx, "Metrics server failed", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

// writeJournal journals the run if the trade log is enabled
func writeJournal(ctx context.Context, cfg *store.Config, res *types.BacktestResult) {
	if !cfg.TradeLog.Enabled {
		return
	}
	if v := os.Getenv("BACKTEST_LOG_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			if err := tradelog.CompressOlder(cfg.TradeLog.Dir, n); err != nil {
				logger.Warn(ctx, "Failed to compress old journals", "error", err)
			}
		}
	}
	p, err := tradelog.WriteRun(cfg.TradeLog.Dir, res)
	if err != nil {
		logger.Warn(ctx, "Failed to write trade journal", "error", err)
		return
	}
	logger.Info(ctx, "Trade journal written", "path", p)
}

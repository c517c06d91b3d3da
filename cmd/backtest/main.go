package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"grid-backtester/internal/logger"
	"grid-backtester/internal/trace"
	"grid-backtester/internal/types"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	ticksPath := flag.String("ticks", "", "price CSV (time,price) to replay (required)")
	outDir := flag.String("out", "", "report output directory (overrides config)")
	metricsAddr := flag.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	quiet := flag.Bool("quiet", false, "do not print progress")
	flag.Parse()

	if *ticksPath == "" {
		fmt.Println("Error: -ticks is required")
		flag.Usage()
		os.Exit(1)
	}

	if err := initializeSystem(); err != nil {
		fmt.Printf("Error initializing: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = trace.Shutdown(shutdownCtx)
	}()

	if err := run(ctx, *configPath, *ticksPath, *outDir, *metricsAddr, *quiet); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, ticksPath, outDir, metricsAddr string, quiet bool) error {
	cfg, err := loadConfig(ctx, configPath)
	if err != nil {
		return err
	}
	if outDir != "" {
		cfg.Report.OutputDir = outDir
	}

	startMetricsServer(ctx, metricsAddr)

	priceFeed, err := openFeed(ctx, cfg, ticksPath)
	if err != nil {
		return err
	}

	progress := func(p types.Progress) {
		if quiet {
			return
		}
		if p.Total > 0 {
			fmt.Fprintf(os.Stderr, "\r%s: %d/%d (%.0f%%)", p.Message, p.Processed, p.Total,
				float64(p.Processed)/float64(p.Total)*100)
		} else {
			fmt.Fprintf(os.Stderr, "\r%s: %d", p.Message, p.Processed)
		}
		if p.Message != "running" {
			fmt.Fprintln(os.Stderr)
		}
	}

	bt, err := initializeBacktester(cfg, progress)
	if err != nil {
		return err
	}

	// SIGINT cancels ctx; the loop stops at the next tick and still returns
	// a partial result, which is reported like a full one.
	res, err := bt.Run(ctx, priceFeed)
	if err != nil {
		return err
	}

	printSummary(res)

	// Exports must still happen after an interrupted run.
	exportCtx := context.WithoutCancel(ctx)
	paths, err := initializeExporter(cfg).Export(exportCtx, res)
	if err != nil {
		logger.ErrorWithErr(exportCtx, "Report export failed", err)
	}
	for _, p := range paths {
		fmt.Println("Report written:", p)
	}
	writeJournal(exportCtx, cfg, res)
	return nil
}

func printSummary(res *types.BacktestResult) {
	s := res.Summary
	fmt.Println("─────────────────────────────────────────────────────────────")
	fmt.Printf("Run %s  %s  %s → %s\n", res.RunID, s.Symbol,
		s.Start.Format("2006-01-02"), s.End.Format("2006-01-02"))
	if res.Cancelled {
		fmt.Println("⚠️  Cancelled: partial result")
	}
	fmt.Printf("Initial capital   %14.2f\n", s.InitialCapital)
	fmt.Printf("Final equity      %14.2f  (%.2f%%)\n", s.FinalEquity, s.TotalReturnPct)
	fmt.Printf("Band profit       %14.2f\n", s.TotalBandProfit)
	fmt.Printf("Realized / unreal %14.2f / %.2f\n", s.RealizedPnL, s.UnrealizedPnL)
	fmt.Printf("Max capital used  %14.2f  (return on used %.2f%%)\n", s.MaxCapitalUsed, s.ReturnOnUsedPct)
	fmt.Printf("Max drawdown      %13.2f%%\n", s.MaxDrawdownPct)
	if res.XIRR != nil {
		fmt.Printf("XIRR              %13.2f%%\n", *res.XIRR*100)
	} else {
		fmt.Println("XIRR                        n/a")
	}
	fmt.Printf("Trades %d buys / %d sells, bands %d closed / %d open, win rate %.1f%%\n",
		s.BuyCount, s.SellCount, s.ClosedBands, s.OpenBands, s.WinRate)
	fmt.Printf("Ticks %d (skipped %d), clamped %d buys / %d sells, rejected %d, orphan sells %d\n",
		s.TicksProcessed, s.SkippedTicks, s.ClampedBuys, s.ClampedSells, s.RejectedSignals, s.OrphanSells)
	fmt.Println("─────────────────────────────────────────────────────────────")
}

// Package metrics provides Prometheus instrumentation for backtest runs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TicksProcessed counts price samples consumed by the tick loop.
	TicksProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridbt_ticks_processed_total",
		Help: "Price samples consumed by the backtest loop",
	})

	// TicksSkipped counts malformed samples that were skipped.
	TicksSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridbt_ticks_skipped_total",
		Help: "Malformed price samples skipped",
	})

	// Signals counts executed grid signals by side.
	Signals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridbt_signals_total",
		Help: "Executed grid signals",
	}, []string{"side"})

	// Adjustments counts signals that were clamped, rejected or booked as orphans.
	Adjustments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridbt_signal_adjustments_total",
		Help: "Signals clamped, rejected or booked without a band",
	}, []string{"kind"})

	// XIRRSolves counts solver outcomes.
	XIRRSolves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridbt_xirr_solves_total",
		Help: "XIRR solve attempts by outcome",
	}, []string{"outcome"})

	// RunDuration tracks wall time of complete runs.
	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gridbt_run_duration_seconds",
		Help:    "Backtest run duration in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
	}, []string{"status"})

	// ActiveRuns is the number of runs in progress.
	ActiveRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gridbt_active_runs",
		Help: "Backtest runs currently in progress",
	})
)

const (
	AdjustClampedBuy  = "clamped_buy"
	AdjustClampedSell = "clamped_sell"
	AdjustRejected    = "rejected"
	AdjustOrphanSell  = "orphan_sell"
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

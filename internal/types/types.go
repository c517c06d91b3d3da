package types

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// GridKind classifies a grid level by the ladder it belongs to.
type GridKind string

const (
	KindNormal GridKind = "NORMAL"
	KindSmall  GridKind = "SMALL"
	KindMedium GridKind = "MEDIUM"
	KindLarge  GridKind = "LARGE"
	KindCustom GridKind = "CUSTOM"
)

// ParseGridKind accepts the kind names case-insensitively. Empty means Normal.
func ParseGridKind(s string) (GridKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "NORMAL":
		return KindNormal, nil
	case "SMALL":
		return KindSmall, nil
	case "MEDIUM":
		return KindMedium, nil
	case "LARGE":
		return KindLarge, nil
	case "CUSTOM":
		return KindCustom, nil
	}
	return "", fmt.Errorf("unknown grid kind %q", s)
}

// GridLevel is the immutable configuration of one price band.
type GridLevel struct {
	Level      int      `json:"level" yaml:"level"`
	Kind       GridKind `json:"kind" yaml:"kind"`
	BuyPrice   float64  `json:"buy_price" yaml:"buy_price"`
	SellPrice  float64  `json:"sell_price" yaml:"sell_price"`
	BuyShares  float64  `json:"buy_shares" yaml:"buy_shares"`
	SellShares float64  `json:"sell_shares" yaml:"sell_shares"`
}

// Validate checks the level invariants. It returns a *ConfigError.
// Comparisons are negated so that NaN fails them.
func (l GridLevel) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"buy_price", l.BuyPrice},
		{"sell_price", l.SellPrice},
		{"buy_shares", l.BuyShares},
		{"sell_shares", l.SellShares},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return &ConfigError{Level: l.Level, Field: f.name, Reason: fmt.Sprintf("must be finite, got %g", f.value)}
		}
	}
	if !(l.BuyPrice > 0) {
		return &ConfigError{Level: l.Level, Field: "buy_price", Reason: fmt.Sprintf("must be positive, got %g", l.BuyPrice)}
	}
	if !(l.BuyPrice < l.SellPrice) {
		return &ConfigError{Level: l.Level, Field: "sell_price", Reason: fmt.Sprintf("buy_price %g must be below sell_price %g", l.BuyPrice, l.SellPrice)}
	}
	if !(l.BuyShares > 0) {
		return &ConfigError{Level: l.Level, Field: "buy_shares", Reason: fmt.Sprintf("must be positive, got %g", l.BuyShares)}
	}
	if !(l.SellShares > 0) {
		return &ConfigError{Level: l.Level, Field: "sell_shares", Reason: fmt.Sprintf("must be positive, got %g", l.SellShares)}
	}
	return nil
}

// LevelState is the per-level grid state machine position.
type LevelState int

const (
	StateIdle LevelState = iota
	StateBought
)

func (s LevelState) String() string {
	if s == StateBought {
		return "BOUGHT"
	}
	return "IDLE"
}

// GridLevelState is the mutable runtime state of one level.
type GridLevelState struct {
	State        LevelState `json:"state"`
	ArmedForBuy  bool       `json:"armed_for_buy"`
	ArmedForSell bool       `json:"armed_for_sell"`
	Cycles       int        `json:"cycles"`
}

// Tick is one price sample.
type Tick struct {
	Time  time.Time `json:"time"`
	Price float64   `json:"price"`
}

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Signal is a buy or sell instruction emitted by the grid engine.
// LevelIndex addresses the engine's level array and is stable for a run.
type Signal struct {
	Side       Side      `json:"side"`
	Level      int       `json:"level"`
	LevelIndex int       `json:"level_index"`
	Kind       GridKind  `json:"kind"`
	Time       time.Time `json:"time"`
	Price      float64   `json:"price"`
	Amount     float64   `json:"amount"`
}

func (s Signal) Value() float64 { return s.Price * s.Amount }

// OpenTrade is an unmatched buy waiting for its sell.
type OpenTrade struct {
	BuyTime   time.Time `json:"buy_time"`
	BuyPrice  float64   `json:"buy_price"`
	BuyAmount float64   `json:"buy_amount"`
	BuyValue  float64   `json:"buy_value"`
	GridType  GridKind  `json:"grid_type"`
}

type TradeStatus string

const (
	StatusOpen   TradeStatus = "OPEN"
	StatusClosed TradeStatus = "CLOSED"
)

// PairedTrade joins a buy to the sell that closed it. A closed row whose
// sell was smaller than its buy keeps the difference in RemainingShares.
type PairedTrade struct {
	ID              int         `json:"id"`
	Level           int         `json:"level"`
	LevelIndex      int         `json:"level_index"`
	GridType        GridKind    `json:"grid_type"`
	BuyTime         time.Time   `json:"buy_time"`
	BuyPrice        float64     `json:"buy_price"`
	BuyAmount       float64     `json:"buy_amount"`
	BuyValue        float64     `json:"buy_value"`
	SellTime        *time.Time  `json:"sell_time,omitempty"`
	SellPrice       *float64    `json:"sell_price,omitempty"`
	SellAmount      *float64    `json:"sell_amount,omitempty"`
	SellValue       *float64    `json:"sell_value,omitempty"`
	RemainingShares float64     `json:"remaining_shares"`
	BandProfit      *float64    `json:"band_profit,omitempty"`
	BandProfitRate  *float64    `json:"band_profit_rate,omitempty"`
	Status          TradeStatus `json:"status"`
}

// Trade is one executed signal as applied to the account.
type Trade struct {
	Time     time.Time `json:"time"`
	Level    int       `json:"level"`
	GridType GridKind  `json:"grid_type"`
	Side     Side      `json:"side"`
	Price    float64   `json:"price"`
	Amount   float64   `json:"amount"`
	Value    float64   `json:"value"`
	Orphan   bool      `json:"orphan,omitempty"`
	Clamped  bool      `json:"clamped,omitempty"`
}

type AccountSnapshot struct {
	InitialCapital    float64 `json:"initial_capital"`
	Cash              float64 `json:"cash"`
	Position          float64 `json:"position"`
	PositionCostBasis float64 `json:"position_cost_basis"`
	MaxCapitalUsed    float64 `json:"max_capital_used"`
	RealizedPnL       float64 `json:"realized_pnl"`
}

// Valuation is a read-only mark-to-market view of the account.
type Valuation struct {
	Price         float64 `json:"price"`
	PositionValue float64 `json:"position_value"`
	Equity        float64 `json:"equity"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// CashFlow is a dated signed amount; negative is an outflow.
type CashFlow struct {
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
}

type Progress struct {
	Processed uint64 `json:"processed"`
	Total     uint64 `json:"total"`
	Message   string `json:"message"`
}

type EquityPoint struct {
	Day    time.Time `json:"day"`
	Equity float64   `json:"equity"`
}

// Summary rolls up the figures shown next to a finished run.
type Summary struct {
	Symbol          string    `json:"symbol"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	LastPrice       float64   `json:"last_price"`
	InitialCapital  float64   `json:"initial_capital"`
	FinalEquity     float64   `json:"final_equity"`
	TotalReturnPct  float64   `json:"total_return_pct"`
	RealizedPnL     float64   `json:"realized_pnl"`
	UnrealizedPnL   float64   `json:"unrealized_pnl"`
	TotalBandProfit float64   `json:"total_band_profit"`
	MaxCapitalUsed  float64   `json:"max_capital_used"`
	ReturnOnUsedPct float64   `json:"return_on_used_pct"`
	MaxDrawdownPct  float64   `json:"max_drawdown_pct"`
	BuyCount        int       `json:"buy_count"`
	SellCount       int       `json:"sell_count"`
	ClosedBands     int       `json:"closed_bands"`
	OpenBands       int       `json:"open_bands"`
	RetainedShares  float64   `json:"retained_shares"`
	WinningBands    int       `json:"winning_bands"`
	WinRate         float64   `json:"win_rate"`
	TicksProcessed  uint64    `json:"ticks_processed"`
	SkippedTicks    int       `json:"skipped_ticks"`
	ClampedBuys     int       `json:"clamped_buys"`
	ClampedSells    int       `json:"clamped_sells"`
	RejectedSignals int       `json:"rejected_signals"`
	OrphanSells     int       `json:"orphan_sells"`
}

type BacktestResult struct {
	RunID        string          `json:"run_id"`
	Trades       []Trade         `json:"trades"`
	PairedTrades []PairedTrade   `json:"paired_trades"`
	OrphanSells  []Trade         `json:"orphan_sells"`
	FinalAccount AccountSnapshot `json:"final_account"`
	CashFlows    []CashFlow      `json:"cash_flows"`
	XIRR         *float64        `json:"xirr,omitempty"`
	Cancelled    bool            `json:"cancelled"`
	Summary      Summary         `json:"summary"`
	Equity       []EquityPoint   `json:"equity"`
}

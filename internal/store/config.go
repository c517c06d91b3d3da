package store

import (
	"fmt"
	"math"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"grid-backtester/internal/grid"
	"grid-backtester/internal/types"
)

type LevelConfig struct {
	Level      int     `yaml:"level"`
	Kind       string  `yaml:"kind"`
	BuyPrice   float64 `yaml:"buy_price"`
	SellPrice  float64 `yaml:"sell_price"`
	Shares     float64 `yaml:"shares"`
	BuyShares  float64 `yaml:"buy_shares"`
	SellShares float64 `yaml:"sell_shares"`
}

type Config struct {
	Backtest struct {
		Symbol         string  `yaml:"symbol"`
		InitialCapital float64 `yaml:"initial_capital"`
		ProgressEvery  int     `yaml:"progress_every"`
		ProgressBuffer int     `yaml:"progress_buffer"`
		Timezone       string  `yaml:"timezone"`
	} `yaml:"backtest"`
	Grid struct {
		Levels    []LevelConfig         `yaml:"levels"`
		Generator *grid.GeneratorConfig `yaml:"generator"`
	} `yaml:"grid"`
	Report struct {
		OutputDir string `yaml:"output_dir"`
	} `yaml:"report"`
	TradeLog struct {
		Dir     string `yaml:"dir"`
		Enabled bool   `yaml:"enabled"`
	} `yaml:"tradelog"`

	levels []types.GridLevel
}

// Validate checks the settings and resolves the grid levels. Every grid
// problem is reported as a *types.ConfigError before any tick is read.
func (c *Config) Validate() error {
	if !(c.Backtest.InitialCapital > 0) || math.IsInf(c.Backtest.InitialCapital, 1) {
		return &types.ConfigError{Field: "backtest.initial_capital", Reason: fmt.Sprintf("must be positive, got %.2f", c.Backtest.InitialCapital)}
	}
	if c.Backtest.ProgressEvery < 0 {
		return &types.ConfigError{Field: "backtest.progress_every", Reason: "must not be negative"}
	}
	if len(c.Grid.Levels) > 0 && c.Grid.Generator != nil {
		return &types.ConfigError{Field: "grid", Reason: "set either levels or generator, not both"}
	}

	levels, err := c.resolveLevels()
	if err != nil {
		return err
	}
	if err := grid.ValidateLevels(levels); err != nil {
		return err
	}
	c.levels = levels
	return nil
}

func (c *Config) resolveLevels() ([]types.GridLevel, error) {
	if c.Grid.Generator != nil {
		return grid.Generate(*c.Grid.Generator)
	}
	levels := make([]types.GridLevel, 0, len(c.Grid.Levels))
	for i, lc := range c.Grid.Levels {
		kind, err := types.ParseGridKind(lc.Kind)
		if err != nil {
			return nil, &types.ConfigError{Level: lc.Level, Field: "kind", Reason: err.Error()}
		}
		num := lc.Level
		if num == 0 {
			num = i + 1
		}
		buyShares, sellShares := lc.BuyShares, lc.SellShares
		if buyShares == 0 {
			buyShares = lc.Shares
		}
		if sellShares == 0 {
			sellShares = lc.Shares
		}
		levels = append(levels, types.GridLevel{
			Level:      num,
			Kind:       kind,
			BuyPrice:   lc.BuyPrice,
			SellPrice:  lc.SellPrice,
			BuyShares:  buyShares,
			SellShares: sellShares,
		})
	}
	return levels, nil
}

// GridLevels returns the levels resolved by Validate.
func (c *Config) GridLevels() []types.GridLevel {
	out := make([]types.GridLevel, len(c.levels))
	copy(out, c.levels)
	return out
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(b)
}

func ParseConfig(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	if c.Backtest.Symbol == "" {
		c.Backtest.Symbol = "UNKNOWN"
	}
	if c.Backtest.ProgressBuffer == 0 {
		c.Backtest.ProgressBuffer = 16
	}
	if c.Backtest.Timezone == "" {
		c.Backtest.Timezone = "UTC"
	}
	if c.Report.OutputDir == "" {
		c.Report.OutputDir = "reports"
	}
	if c.TradeLog.Dir == "" {
		c.TradeLog.Dir = "logs"
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

// applyEnv lets BACKTEST_* variables override the file.
func (c *Config) applyEnv() error {
	if v := os.Getenv("BACKTEST_INITIAL_CAPITAL"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return &types.ConfigError{Field: "BACKTEST_INITIAL_CAPITAL", Reason: fmt.Sprintf("must be a number, got %q", v)}
		}
		c.Backtest.InitialCapital = f
	}
	if v := os.Getenv("BACKTEST_SYMBOL"); v != "" {
		c.Backtest.Symbol = v
	}
	if v := os.Getenv("BACKTEST_OUTPUT_DIR"); v != "" {
		c.Report.OutputDir = v
	}
	return nil
}

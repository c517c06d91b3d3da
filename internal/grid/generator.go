package grid

import (
	"math"

	"grid-backtester/internal/types"
)

// Default band widths per ladder kind, in percent of the base price.
var DefaultStepPct = map[types.GridKind]float64{
	types.KindNormal: 5,
	types.KindSmall:  5,
	types.KindMedium: 15,
	types.KindLarge:  30,
}

// Ladder describes a run of evenly spaced levels below the base price.
// Level i buys at base*(1-(offset+step*i)%) and sells one step higher.
type Ladder struct {
	Kind           types.GridKind `yaml:"kind"`
	StepPct        float64        `yaml:"step_pct"`
	Count          int            `yaml:"count"`
	Shares         float64        `yaml:"shares"`
	RetainPct      float64        `yaml:"retain_pct"`
	StartOffsetPct float64        `yaml:"start_offset_pct"`
}

type GeneratorConfig struct {
	BasePrice float64  `yaml:"base_price"`
	PriceTick float64  `yaml:"price_tick"`
	LotSize   float64  `yaml:"lot_size"`
	Ladders   []Ladder `yaml:"ladders"`
}

// Generate builds grid levels from ladders. Levels are numbered from 1 in
// ladder order. RetainPct keeps part of each buy as a long-term position by
// selling fewer shares than were bought.
func Generate(cfg GeneratorConfig) ([]types.GridLevel, error) {
	if cfg.BasePrice <= 0 {
		return nil, &types.ConfigError{Field: "grid.generator.base_price", Reason: "must be positive"}
	}
	if cfg.PriceTick <= 0 {
		cfg.PriceTick = 0.001
	}
	if cfg.LotSize <= 0 {
		cfg.LotSize = 1
	}

	var levels []types.GridLevel
	next := 1
	for _, ld := range cfg.Ladders {
		kind := ld.Kind
		if kind == "" {
			kind = types.KindNormal
		}
		step := ld.StepPct
		if step <= 0 {
			step = DefaultStepPct[kind]
		}
		if step <= 0 {
			return nil, &types.ConfigError{Field: "grid.generator.step_pct", Reason: "required for kind " + string(kind)}
		}
		if ld.Count <= 0 {
			return nil, &types.ConfigError{Field: "grid.generator.count", Reason: "must be positive"}
		}
		if ld.RetainPct < 0 || ld.RetainPct >= 100 {
			return nil, &types.ConfigError{Field: "grid.generator.retain_pct", Reason: "must be in [0, 100)"}
		}

		buyShares := roundDown(ld.Shares, cfg.LotSize)
		sellShares := roundDown(buyShares*(1-ld.RetainPct/100), cfg.LotSize)

		for i := 0; i < ld.Count; i++ {
			down := ld.StartOffsetPct + step*float64(i)
			lvl := types.GridLevel{
				Level:      next,
				Kind:       kind,
				BuyPrice:   roundToTick(cfg.BasePrice*(1-down/100), cfg.PriceTick),
				SellPrice:  roundToTick(cfg.BasePrice*(1-(down-step)/100), cfg.PriceTick),
				BuyShares:  buyShares,
				SellShares: sellShares,
			}
			if err := lvl.Validate(); err != nil {
				return nil, err
			}
			levels = append(levels, lvl)
			next++
		}
	}
	if err := ValidateLevels(levels); err != nil {
		return nil, err
	}
	return levels, nil
}

func roundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	return math.Round(price/tick) * tick
}

func roundDown(qty, lot float64) float64 {
	if lot <= 0 {
		return qty
	}
	return math.Floor(qty/lot+1e-9) * lot
}

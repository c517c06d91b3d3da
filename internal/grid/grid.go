// Package grid turns a price stream into buy/sell signals, one small state
// machine per configured grid level.
//
// A level starts Idle. A tick at or below its buy price moves it to Bought
// and emits a Buy at the level's buy price; a later tick at or above its sell
// price emits a Sell and returns it to Idle, ready to buy again on the next
// qualifying tick. A Bought level never buys again before it has sold.
package grid

import (
	"fmt"
	"sort"

	"grid-backtester/internal/types"
)

// Engine owns the level configuration and the per-level runtime state.
// States are addressed by level index, which is the position of the level
// after sorting by level number and is stable for the engine's lifetime.
type Engine struct {
	levels []types.GridLevel
	states []types.GridLevelState
}

// New validates the levels and builds an engine. Levels are evaluated in
// ascending level number regardless of input order.
func New(levels []types.GridLevel) (*Engine, error) {
	if err := ValidateLevels(levels); err != nil {
		return nil, err
	}

	sorted := make([]types.GridLevel, len(levels))
	copy(sorted, levels)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Level < sorted[j].Level })

	e := &Engine{
		levels: sorted,
		states: make([]types.GridLevelState, len(sorted)),
	}
	e.Reset()
	return e, nil
}

// ValidateLevels checks every level and rejects duplicate level numbers.
func ValidateLevels(levels []types.GridLevel) error {
	if len(levels) == 0 {
		return &types.ConfigError{Field: "grid.levels", Reason: "at least one level is required"}
	}
	seen := make(map[int]bool, len(levels))
	for _, l := range levels {
		if err := l.Validate(); err != nil {
			return err
		}
		if seen[l.Level] {
			return &types.ConfigError{Level: l.Level, Field: "level", Reason: "duplicate level number"}
		}
		seen[l.Level] = true
	}
	return nil
}

// Reset puts every level back to Idle, armed for buying.
func (e *Engine) Reset() {
	for i := range e.states {
		e.states[i] = types.GridLevelState{State: types.StateIdle, ArmedForBuy: true}
	}
}

// ProcessTick evaluates all levels against one price sample and returns the
// signals that fired, in ascending level order.
func (e *Engine) ProcessTick(tick types.Tick) []types.Signal {
	var signals []types.Signal
	for i := range e.levels {
		lvl := &e.levels[i]
		st := &e.states[i]

		switch st.State {
		case types.StateIdle:
			if st.ArmedForBuy && tick.Price <= lvl.BuyPrice {
				st.State = types.StateBought
				st.ArmedForBuy = false
				st.ArmedForSell = true
				signals = append(signals, e.signal(i, types.SideBuy, tick))
			}
		case types.StateBought:
			if st.ArmedForSell && tick.Price >= lvl.SellPrice {
				st.State = types.StateIdle
				st.ArmedForSell = false
				st.ArmedForBuy = true
				st.Cycles++
				signals = append(signals, e.signal(i, types.SideSell, tick))
			}
		}
	}
	return signals
}

func (e *Engine) signal(idx int, side types.Side, tick types.Tick) types.Signal {
	lvl := e.levels[idx]
	sig := types.Signal{
		Side:       side,
		Level:      lvl.Level,
		LevelIndex: idx,
		Kind:       lvl.Kind,
		Time:       tick.Time,
	}
	if side == types.SideBuy {
		sig.Price, sig.Amount = lvl.BuyPrice, lvl.BuyShares
	} else {
		sig.Price, sig.Amount = lvl.SellPrice, lvl.SellShares
	}
	return sig
}

// Revert undoes the transition that produced sig. The orchestrator calls it
// when a signal could not be executed at all, so the level does not believe
// it holds shares it never bought (or has sold shares it still holds).
func (e *Engine) Revert(sig types.Signal) error {
	if sig.LevelIndex < 0 || sig.LevelIndex >= len(e.states) {
		return fmt.Errorf("grid: level index %d out of range", sig.LevelIndex)
	}
	st := &e.states[sig.LevelIndex]
	switch sig.Side {
	case types.SideBuy:
		if st.State != types.StateBought {
			return fmt.Errorf("grid: level %d is not holding, cannot revert buy", sig.Level)
		}
		st.State, st.ArmedForBuy, st.ArmedForSell = types.StateIdle, true, false
	case types.SideSell:
		if st.State != types.StateIdle || st.Cycles == 0 {
			return fmt.Errorf("grid: level %d has no sell to revert", sig.Level)
		}
		st.State, st.ArmedForBuy, st.ArmedForSell = types.StateBought, false, true
		st.Cycles--
	}
	return nil
}

// Levels returns the sorted level configuration.
func (e *Engine) Levels() []types.GridLevel {
	out := make([]types.GridLevel, len(e.levels))
	copy(out, e.levels)
	return out
}

// States returns a copy of the runtime state, indexed like Levels.
func (e *Engine) States() []types.GridLevelState {
	out := make([]types.GridLevelState, len(e.states))
	copy(out, e.states)
	return out
}

func (e *Engine) Len() int { return len(e.levels) }

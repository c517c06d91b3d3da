// Package account keeps the single cash/position book of a backtest run,
// independent of per-level band pairing.
package account

import (
	"errors"
	"fmt"
	"math"

	"grid-backtester/internal/types"
)

var (
	ErrInsufficientCash     = errors.New("insufficient cash")
	ErrInsufficientPosition = errors.New("insufficient position")
	ErrInvalidOrder         = errors.New("invalid order")
)

// epsilon absorbs float residue so that buying exactly the affordable amount
// does not leave cash at -1e-13.
const epsilon = 1e-9

// State is the account book. Cost basis is the weighted average of all buys
// and is left unchanged by sells.
type State struct {
	initial     float64
	cash        float64
	position    float64
	costBasis   float64
	maxUsed     float64
	realizedPnL float64
}

func New(initialCapital float64) (*State, error) {
	if initialCapital <= 0 || math.IsNaN(initialCapital) || math.IsInf(initialCapital, 0) {
		return nil, &types.ConfigError{Field: "backtest.initial_capital", Reason: fmt.Sprintf("must be positive, got %g", initialCapital)}
	}
	return &State{initial: initialCapital, cash: initialCapital}, nil
}

// CanBuy reports whether price*amount fits in the available cash.
func (s *State) CanBuy(price, amount float64) bool {
	return price*amount <= s.cash+epsilon
}

// MaxAffordable is the whole number of shares cash can pay for at price.
func (s *State) MaxAffordable(price float64) float64 {
	if price <= 0 {
		return 0
	}
	return math.Floor((s.cash + epsilon) / price)
}

// ApplyBuy spends price*amount. It never overdraws: a buy that does not fit
// fails with ErrInsufficientCash and leaves the account untouched.
func (s *State) ApplyBuy(price, amount float64) error {
	if price <= 0 || amount <= 0 {
		return fmt.Errorf("%w: buy %g @ %g", ErrInvalidOrder, amount, price)
	}
	cost := price * amount
	if cost > s.cash+epsilon {
		return fmt.Errorf("%w: need %.4f, have %.4f", ErrInsufficientCash, cost, s.cash)
	}

	s.costBasis = (s.costBasis*s.position + cost) / (s.position + amount)
	s.position += amount
	s.cash -= cost
	if s.cash < 0 {
		s.cash = 0
	}
	if used := s.initial - s.cash; used > s.maxUsed {
		s.maxUsed = used
	}
	s.check()
	return nil
}

// ApplySell returns price*amount to cash and books realized P&L against the
// average cost basis.
func (s *State) ApplySell(price, amount float64) error {
	if price <= 0 || amount <= 0 {
		return fmt.Errorf("%w: sell %g @ %g", ErrInvalidOrder, amount, price)
	}
	if amount > s.position+epsilon {
		return fmt.Errorf("%w: selling %g, holding %g", ErrInsufficientPosition, amount, s.position)
	}

	s.realizedPnL += (price - s.costBasis) * amount
	s.position -= amount
	if s.position < epsilon {
		s.position = 0
	}
	s.cash += price * amount
	s.check()
	return nil
}

// MarkToMarket values the position at price. It does not mutate the book.
func (s *State) MarkToMarket(price float64) types.Valuation {
	value := s.position * price
	return types.Valuation{
		Price:         price,
		PositionValue: value,
		Equity:        s.cash + value,
		UnrealizedPnL: (price - s.costBasis) * s.position,
	}
}

func (s *State) Cash() float64     { return s.cash }
func (s *State) Position() float64 { return s.position }

func (s *State) Snapshot() types.AccountSnapshot {
	return types.AccountSnapshot{
		InitialCapital:    s.initial,
		Cash:              s.cash,
		Position:          s.position,
		PositionCostBasis: s.costBasis,
		MaxCapitalUsed:    s.maxUsed,
		RealizedPnL:       s.realizedPnL,
	}
}

// check enforces cash >= 0 and position >= 0. A violation is a bug in the
// caller's clamping, not a market condition.
func (s *State) check() {
	if s.cash < 0 || s.position < 0 || math.IsNaN(s.cash) || math.IsNaN(s.position) {
		panic(fmt.Sprintf("account invariant violated: cash=%g position=%g", s.cash, s.position))
	}
}

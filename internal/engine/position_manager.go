package engine

import (
	"time"

	"grid-backtester/internal/types"
)

// positionManager follows the marked-to-market equity of the account
// through a run: its peak, the deepest drawdown from that peak and one
// closing value per calendar day.
type positionManager struct {
	peak        float64
	maxDrawdown float64 // percent of peak
	daily       []types.EquityPoint
}

func newPositionManager() *positionManager {
	return &positionManager{}
}

// mark records the valuation after a tick has been fully booked.
func (pm *positionManager) mark(tick types.Tick, v types.Valuation) {
	if v.Equity > pm.peak {
		pm.peak = v.Equity
	}
	if pm.peak > 0 {
		if dd := (pm.peak - v.Equity) / pm.peak * 100; dd > pm.maxDrawdown {
			pm.maxDrawdown = dd
		}
	}

	day := startOfDay(tick.Time)
	if n := len(pm.daily); n > 0 && pm.daily[n-1].Day.Equal(day) {
		pm.daily[n-1].Equity = v.Equity
		return
	}
	pm.daily = append(pm.daily, types.EquityPoint{Day: day, Equity: v.Equity})
}

func (pm *positionManager) points() []types.EquityPoint {
	out := make([]types.EquityPoint, len(pm.daily))
	copy(out, pm.daily)
	return out
}

func (pm *positionManager) drawdownPct() float64 {
	return pm.maxDrawdown
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

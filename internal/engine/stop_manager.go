package engine

import (
	"context"
	"sync/atomic"
)

// stopManager decides when the tick loop must halt early. Flags are set by
// other goroutines; the loop only reads them.
type stopManager struct {
	ctx   context.Context
	flags []*atomic.Bool
	why   string
}

// newStopManager watches ctx and any non-nil cancel flags.
func newStopManager(ctx context.Context, flags ...*atomic.Bool) *stopManager {
	sm := &stopManager{ctx: ctx}
	for _, f := range flags {
		if f != nil {
			sm.flags = append(sm.flags, f)
		}
	}
	return sm
}

// shouldStop is polled once per tick, before the next sample is read.
func (sm *stopManager) shouldStop() bool {
	for _, f := range sm.flags {
		if f.Load() {
			sm.why = "cancel flag set"
			return true
		}
	}
	if sm.ctx != nil {
		if err := sm.ctx.Err(); err != nil {
			sm.why = err.Error()
			return true
		}
	}
	return false
}

func (sm *stopManager) reason() string {
	return sm.why
}

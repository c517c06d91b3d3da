package interfaces

import "grid-backtester/internal/types"

// PriceFeed is an ordered, finite, restartable tick sequence. Next returns
// io.EOF when exhausted; any other error marks a malformed sample and the
// caller may keep reading. Next advances past a bad sample either way.
type PriceFeed interface {
	Len() int
	Reset() error
	Next() (types.Tick, error)
}

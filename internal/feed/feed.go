// Package feed provides restartable price feeds: an in-memory slice and a
// CSV file reader.
package feed

import (
	"io"

	"grid-backtester/internal/interfaces"
	"grid-backtester/internal/types"
)

// Slice is an in-memory feed.
type Slice struct {
	ticks []types.Tick
	pos   int
}

var _ interfaces.PriceFeed = (*Slice)(nil)

func NewSlice(ticks []types.Tick) *Slice {
	return &Slice{ticks: ticks}
}

func (s *Slice) Len() int { return len(s.ticks) }

func (s *Slice) Reset() error {
	s.pos = 0
	return nil
}

func (s *Slice) Next() (types.Tick, error) {
	if s.pos >= len(s.ticks) {
		return types.Tick{}, io.EOF
	}
	t := s.ticks[s.pos]
	s.pos++
	return t, nil
}

package datasource

import (
	"errors"
	"fmt"

	"github.com/peter-kozarec/ticksim/pkg/common"
)

var (
	ErrEof        = errors.New("EOF")
	ErrOutOfOrder = errors.New("tick timestamps are not monotonic")
)

// Merger interleaves per-symbol tick legs into one time ordered stream.
//
// Ticks of the same leg are never reordered. When the next ticks of two legs carry
// the same timestamp, the leg registered first is emitted first. Once a leg is
// exhausted the remaining legs are drained in the same manner.
type Merger struct {
	legs   [][]common.Tick
	cursor []int
}

func NewMerger(legs ...[]common.Tick) *Merger {
	return &Merger{
		legs:   legs,
		cursor: make([]int, len(legs)),
	}
}

// Len returns the total number of ticks across all legs.
func (m *Merger) Len() int {
	n := 0
	for _, leg := range m.legs {
		n += len(leg)
	}
	return n
}

// GetNext returns the next tick in global order, or ErrEof once every leg is drained.
func (m *Merger) GetNext() (common.Tick, error) {
	next := -1
	for idx, leg := range m.legs {
		if m.cursor[idx] >= len(leg) {
			continue
		}
		if next == -1 || leg[m.cursor[idx]].TimeStamp.Before(m.legs[next][m.cursor[next]].TimeStamp) {
			next = idx
		}
	}

	if next == -1 {
		return common.Tick{}, ErrEof
	}

	pos := m.cursor[next]
	tick := m.legs[next][pos]
	if pos > 0 && tick.TimeStamp.Before(m.legs[next][pos-1].TimeStamp) {
		return common.Tick{}, fmt.Errorf("leg %d (%s) at index %d: %w", next, tick.Symbol, pos, ErrOutOfOrder)
	}
	m.cursor[next]++

	return tick, nil
}

package indicators

import (
	"errors"

	"github.com/peter-kozarec/ticksim/pkg/utility/fixed"
)

var ErrNotReady = errors.New("not enough data")

// ZScore measures how far the latest point sits from the rolling mean in
// sample standard deviations.
type ZScore struct {
	data *fixed.RingBuffer
}

func NewZScore(windowSize int) *ZScore {
	return &ZScore{data: fixed.NewRingBuffer(windowSize)}
}

func (z *ZScore) AddPoint(p fixed.Point) {
	z.data.Add(p)
}

// Value is zero when the window is flat.
func (z *ZScore) Value() (fixed.Point, error) {
	if !z.IsReady() {
		return fixed.Zero, ErrNotReady
	}
	stdDev := z.data.SampleStdDev()
	if stdDev.IsZero() {
		return fixed.Zero, nil
	}
	return z.data.Latest().Sub(z.data.Mean()).Div(stdDev), nil
}

func (z *ZScore) Mean() fixed.Point {
	return z.data.Mean()
}

func (z *ZScore) IsReady() bool {
	return z.data.IsFull()
}

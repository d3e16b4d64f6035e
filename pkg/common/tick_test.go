package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/peter-kozarec/ticksim/pkg/utility/fixed"
)

func testTick() Tick {
	t := Tick{
		Symbol:    "rb2010",
		TimeStamp: time.Date(2020, 6, 1, 21, 5, 0, 0, time.UTC),
	}
	for i := 0; i < Depth; i++ {
		t.Bids[i] = Level{Price: fixed.FromInt(3700-i, 0), Volume: fixed.FromInt(10*(i+1), 0)}
		t.Asks[i] = Level{Price: fixed.FromInt(3701+i, 0), Volume: fixed.FromInt(5*(i+1), 0)}
	}
	return t
}

func TestTick_RestingVolume(t *testing.T) {
	tick := testTick()

	tests := []struct {
		name      string
		direction Direction
		price     fixed.Point
		want      fixed.Point
		found     bool
	}{
		{"long at best bid", DirectionLong, fixed.FromInt(3700, 0), fixed.FromInt(10, 0), true},
		{"long at fifth bid", DirectionLong, fixed.FromInt(3696, 0), fixed.FromInt(50, 0), true},
		{"long below visible book", DirectionLong, fixed.FromInt(3695, 0), fixed.Zero, false},
		{"short at best ask", DirectionShort, fixed.FromInt(3701, 0), fixed.FromInt(5, 0), true},
		{"short at third ask", DirectionShort, fixed.FromInt(3703, 0), fixed.FromInt(15, 0), true},
		{"short on bid side price", DirectionShort, fixed.FromInt(3700, 0), fixed.Zero, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := tick.RestingVolume(tt.direction, tt.price)
			assert.Equal(t, tt.found, found)
			assert.True(t, got.Eq(tt.want), "got %s want %s", got, tt.want)
		})
	}
}

func TestTick_Date(t *testing.T) {
	tick := testTick()
	assert.Equal(t, time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC), tick.Date())
}

func TestOrderStatus_IsActive(t *testing.T) {
	assert.True(t, OrderStatusSubmitting.IsActive())
	assert.True(t, OrderStatusNotTraded.IsActive())
	assert.True(t, OrderStatusPartTraded.IsActive())
	assert.False(t, OrderStatusAllTraded.IsActive())
	assert.False(t, OrderStatusCancelled.IsActive())
}

func TestTrade_PositionChange(t *testing.T) {
	long := Trade{Direction: DirectionLong, Volume: fixed.FromInt(3, 0)}
	short := Trade{Direction: DirectionShort, Volume: fixed.FromInt(3, 0)}

	assert.True(t, long.PositionChange().Eq(fixed.FromInt(3, 0)))
	assert.True(t, short.PositionChange().Eq(fixed.FromInt(-3, 0)))
}

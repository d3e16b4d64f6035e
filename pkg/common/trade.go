package common

import (
	"time"

	"github.com/peter-kozarec/ticksim/pkg/utility/fixed"
)

type TradeId = int64

type Trade struct {
	Id        TradeId     `json:"id"`
	OrderId   OrderId     `json:"order_id"`
	Symbol    string      `json:"symbol"`
	Direction Direction   `json:"direction"`
	Offset    Offset      `json:"offset"`
	Price     fixed.Point `json:"price"`
	Volume    fixed.Point `json:"volume"`
	TimeStamp time.Time   `json:"ts"`
}

// PositionChange is the signed volume the trade adds to the position.
func (t Trade) PositionChange() fixed.Point {
	if t.Direction == DirectionShort {
		return t.Volume.Neg()
	}
	return t.Volume
}

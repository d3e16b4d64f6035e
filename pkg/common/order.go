package common

import (
	"time"

	"github.com/peter-kozarec/ticksim/pkg/utility/fixed"
)

type OrderId = int64
type Direction int
type Offset int
type OrderStatus string

const (
	DirectionLong Direction = iota
	DirectionShort
)

const (
	OffsetOpen Offset = iota
	OffsetClose
)

const (
	OrderStatusSubmitting OrderStatus = "submitting"
	OrderStatusNotTraded  OrderStatus = "not-traded"
	OrderStatusPartTraded OrderStatus = "part-traded"
	OrderStatusAllTraded  OrderStatus = "all-traded"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

func (d Direction) String() string {
	if d == DirectionShort {
		return "short"
	}
	return "long"
}

// Sign is +1 for long and -1 for short.
func (d Direction) Sign() fixed.Point {
	if d == DirectionShort {
		return fixed.One.Neg()
	}
	return fixed.One
}

func (o Offset) String() string {
	if o == OffsetClose {
		return "close"
	}
	return "open"
}

// IsActive reports whether the status is non-terminal.
func (s OrderStatus) IsActive() bool {
	return s != OrderStatusAllTraded && s != OrderStatusCancelled
}

type Order struct {
	Id        OrderId     `json:"id"`
	Symbol    string      `json:"symbol"`
	Direction Direction   `json:"direction"`
	Offset    Offset      `json:"offset"`
	Price     fixed.Point `json:"price"`
	Volume    fixed.Point `json:"volume"`
	Traded    fixed.Point `json:"traded"`
	Status    OrderStatus `json:"status"`
	TimeStamp time.Time   `json:"ts"`
}

func (o Order) Remaining() fixed.Point {
	return o.Volume.Sub(o.Traded)
}

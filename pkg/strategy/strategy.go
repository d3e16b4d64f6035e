package strategy

import (
	"github.com/peter-kozarec/ticksim/pkg/common"
)

// Strategy is the trading logic driven by a replay. Every callback runs on the
// replay goroutine; a returned error aborts the run.
type Strategy interface {
	OnInit() error
	OnStart() error
	OnStop() error
	OnTick(tick common.Tick) error
	OnOrder(order common.Order) error
	OnTrade(trade common.Trade) error
}

// Factory builds a strategy bound to host. It is called once per replay.
type Factory func(host *Host, name string, symbols []string, params Params) (Strategy, error)

// Base implements every callback as a no-op so strategies only override what they need.
type Base struct{}

func (Base) OnInit() error              { return nil }
func (Base) OnStart() error             { return nil }
func (Base) OnStop() error              { return nil }
func (Base) OnTick(common.Tick) error   { return nil }
func (Base) OnOrder(common.Order) error { return nil }
func (Base) OnTrade(common.Trade) error { return nil }

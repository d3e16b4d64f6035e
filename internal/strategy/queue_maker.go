package strategy

import (
	"go.uber.org/zap"

	"github.com/peter-kozarec/ticksim/pkg/common"
	"github.com/peter-kozarec/ticksim/pkg/strategy"
	"github.com/peter-kozarec/ticksim/pkg/tools/indicators"
	"github.com/peter-kozarec/ticksim/pkg/utility/fixed"
)

const QueueMakerName = "queue_maker"

// QueueMaker quotes passively around a rolling mean of the mid price. It joins
// the bid below the mean and offers its inventory above it, requoting when its
// orders have rested for too long. A positive entry_z only lets it bid when the
// mid has dropped that many deviations below the mean.
type QueueMaker struct {
	strategy.Base

	host    *strategy.Host
	symbols []string

	spread  fixed.Point
	volume  fixed.Point
	maxPos  fixed.Point
	entryZ  fixed.Point
	requote int

	mids  map[string]*indicators.ZScore
	ages  map[string]int
	fills int
}

func NewQueueMaker(host *strategy.Host, _ string, symbols []string, params strategy.Params) (strategy.Strategy, error) {
	window := params.GetInt("window", 20)
	q := &QueueMaker{
		host:    host,
		symbols: symbols,
		spread:  params.GetOr("spread", fixed.One),
		volume:  params.GetOr("volume", fixed.One),
		maxPos:  params.GetOr("max_pos", fixed.FromInt(3, 0)),
		entryZ:  params.GetOr("entry_z", fixed.Zero),
		requote: params.GetInt("requote", 30),
		mids:    make(map[string]*indicators.ZScore, len(symbols)),
		ages:    make(map[string]int, len(symbols)),
	}
	for _, symbol := range symbols {
		q.mids[symbol] = indicators.NewZScore(window)
	}
	return q, nil
}

func (q *QueueMaker) OnStart() error {
	q.host.Log("queue maker started",
		zap.Strings("symbols", q.symbols),
		zap.Stringer("spread", q.spread),
		zap.Stringer("volume", q.volume))
	return nil
}

func (q *QueueMaker) OnTick(tick common.Tick) error {
	mids, ok := q.mids[tick.Symbol]
	if !ok {
		return nil
	}
	bid, ask := tick.BidPrice1(), tick.AskPrice1()
	if !bid.IsPos() || !ask.IsPos() {
		return nil
	}
	mids.AddPoint(bid.Add(ask).Div(fixed.Two))
	if !mids.IsReady() {
		return nil
	}

	if len(q.host.ActiveOrders(tick.Symbol)) > 0 {
		q.ages[tick.Symbol]++
		if q.ages[tick.Symbol] < q.requote {
			return nil
		}
		for _, order := range q.host.ActiveOrders(tick.Symbol) {
			if err := q.host.CancelOrder(order.Id); err != nil {
				return err
			}
		}
		q.ages[tick.Symbol] = 0
		return nil
	}

	mean := mids.Mean()
	edge := q.spread.Mul(q.host.PriceTick())
	pos := q.host.Pos(tick.Symbol)

	if pos.Lt(q.maxPos) && q.entered(mids) {
		if _, err := q.host.Buy(tick.Symbol, bid.Min(mean.Sub(edge)), q.volume); err != nil {
			return err
		}
	}
	if pos.IsPos() {
		if _, err := q.host.Sell(tick.Symbol, ask.Max(mean.Add(edge)), pos); err != nil {
			return err
		}
	}
	return nil
}

func (q *QueueMaker) OnTrade(trade common.Trade) error {
	q.fills++
	q.ages[trade.Symbol] = 0
	return nil
}

func (q *QueueMaker) OnStop() error {
	q.host.Log("queue maker stopped", zap.Int("fills", q.fills))
	return nil
}

func (q *QueueMaker) entered(mids *indicators.ZScore) bool {
	if !q.entryZ.IsPos() {
		return true
	}
	z, err := mids.Value()
	return err == nil && z.Lte(q.entryZ.Neg())
}

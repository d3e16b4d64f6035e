package simulation

import (
	"sort"
	"time"

	"github.com/peter-kozarec/ticksim/pkg/common"
	"github.com/peter-kozarec/ticksim/pkg/tools/metrics"
	"github.com/peter-kozarec/ticksim/pkg/utility/fixed"
)

// DailyResult is the mark-to-market account of one symbol on one calendar day.
type DailyResult struct {
	Date       time.Time      `json:"date"`
	Symbol     string         `json:"symbol"`
	ClosePrice fixed.Point    `json:"close_price"`
	PreClose   fixed.Point    `json:"pre_close"`
	Trades     []common.Trade `json:"-"`
	TradeCount int            `json:"trade_count"`
	StartPos   fixed.Point    `json:"start_pos"`
	EndPos     fixed.Point    `json:"end_pos"`
	Turnover   fixed.Point    `json:"turnover"`
	Commission fixed.Point    `json:"commission"`
	Slippage   fixed.Point    `json:"slippage"`
	TradingPnl fixed.Point    `json:"trading_pnl"`
	HoldingPnl fixed.Point    `json:"holding_pnl"`
	TotalPnl   fixed.Point    `json:"total_pnl"`
	NetPnl     fixed.Point    `json:"net_pnl"`
}

func NewDailyResult(date time.Time, symbol string, closePrice fixed.Point) *DailyResult {
	return &DailyResult{
		Date:       date,
		Symbol:     symbol,
		ClosePrice: closePrice,
	}
}

func (d *DailyResult) AddTrade(trade common.Trade) {
	d.Trades = append(d.Trades, trade)
}

// CalculatePnl settles the day given the previous close and the position carried in.
// A missing previous close is taken as 1. Inverse contracts are valued in the
// reciprocal of price.
func (d *DailyResult) CalculatePnl(preClose, startPos, size, rate, slippage fixed.Point, inverse bool) {
	d.PreClose = preClose
	if preClose.IsZero() {
		d.PreClose = fixed.One
	}

	d.StartPos = startPos
	d.EndPos = startPos
	d.Turnover = fixed.Zero
	d.Commission = fixed.Zero
	d.Slippage = fixed.Zero
	d.TradingPnl = fixed.Zero

	if inverse {
		d.HoldingPnl = startPos.Mul(reciprocal(d.PreClose).Sub(reciprocal(d.ClosePrice))).Mul(size)
	} else {
		d.HoldingPnl = startPos.Mul(d.ClosePrice.Sub(d.PreClose)).Mul(size)
	}

	d.TradeCount = len(d.Trades)
	for _, trade := range d.Trades {
		posChange := trade.PositionChange()
		d.EndPos = d.EndPos.Add(posChange)

		var turnover fixed.Point
		if inverse {
			turnover = trade.Volume.Mul(size).Mul(reciprocal(trade.Price))
			d.TradingPnl = d.TradingPnl.Add(posChange.Mul(reciprocal(trade.Price).Sub(reciprocal(d.ClosePrice))).Mul(size))
			d.Slippage = d.Slippage.Add(trade.Volume.Mul(size).Mul(slippage).Mul(reciprocal(trade.Price.Mul(trade.Price))))
		} else {
			turnover = trade.Volume.Mul(size).Mul(trade.Price)
			d.TradingPnl = d.TradingPnl.Add(posChange.Mul(d.ClosePrice.Sub(trade.Price)).Mul(size))
			d.Slippage = d.Slippage.Add(trade.Volume.Mul(size).Mul(slippage))
		}

		d.Turnover = d.Turnover.Add(turnover)
		d.Commission = d.Commission.Add(turnover.Mul(rate))
	}

	d.TotalPnl = d.TradingPnl.Add(d.HoldingPnl)
	d.NetPnl = d.TotalPnl.Sub(d.Commission).Sub(d.Slippage)
}

func reciprocal(p fixed.Point) fixed.Point {
	if p.IsZero() {
		return fixed.Zero
	}
	return fixed.One.Div(p)
}

type dailyKey struct {
	date   int64
	symbol string
}

// DailyAggregator buckets ticks and trades into per-symbol daily results.
type DailyAggregator struct {
	symbols []string
	results map[dailyKey]*DailyResult
	dates   []time.Time
}

func NewDailyAggregator(symbols []string) *DailyAggregator {
	return &DailyAggregator{
		symbols: symbols,
		results: make(map[dailyKey]*DailyResult),
	}
}

// OnTick opens the day of the tick's symbol on its first tick and keeps its
// close price at the latest positive last price.
func (a *DailyAggregator) OnTick(tick common.Tick) {
	date := tick.Date()
	key := dailyKey{date: date.UnixNano(), symbol: tick.Symbol}

	result, ok := a.results[key]
	if !ok {
		result = NewDailyResult(date, tick.Symbol, tick.LastPrice)
		a.results[key] = result
		if len(a.dates) == 0 || !a.dates[len(a.dates)-1].Equal(date) {
			a.dates = append(a.dates, date)
		}
		return
	}
	if tick.LastPrice.IsPos() {
		result.ClosePrice = tick.LastPrice
	}
}

// Settle assigns trades to their days and computes every day's P&L in date
// order, carrying close and position forward per symbol. It returns one summed
// row per date.
func (a *DailyAggregator) Settle(trades []common.Trade, cfg Configuration) []metrics.Daily {
	for _, result := range a.results {
		result.Trades = result.Trades[:0]
	}
	for _, trade := range trades {
		if result, ok := a.results[a.keyOf(trade)]; ok {
			result.AddTrade(trade)
		}
	}

	preClose := make(map[string]fixed.Point, len(a.symbols))
	startPos := make(map[string]fixed.Point, len(a.symbols))

	table := make([]metrics.Daily, 0, len(a.dates))
	for _, result := range a.Results() {
		result.CalculatePnl(preClose[result.Symbol], startPos[result.Symbol], cfg.Size, cfg.Rate, cfg.Slippage, cfg.Inverse)
		preClose[result.Symbol] = result.ClosePrice
		startPos[result.Symbol] = result.EndPos

		if n := len(table); n == 0 || !table[n-1].Date.Equal(result.Date) {
			table = append(table, metrics.Daily{
				Date:       result.Date,
				Turnover:   fixed.Zero,
				Commission: fixed.Zero,
				Slippage:   fixed.Zero,
				TradingPnl: fixed.Zero,
				HoldingPnl: fixed.Zero,
				TotalPnl:   fixed.Zero,
				NetPnl:     fixed.Zero,
			})
		}
		row := &table[len(table)-1]
		row.TradeCount += result.TradeCount
		row.Turnover = row.Turnover.Add(result.Turnover)
		row.Commission = row.Commission.Add(result.Commission)
		row.Slippage = row.Slippage.Add(result.Slippage)
		row.TradingPnl = row.TradingPnl.Add(result.TradingPnl)
		row.HoldingPnl = row.HoldingPnl.Add(result.HoldingPnl)
		row.TotalPnl = row.TotalPnl.Add(result.TotalPnl)
		row.NetPnl = row.NetPnl.Add(result.NetPnl)
	}

	return table
}

// Results lists the daily results by date, then by configured symbol order.
func (a *DailyAggregator) Results() []*DailyResult {
	rank := make(map[string]int, len(a.symbols))
	for idx, symbol := range a.symbols {
		rank[symbol] = idx
	}

	out := make([]*DailyResult, 0, len(a.results))
	for _, result := range a.results {
		out = append(out, result)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if rank[out[i].Symbol] != rank[out[j].Symbol] {
			return rank[out[i].Symbol] < rank[out[j].Symbol]
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

func (a *DailyAggregator) keyOf(trade common.Trade) dailyKey {
	y, m, d := trade.TimeStamp.Date()
	date := time.Date(y, m, d, 0, 0, 0, 0, trade.TimeStamp.Location())
	return dailyKey{date: date.UnixNano(), symbol: trade.Symbol}
}

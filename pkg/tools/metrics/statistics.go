package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/peter-kozarec/ticksim/pkg/utility/fixed"
)

var ErrUnknownMetric = errors.New("unknown metric")

// Daily is the mark-to-market outcome of one calendar day, summed over all symbols.
type Daily struct {
	Date       time.Time   `json:"date"`
	TradeCount int         `json:"trade_count"`
	Turnover   fixed.Point `json:"turnover"`
	Commission fixed.Point `json:"commission"`
	Slippage   fixed.Point `json:"slippage"`
	TradingPnl fixed.Point `json:"trading_pnl"`
	HoldingPnl fixed.Point `json:"holding_pnl"`
	TotalPnl   fixed.Point `json:"total_pnl"`
	NetPnl     fixed.Point `json:"net_pnl"`
}

// DailyRow extends Daily with the balance curve columns.
type DailyRow struct {
	Daily
	Balance   fixed.Point `json:"balance"`
	Return    fixed.Point `json:"return"`
	HighLevel fixed.Point `json:"highlevel"`
	Drawdown  fixed.Point `json:"drawdown"`
	DdPercent fixed.Point `json:"ddpercent"`
}

type Statistics struct {
	StartDate           time.Time   `json:"start_date"`
	EndDate             time.Time   `json:"end_date"`
	TotalDays           int         `json:"total_days"`
	ProfitDays          int         `json:"profit_days"`
	LossDays            int         `json:"loss_days"`
	Capital             fixed.Point `json:"capital"`
	EndBalance          fixed.Point `json:"end_balance"`
	MaxDrawdown         fixed.Point `json:"max_drawdown"`
	MaxDdPercent        fixed.Point `json:"max_ddpercent"`
	MaxDrawdownDuration int         `json:"max_drawdown_duration"`
	TotalNetPnl         fixed.Point `json:"total_net_pnl"`
	DailyNetPnl         fixed.Point `json:"daily_net_pnl"`
	TotalCommission     fixed.Point `json:"total_commission"`
	DailyCommission     fixed.Point `json:"daily_commission"`
	TotalSlippage       fixed.Point `json:"total_slippage"`
	DailySlippage       fixed.Point `json:"daily_slippage"`
	TotalTurnover       fixed.Point `json:"total_turnover"`
	DailyTurnover       fixed.Point `json:"daily_turnover"`
	TotalTradeCount     int         `json:"total_trade_count"`
	DailyTradeCount     fixed.Point `json:"daily_trade_count"`
	TotalReturn         fixed.Point `json:"total_return"`
	AnnualReturn        fixed.Point `json:"annual_return"`
	DailyReturn         fixed.Point `json:"daily_return"`
	ReturnStd           fixed.Point `json:"return_std"`
	SharpeRatio         fixed.Point `json:"sharpe_ratio"`
	ReturnDrawdownRatio fixed.Point `json:"return_drawdown_ratio"`
}

// Calculate derives the balance curve and run statistics from chronologically
// ordered daily results. Without any day every derived figure is zero.
//
// Returns are log returns of the balance; the Sharpe ratio subtracts the daily
// share of riskFree and annualises with annualDays. Ratios whose denominator is
// zero are reported as zero.
func Calculate(capital fixed.Point, days []Daily, annualDays int, riskFree fixed.Point) (Statistics, []DailyRow) {
	stats := zeroStatistics(capital)
	if len(days) == 0 {
		return stats, nil
	}

	rows := make([]DailyRow, len(days))
	balance := capital
	for idx, day := range days {
		balance = balance.Add(day.NetPnl)
		row := DailyRow{Daily: day, Balance: balance, Return: fixed.Zero}

		if idx > 0 {
			prev := rows[idx-1].Balance
			if prev.IsPos() && balance.IsPos() {
				row.Return = balance.Div(prev).Log()
			}
			row.HighLevel = rows[idx-1].HighLevel.Max(balance)
		} else {
			row.HighLevel = balance
		}

		row.Drawdown = balance.Sub(row.HighLevel)
		row.DdPercent = fixed.Zero
		if !row.HighLevel.IsZero() {
			row.DdPercent = row.Drawdown.Div(row.HighLevel).MulInt(100)
		}
		rows[idx] = row
	}

	totalDays := len(rows)
	stats.StartDate = rows[0].Date
	stats.EndDate = rows[totalDays-1].Date
	stats.TotalDays = totalDays
	stats.EndBalance = rows[totalDays-1].Balance

	ddEnd := 0
	returns := make([]fixed.Point, totalDays)
	for idx, row := range rows {
		switch {
		case row.NetPnl.IsPos():
			stats.ProfitDays++
		case row.NetPnl.IsNeg():
			stats.LossDays++
		}

		if row.Drawdown.Lt(rows[ddEnd].Drawdown) {
			ddEnd = idx
		}
		stats.MaxDdPercent = stats.MaxDdPercent.Min(row.DdPercent)

		stats.TotalNetPnl = stats.TotalNetPnl.Add(row.NetPnl)
		stats.TotalCommission = stats.TotalCommission.Add(row.Commission)
		stats.TotalSlippage = stats.TotalSlippage.Add(row.Slippage)
		stats.TotalTurnover = stats.TotalTurnover.Add(row.Turnover)
		stats.TotalTradeCount += row.TradeCount
		returns[idx] = row.Return
	}

	stats.MaxDrawdown = rows[ddEnd].Drawdown
	stats.MaxDrawdownDuration = drawdownDuration(rows, ddEnd)

	stats.DailyNetPnl = stats.TotalNetPnl.DivInt(totalDays)
	stats.DailyCommission = stats.TotalCommission.DivInt(totalDays)
	stats.DailySlippage = stats.TotalSlippage.DivInt(totalDays)
	stats.DailyTurnover = stats.TotalTurnover.DivInt(totalDays)
	stats.DailyTradeCount = fixed.FromInt(stats.TotalTradeCount, 0).DivInt(totalDays)

	if capital.IsPos() {
		stats.TotalReturn = stats.EndBalance.Div(capital).Sub(fixed.One).MulInt(100)
	}
	stats.AnnualReturn = stats.TotalReturn.MulInt(annualDays).DivInt(totalDays)

	mean := fixed.Mean(returns)
	stats.DailyReturn = mean.MulInt(100)
	stats.ReturnStd = fixed.SampleStdDev(returns, mean).MulInt(100)

	if stats.ReturnStd.IsPos() && annualDays > 0 {
		dailyRiskFree := riskFree.MulInt(100).DivInt(annualDays)
		stats.SharpeRatio = stats.DailyReturn.Sub(dailyRiskFree).
			Div(stats.ReturnStd).
			Mul(fixed.FromInt(annualDays, 0).Sqrt())
	}

	if !stats.MaxDdPercent.IsZero() {
		stats.ReturnDrawdownRatio = stats.TotalReturn.Neg().Div(stats.MaxDdPercent)
	}

	return stats, rows
}

// drawdownDuration counts calendar days from the balance peak preceding the
// deepest drawdown to the day it bottomed.
func drawdownDuration(rows []DailyRow, ddEnd int) int {
	peak := 0
	for idx := 0; idx <= ddEnd; idx++ {
		if rows[idx].Balance.Gt(rows[peak].Balance) {
			peak = idx
		}
	}
	return int(rows[ddEnd].Date.Sub(rows[peak].Date).Hours() / 24)
}

func zeroStatistics(capital fixed.Point) Statistics {
	return Statistics{
		Capital:             capital,
		EndBalance:          fixed.Zero,
		MaxDrawdown:         fixed.Zero,
		MaxDdPercent:        fixed.Zero,
		TotalNetPnl:         fixed.Zero,
		DailyNetPnl:         fixed.Zero,
		TotalCommission:     fixed.Zero,
		DailyCommission:     fixed.Zero,
		TotalSlippage:       fixed.Zero,
		DailySlippage:       fixed.Zero,
		TotalTurnover:       fixed.Zero,
		DailyTurnover:       fixed.Zero,
		DailyTradeCount:     fixed.Zero,
		TotalReturn:         fixed.Zero,
		AnnualReturn:        fixed.Zero,
		DailyReturn:         fixed.Zero,
		ReturnStd:           fixed.Zero,
		SharpeRatio:         fixed.Zero,
		ReturnDrawdownRatio: fixed.Zero,
	}
}

// Value looks a numeric statistic up by its snake_case name, e.g. "sharpe_ratio".
func (s Statistics) Value(name string) (fixed.Point, error) {
	switch name {
	case "total_days":
		return fixed.FromInt(s.TotalDays, 0), nil
	case "profit_days":
		return fixed.FromInt(s.ProfitDays, 0), nil
	case "loss_days":
		return fixed.FromInt(s.LossDays, 0), nil
	case "capital":
		return s.Capital, nil
	case "end_balance":
		return s.EndBalance, nil
	case "max_drawdown":
		return s.MaxDrawdown, nil
	case "max_ddpercent":
		return s.MaxDdPercent, nil
	case "max_drawdown_duration":
		return fixed.FromInt(s.MaxDrawdownDuration, 0), nil
	case "total_net_pnl":
		return s.TotalNetPnl, nil
	case "daily_net_pnl":
		return s.DailyNetPnl, nil
	case "total_commission":
		return s.TotalCommission, nil
	case "daily_commission":
		return s.DailyCommission, nil
	case "total_slippage":
		return s.TotalSlippage, nil
	case "daily_slippage":
		return s.DailySlippage, nil
	case "total_turnover":
		return s.TotalTurnover, nil
	case "daily_turnover":
		return s.DailyTurnover, nil
	case "total_trade_count":
		return fixed.FromInt(s.TotalTradeCount, 0), nil
	case "daily_trade_count":
		return s.DailyTradeCount, nil
	case "total_return":
		return s.TotalReturn, nil
	case "annual_return":
		return s.AnnualReturn, nil
	case "daily_return":
		return s.DailyReturn, nil
	case "return_std":
		return s.ReturnStd, nil
	case "sharpe_ratio":
		return s.SharpeRatio, nil
	case "return_drawdown_ratio":
		return s.ReturnDrawdownRatio, nil
	}
	return fixed.Zero, fmt.Errorf("%q: %w", name, ErrUnknownMetric)
}

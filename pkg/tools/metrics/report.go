package metrics

import (
	"time"

	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// Print logs the statistics in three groups: performance, trading and risk.
func (s Statistics) Print(logger *zap.Logger) {
	logger.Info("performance report",
		zap.String("start_date", formatDate(s.StartDate)),
		zap.String("end_date", formatDate(s.EndDate)),
		zap.Int("total_days", s.TotalDays),
		zap.Int("profit_days", s.ProfitDays),
		zap.Int("loss_days", s.LossDays),
		zap.Stringer("capital", s.Capital.Round(2)),
		zap.Stringer("end_balance", s.EndBalance.Round(2)),
		zap.Stringer("total_return_pct", s.TotalReturn.Round(2)),
		zap.Stringer("annual_return_pct", s.AnnualReturn.Round(2)),
		zap.Stringer("total_net_pnl", s.TotalNetPnl.Round(2)),
		zap.Stringer("daily_net_pnl", s.DailyNetPnl.Round(2)))

	logger.Info("trade statistics",
		zap.Int("total_trade_count", s.TotalTradeCount),
		zap.Stringer("daily_trade_count", s.DailyTradeCount.Round(2)),
		zap.Stringer("total_turnover", s.TotalTurnover.Round(2)),
		zap.Stringer("daily_turnover", s.DailyTurnover.Round(2)),
		zap.Stringer("total_commission", s.TotalCommission.Round(2)),
		zap.Stringer("daily_commission", s.DailyCommission.Round(2)),
		zap.Stringer("total_slippage", s.TotalSlippage.Round(2)),
		zap.Stringer("daily_slippage", s.DailySlippage.Round(2)))

	logger.Info("risk statistics",
		zap.Stringer("max_drawdown", s.MaxDrawdown.Round(2)),
		zap.Stringer("max_ddpercent", s.MaxDdPercent.Round(2)),
		zap.Int("max_drawdown_duration", s.MaxDrawdownDuration),
		zap.Stringer("daily_return_pct", s.DailyReturn.Round(4)),
		zap.Stringer("return_std_pct", s.ReturnStd.Round(4)),
		zap.Stringer("sharpe_ratio", s.SharpeRatio.Round(4)),
		zap.Stringer("return_drawdown_ratio", s.ReturnDrawdownRatio.Round(4)))
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

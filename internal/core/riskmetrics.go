package core

import (
	"math"
	"time"

	"riskguard/internal/models"
)

const (
	dailyWindow  = 24 * time.Hour
	weeklyWindow = 7 * 24 * time.Hour

	// balanceEpsilon защищает деление при нулевом балансе
	balanceEpsilon = 1e-9
)

// ComputeRiskMetrics считает метрики риска по скользящим окнам 24h / 7d.
//
// Чистая функция: никакого внутреннего состояния, повторный вызов на
// тех же входах даёт тот же результат. Момент "сейчас" передаётся
// явно, чтобы расчёт был воспроизводим в тестах.
//
// При неизвестном балансе (BalanceKnown=false у входа) процентные
// метрики обнуляются и помечаются недостоверными: лучше явное
// "данных нет", чем правдоподобное выдуманное число.
func ComputeRiskMetrics(trades []models.Trade, positions []models.Position, balance models.Balance, now time.Time) models.RiskMetrics {
	metrics := models.RiskMetrics{BalanceKnown: balance.Known}

	dailyCutoff := now.Add(-dailyWindow)
	weeklyCutoff := now.Add(-weeklyWindow)

	dailyOrders := make(map[string]struct{})

	for _, trade := range trades {
		if trade.Timestamp.Before(weeklyCutoff) || trade.Timestamp.After(now) {
			continue
		}

		metrics.WeeklyPnl += trade.RealizedPnl
		if trade.Leverage > metrics.HighestLeverage {
			metrics.HighestLeverage = trade.Leverage
		}

		if !trade.Timestamp.Before(dailyCutoff) {
			metrics.DailyPnl += trade.RealizedPnl
			dailyOrders[trade.ID] = struct{}{}
		}
	}

	metrics.DailyTrades = len(dailyOrders)

	for _, pos := range positions {
		if pos.Leverage > metrics.HighestLeverage {
			metrics.HighestLeverage = pos.Leverage
		}
	}

	if !balance.Known {
		return metrics
	}
	if math.IsNaN(balance.Total) || math.IsInf(balance.Total, 0) {
		// Битый баланс приравнивается к неизвестному
		metrics.BalanceKnown = false
		return metrics
	}

	denom := math.Max(balance.Total, balanceEpsilon)
	metrics.DailyLossPct = lossPct(metrics.DailyPnl, denom)
	metrics.WeeklyLossPct = lossPct(metrics.WeeklyPnl, denom)
	if metrics.WeeklyPnl > 0 {
		metrics.WeeklyProfitPct = metrics.WeeklyPnl / denom * 100
	}

	return metrics
}

// lossPct переводит отрицательный PNL в положительный процент убытка
func lossPct(pnl, balance float64) float64 {
	if pnl >= 0 {
		return 0
	}
	return -pnl / balance * 100
}

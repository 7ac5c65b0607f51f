package core

import (
	"fmt"
	"sort"
	"time"

	"riskguard/internal/models"
)

// roundTripWindow - максимальный интервал между разнонаправленными
// сделками по одному символу, который считается импульсивным разворотом
const roundTripWindow = 5 * time.Minute

// DetectBehaviors прогоняет набор независимых эвристик по сделкам,
// позициям и метрикам. Каждая эвристика чистая, без состояния, и даёт
// не больше одного алерта; порядок эвристик значения не имеет.
//
// Алерты носят рекомендательный характер и ни на что не влияют:
// жёсткие меры принимает только риск-машина.
func DetectBehaviors(trades []models.Trade, positions []models.Position, metrics models.RiskMetrics, limits models.RiskLimits, now time.Time) []models.Alert {
	detectors := []func([]models.Trade, []models.Position, models.RiskMetrics, models.RiskLimits, time.Time) *models.Alert{
		detectExcessiveLeverage,
		detectEmotionalTrading,
		detectLimitViolation,
		detectConcentrationRisk,
	}

	alerts := make([]models.Alert, 0, len(detectors))
	for _, detect := range detectors {
		if alert := detect(trades, positions, metrics, limits, now); alert != nil {
			alerts = append(alerts, *alert)
			AlertsEmitted.WithLabelValues(alert.Type).Inc()
		}
	}
	return alerts
}

// detectExcessiveLeverage: любая сделка или открытая позиция с плечом
// выше лимита тира. Важность растёт с отношением к лимиту.
func detectExcessiveLeverage(trades []models.Trade, positions []models.Position, _ models.RiskMetrics, limits models.RiskLimits, now time.Time) *models.Alert {
	worst := 0
	for _, t := range trades {
		if t.Leverage > worst {
			worst = t.Leverage
		}
	}
	for _, p := range positions {
		if p.Leverage > worst {
			worst = p.Leverage
		}
	}

	if limits.MaxLeverage <= 0 || worst <= limits.MaxLeverage {
		return nil
	}

	ratio := float64(worst) / float64(limits.MaxLeverage)
	severity := models.AlertSeverityLow
	switch {
	case ratio >= 2:
		severity = models.AlertSeverityHigh
	case ratio >= 1.5:
		severity = models.AlertSeverityMedium
	}

	return &models.Alert{
		Type:           models.AlertTypeExcessiveLeverage,
		Severity:       severity,
		Description:    fmt.Sprintf("Leverage %dx exceeds the %dx limit of your risk tier", worst, limits.MaxLeverage),
		Recommendation: fmt.Sprintf("Reduce leverage to %dx or below before opening new positions", limits.MaxLeverage),
		Timestamp:      now,
	}
}

// detectEmotionalTrading ловит два паттерна по истории сделок:
// разворот (противоположная сторона по тому же символу в пределах пяти
// минут) и докупку (та же сторона по тому же символу сразу после
// убыточной сделки). Важность растёт с числом эпизодов.
func detectEmotionalTrading(trades []models.Trade, _ []models.Position, _ models.RiskMetrics, _ models.RiskLimits, now time.Time) *models.Alert {
	if len(trades) < 2 {
		return nil
	}

	// Хронологический порядок, вход не мутируется
	ordered := make([]models.Trade, len(trades))
	copy(ordered, trades)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	var reversals, reentries int
	for i := 1; i < len(ordered); i++ {
		prev, cur := ordered[i-1], ordered[i]
		if prev.Symbol != cur.Symbol {
			continue
		}

		gap := cur.Timestamp.Sub(prev.Timestamp)
		if cur.Side != prev.Side && gap <= roundTripWindow {
			reversals++
		}
		if cur.Side == prev.Side && prev.RealizedPnl < 0 && gap <= roundTripWindow {
			reentries++
		}
	}

	total := reversals + reentries
	if total == 0 {
		return nil
	}

	severity := models.AlertSeverityLow
	switch {
	case total >= 4:
		severity = models.AlertSeverityHigh
	case total >= 2:
		severity = models.AlertSeverityMedium
	}

	return &models.Alert{
		Type:     models.AlertTypeEmotionalTrading,
		Severity: severity,
		Description: fmt.Sprintf("Detected %d rapid reversal(s) and %d re-entr(ies) after losses within %s",
			reversals, reentries, roundTripWindow),
		Recommendation: "Take a break after a losing trade instead of immediately re-entering",
		Timestamp:      now,
	}
}

// detectLimitViolation: фактический убыток превысил лимит тира.
// Объясняет пользователю почему риск-машина может понизить тир;
// само понижение выполняет не детектор.
func detectLimitViolation(_ []models.Trade, _ []models.Position, metrics models.RiskMetrics, limits models.RiskLimits, now time.Time) *models.Alert {
	if !metrics.BalanceKnown {
		return nil
	}

	switch {
	case metrics.WeeklyLossPct > limits.WeeklyLossLimitPct:
		return &models.Alert{
			Type:     models.AlertTypeLimitViolation,
			Severity: models.AlertSeverityHigh,
			Description: fmt.Sprintf("Weekly loss %.1f%% exceeds your tier limit of %.1f%%",
				metrics.WeeklyLossPct, limits.WeeklyLossLimitPct),
			Recommendation: "Stop trading for the rest of the week to avoid a forced downgrade",
			Timestamp:      now,
		}
	case metrics.DailyLossPct > limits.DailyLossLimitPct:
		return &models.Alert{
			Type:     models.AlertTypeLimitViolation,
			Severity: models.AlertSeverityMedium,
			Description: fmt.Sprintf("Daily loss %.1f%% exceeds your tier limit of %.1f%%",
				metrics.DailyLossPct, limits.DailyLossLimitPct),
			Recommendation: "Stop trading for today, the daily loss limit is reached",
			Timestamp:      now,
		}
	}
	return nil
}

// detectConcentrationRisk: две и более одновременно открытых позиции
// с плечом выше лимита тира
func detectConcentrationRisk(_ []models.Trade, positions []models.Position, _ models.RiskMetrics, limits models.RiskLimits, now time.Time) *models.Alert {
	if limits.MaxLeverage <= 0 {
		return nil
	}

	var over int
	for _, p := range positions {
		if p.Leverage > limits.MaxLeverage {
			over++
		}
	}
	if over < 2 {
		return nil
	}

	severity := models.AlertSeverityMedium
	if over >= 3 {
		severity = models.AlertSeverityHigh
	}

	return &models.Alert{
		Type:           models.AlertTypeConcentrationRisk,
		Severity:       severity,
		Description:    fmt.Sprintf("%d open positions exceed the %dx leverage limit simultaneously", over, limits.MaxLeverage),
		Recommendation: "Close or deleverage some positions to reduce combined exposure",
		Timestamp:      now,
	}
}

package core

import (
	"testing"
	"time"

	"riskguard/internal/models"
)

var detNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func moderateLimits() models.RiskLimits {
	return models.LimitsForTier(models.TierModerate) // плечо 10, день 5%, неделя 15%
}

func alertOfType(alerts []models.Alert, alertType string) *models.Alert {
	for i := range alerts {
		if alerts[i].Type == alertType {
			return &alerts[i]
		}
	}
	return nil
}

// TestDetectBehaviors_CleanHistory: дисциплинированная история не даёт
// ни одного алерта
func TestDetectBehaviors_CleanHistory(t *testing.T) {
	trades := []models.Trade{
		{ID: "t1", Symbol: "BTCUSDT", Side: models.SideBuy, Leverage: 5, RealizedPnl: 10, Timestamp: detNow.Add(-2 * time.Hour)},
		{ID: "t2", Symbol: "ETHUSDT", Side: models.SideSell, Leverage: 3, RealizedPnl: 4, Timestamp: detNow.Add(-time.Hour)},
	}
	metrics := models.RiskMetrics{DailyLossPct: 1, WeeklyLossPct: 2, BalanceKnown: true}

	alerts := DetectBehaviors(trades, nil, metrics, moderateLimits(), detNow)
	if len(alerts) != 0 {
		t.Errorf("expected no alerts, got %+v", alerts)
	}
}

// TestDetectBehaviors_ExcessiveLeverageSeverity: важность зависит от
// отношения плеча к лимиту
func TestDetectBehaviors_ExcessiveLeverageSeverity(t *testing.T) {
	tests := []struct {
		name         string
		leverage     int
		wantSeverity string
	}{
		{"just above limit", 12, models.AlertSeverityLow},
		{"one and a half limit", 15, models.AlertSeverityMedium},
		{"double limit", 20, models.AlertSeverityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			positions := []models.Position{{Symbol: "BTCUSDT", Leverage: tt.leverage}}
			alerts := DetectBehaviors(nil, positions, models.RiskMetrics{BalanceKnown: true}, moderateLimits(), detNow)

			alert := alertOfType(alerts, models.AlertTypeExcessiveLeverage)
			if alert == nil {
				t.Fatal("expected EXCESSIVE_LEVERAGE alert")
			}
			if alert.Severity != tt.wantSeverity {
				t.Errorf("expected severity %s, got %s", tt.wantSeverity, alert.Severity)
			}
		})
	}
}

// TestDetectBehaviors_LeverageWithinLimit: плечо на уровне лимита
// алертом не считается
func TestDetectBehaviors_LeverageWithinLimit(t *testing.T) {
	positions := []models.Position{{Symbol: "BTCUSDT", Leverage: 10}}
	alerts := DetectBehaviors(nil, positions, models.RiskMetrics{BalanceKnown: true}, moderateLimits(), detNow)

	if alertOfType(alerts, models.AlertTypeExcessiveLeverage) != nil {
		t.Error("leverage equal to limit must not trigger an alert")
	}
}

// TestDetectBehaviors_EmotionalReversal: разворот по тому же символу
// в пределах пяти минут
func TestDetectBehaviors_EmotionalReversal(t *testing.T) {
	trades := []models.Trade{
		{ID: "t1", Symbol: "BTCUSDT", Side: models.SideBuy, RealizedPnl: 5, Timestamp: detNow.Add(-10 * time.Minute)},
		{ID: "t2", Symbol: "BTCUSDT", Side: models.SideSell, RealizedPnl: 3, Timestamp: detNow.Add(-7 * time.Minute)},
	}

	alerts := DetectBehaviors(trades, nil, models.RiskMetrics{BalanceKnown: true}, moderateLimits(), detNow)

	alert := alertOfType(alerts, models.AlertTypeEmotionalTrading)
	if alert == nil {
		t.Fatal("expected EMOTIONAL_TRADING alert")
	}
	if alert.Severity != models.AlertSeverityLow {
		t.Errorf("expected low severity for single episode, got %s", alert.Severity)
	}
}

// TestDetectBehaviors_EmotionalReentryAfterLoss: докупка той же стороной
// сразу после убыточной сделки
func TestDetectBehaviors_EmotionalReentryAfterLoss(t *testing.T) {
	trades := []models.Trade{
		{ID: "t1", Symbol: "ETHUSDT", Side: models.SideBuy, RealizedPnl: -20, Timestamp: detNow.Add(-4 * time.Minute)},
		{ID: "t2", Symbol: "ETHUSDT", Side: models.SideBuy, RealizedPnl: -5, Timestamp: detNow.Add(-2 * time.Minute)},
	}

	alerts := DetectBehaviors(trades, nil, models.RiskMetrics{BalanceKnown: true}, moderateLimits(), detNow)

	if alertOfType(alerts, models.AlertTypeEmotionalTrading) == nil {
		t.Error("expected EMOTIONAL_TRADING alert for re-entry after loss")
	}
}

// TestDetectBehaviors_EmotionalSeverityScales: четыре эпизода дают high
func TestDetectBehaviors_EmotionalSeverityScales(t *testing.T) {
	var trades []models.Trade
	side := models.SideBuy
	for i := 0; i < 5; i++ {
		if side == models.SideBuy {
			side = models.SideSell
		} else {
			side = models.SideBuy
		}
		trades = append(trades, models.Trade{
			ID:          string(rune('a' + i)),
			Symbol:      "BTCUSDT",
			Side:        side,
			RealizedPnl: 1,
			Timestamp:   detNow.Add(time.Duration(i) * time.Minute),
		})
	}

	alerts := DetectBehaviors(trades, nil, models.RiskMetrics{BalanceKnown: true}, moderateLimits(), detNow)

	alert := alertOfType(alerts, models.AlertTypeEmotionalTrading)
	if alert == nil {
		t.Fatal("expected EMOTIONAL_TRADING alert")
	}
	if alert.Severity != models.AlertSeverityHigh {
		t.Errorf("expected high severity for 4 reversals, got %s", alert.Severity)
	}
}

// TestDetectBehaviors_SlowReversalIgnored: разворот спустя больше пяти
// минут импульсивным не считается
func TestDetectBehaviors_SlowReversalIgnored(t *testing.T) {
	trades := []models.Trade{
		{ID: "t1", Symbol: "BTCUSDT", Side: models.SideBuy, RealizedPnl: 5, Timestamp: detNow.Add(-time.Hour)},
		{ID: "t2", Symbol: "BTCUSDT", Side: models.SideSell, RealizedPnl: 3, Timestamp: detNow.Add(-10 * time.Minute)},
	}

	alerts := DetectBehaviors(trades, nil, models.RiskMetrics{BalanceKnown: true}, moderateLimits(), detNow)

	if alertOfType(alerts, models.AlertTypeEmotionalTrading) != nil {
		t.Error("slow reversal must not trigger an alert")
	}
}

// TestDetectBehaviors_LimitViolation: недельное превышение важнее
// дневного
func TestDetectBehaviors_LimitViolation(t *testing.T) {
	tests := []struct {
		name         string
		metrics      models.RiskMetrics
		wantSeverity string
	}{
		{"weekly breach", models.RiskMetrics{WeeklyLossPct: 16, DailyLossPct: 6, BalanceKnown: true}, models.AlertSeverityHigh},
		{"daily breach only", models.RiskMetrics{WeeklyLossPct: 8, DailyLossPct: 6, BalanceKnown: true}, models.AlertSeverityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alerts := DetectBehaviors(nil, nil, tt.metrics, moderateLimits(), detNow)

			alert := alertOfType(alerts, models.AlertTypeLimitViolation)
			if alert == nil {
				t.Fatal("expected LIMIT_VIOLATION alert")
			}
			if alert.Severity != tt.wantSeverity {
				t.Errorf("expected severity %s, got %s", tt.wantSeverity, alert.Severity)
			}
		})
	}
}

// TestDetectBehaviors_LimitViolationNeedsBalance: без достоверного
// баланса проценты не проверяются
func TestDetectBehaviors_LimitViolationNeedsBalance(t *testing.T) {
	metrics := models.RiskMetrics{WeeklyLossPct: 50, BalanceKnown: false}
	alerts := DetectBehaviors(nil, nil, metrics, moderateLimits(), detNow)

	if alertOfType(alerts, models.AlertTypeLimitViolation) != nil {
		t.Error("unknown balance must not produce LIMIT_VIOLATION")
	}
}

// TestDetectBehaviors_ConcentrationRisk: две позиции с превышенным
// плечом дают medium, три - high, одна не считается
func TestDetectBehaviors_ConcentrationRisk(t *testing.T) {
	over := func(n int) []models.Position {
		positions := make([]models.Position, n)
		for i := range positions {
			positions[i] = models.Position{Symbol: "SYM", Leverage: 12}
		}
		return positions
	}

	if a := alertOfType(DetectBehaviors(nil, over(1), models.RiskMetrics{BalanceKnown: true}, moderateLimits(), detNow), models.AlertTypeConcentrationRisk); a != nil {
		t.Error("single position must not trigger concentration risk")
	}

	two := alertOfType(DetectBehaviors(nil, over(2), models.RiskMetrics{BalanceKnown: true}, moderateLimits(), detNow), models.AlertTypeConcentrationRisk)
	if two == nil || two.Severity != models.AlertSeverityMedium {
		t.Errorf("expected medium severity for 2 positions, got %+v", two)
	}

	three := alertOfType(DetectBehaviors(nil, over(3), models.RiskMetrics{BalanceKnown: true}, moderateLimits(), detNow), models.AlertTypeConcentrationRisk)
	if three == nil || three.Severity != models.AlertSeverityHigh {
		t.Errorf("expected high severity for 3 positions, got %+v", three)
	}
}

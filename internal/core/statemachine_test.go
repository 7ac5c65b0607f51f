package core

import (
	"errors"
	"testing"
	"time"

	"riskguard/internal/models"
)

var smNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func activeStatus(tier string) models.RiskStatus {
	return NewRiskStatus(tier, smNow.Add(-time.Hour))
}

func knownMetrics(m models.RiskMetrics) models.RiskMetrics {
	m.BalanceKnown = true
	return m
}

// TestEvaluateRiskState_HardRestriction: недельный убыток 22% на
// Moderate ведёт к принудительному Conservative и блокировке на 7 дней
func TestEvaluateRiskState_HardRestriction(t *testing.T) {
	prev := activeStatus(models.TierModerate)
	metrics := knownMetrics(models.RiskMetrics{WeeklyLossPct: 22})

	status, notifications := EvaluateRiskState(prev, metrics, smNow)

	if status.Tier != models.TierConservative {
		t.Errorf("expected forced conservative, got %s", status.Tier)
	}
	if status.TradingAllowed {
		t.Error("expected trading blocked")
	}
	if status.RestrictionEndTime == nil {
		t.Fatal("expected restriction end time set")
	}
	wantEnd := smNow.Add(168 * time.Hour)
	if !status.RestrictionEndTime.Equal(wantEnd) {
		t.Errorf("expected restriction until %v, got %v", wantEnd, *status.RestrictionEndTime)
	}
	if status.RestrictionReason == "" {
		t.Error("expected restriction reason")
	}

	var found bool
	for _, n := range notifications {
		if n.Type == models.NotificationTypeRestriction {
			found = true
		}
	}
	if !found {
		t.Error("expected RESTRICTION notification")
	}
}

// TestEvaluateRiskState_HardRestrictionIdempotent: повторный такт при
// действующей блокировке не продлевает её и не шлёт дубликат
func TestEvaluateRiskState_HardRestrictionIdempotent(t *testing.T) {
	metrics := knownMetrics(models.RiskMetrics{WeeklyLossPct: 22})

	first, _ := EvaluateRiskState(activeStatus(models.TierModerate), metrics, smNow)
	later := smNow.Add(time.Hour)
	second, notifications := EvaluateRiskState(first, metrics, later)

	if !second.RestrictionEndTime.Equal(*first.RestrictionEndTime) {
		t.Errorf("restriction end moved: %v -> %v", *first.RestrictionEndTime, *second.RestrictionEndTime)
	}
	for _, n := range notifications {
		if n.Type == models.NotificationTypeRestriction {
			t.Error("unexpected duplicate RESTRICTION notification")
		}
	}
}

// TestEvaluateRiskState_WithinLimits: убыток 12% при лимите Moderate 15%
// ничего не меняет
func TestEvaluateRiskState_WithinLimits(t *testing.T) {
	prev := activeStatus(models.TierModerate)
	metrics := knownMetrics(models.RiskMetrics{WeeklyLossPct: 12})

	status, notifications := EvaluateRiskState(prev, metrics, smNow)

	if status.Tier != models.TierModerate {
		t.Errorf("expected tier unchanged, got %s", status.Tier)
	}
	if !status.TradingAllowed {
		t.Error("expected trading allowed")
	}
	if len(notifications) != 0 {
		t.Errorf("expected no notifications, got %d", len(notifications))
	}
}

// TestEvaluateRiskState_SoftDowngrade: превышение лимита собственного
// тира понижает ровно на один шаг
func TestEvaluateRiskState_SoftDowngrade(t *testing.T) {
	prev := activeStatus(models.TierAggressive)
	metrics := knownMetrics(models.RiskMetrics{WeeklyLossPct: 19}) // > 18, < 20

	status, notifications := EvaluateRiskState(prev, metrics, smNow)

	if status.Tier != models.TierModerate {
		t.Errorf("expected moderate, got %s", status.Tier)
	}
	if !status.TradingAllowed {
		t.Error("soft downgrade must not block trading")
	}

	var found bool
	for _, n := range notifications {
		if n.Type == models.NotificationTypeDowngrade {
			found = true
		}
	}
	if !found {
		t.Error("expected DOWNGRADE notification")
	}
}

// TestEvaluateRiskState_SoftDowngradeNoopAtConservative: на нижнем тире
// понижать некуда
func TestEvaluateRiskState_SoftDowngradeNoopAtConservative(t *testing.T) {
	prev := activeStatus(models.TierConservative)
	metrics := knownMetrics(models.RiskMetrics{WeeklyLossPct: 11}) // > 10, < 20

	status, _ := EvaluateRiskState(prev, metrics, smNow)

	if status.Tier != models.TierConservative {
		t.Errorf("expected conservative, got %s", status.Tier)
	}
	if !status.TradingAllowed {
		t.Error("expected trading allowed")
	}
}

// TestEvaluateRiskState_UpgradeEligibility: прибыль 11% открывает право
// на повышение и шлёт уведомление один раз
func TestEvaluateRiskState_UpgradeEligibility(t *testing.T) {
	prev := activeStatus(models.TierConservative)
	metrics := knownMetrics(models.RiskMetrics{WeeklyProfitPct: 11})

	status, notifications := EvaluateRiskState(prev, metrics, smNow)
	if !status.EligibleForUpgrade {
		t.Fatal("expected upgrade eligibility")
	}

	var count int
	for _, n := range notifications {
		if n.Type == models.NotificationTypeUpgradeEligible {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly one UPGRADE_ELIGIBLE notification, got %d", count)
	}

	// Повторный такт с тем же правом не дублирует уведомление
	status, notifications = EvaluateRiskState(status, metrics, smNow.Add(time.Minute))
	for _, n := range notifications {
		if n.Type == models.NotificationTypeUpgradeEligible {
			t.Error("unexpected duplicate UPGRADE_ELIGIBLE notification")
		}
	}
	if !status.EligibleForUpgrade {
		t.Error("expected eligibility to persist while profit holds")
	}
}

// TestEvaluateRiskState_RestrictionExpiry: по истечении блокировки
// торговля включается, тир остаётся пониженным
func TestEvaluateRiskState_RestrictionExpiry(t *testing.T) {
	restricted, _ := EvaluateRiskState(activeStatus(models.TierAggressive),
		knownMetrics(models.RiskMetrics{WeeklyLossPct: 25}), smNow)

	after := restricted.RestrictionEndTime.Add(time.Minute)
	status, notifications := EvaluateRiskState(restricted, knownMetrics(models.RiskMetrics{}), after)

	if !status.TradingAllowed {
		t.Error("expected trading re-enabled after expiry")
	}
	if status.RestrictionEndTime != nil {
		t.Error("expected restriction end time cleared")
	}
	if status.Tier != models.TierConservative {
		t.Errorf("tier must stay forced, got %s", status.Tier)
	}

	var found bool
	for _, n := range notifications {
		if n.Type == models.NotificationTypeRestrictionLifted {
			found = true
		}
	}
	if !found {
		t.Error("expected RESTRICTION_LIFTED notification")
	}
}

// TestEvaluateRiskState_RestrictedImpliesEndTime: инвариант
// tradingAllowed=false всегда сопровождается будущим сроком блокировки
func TestEvaluateRiskState_RestrictedImpliesEndTime(t *testing.T) {
	tiers := []string{models.TierConservative, models.TierModerate, models.TierAggressive}
	losses := []float64{0, 5, 12, 19, 20, 22, 50}

	for _, tier := range tiers {
		for _, loss := range losses {
			status, _ := EvaluateRiskState(activeStatus(tier),
				knownMetrics(models.RiskMetrics{WeeklyLossPct: loss}), smNow)
			if !status.TradingAllowed {
				if status.RestrictionEndTime == nil {
					t.Fatalf("tier %s loss %v: restricted without end time", tier, loss)
				}
				if !status.RestrictionEndTime.After(smNow) {
					t.Errorf("tier %s loss %v: end time not in future", tier, loss)
				}
			}
		}
	}
}

// TestEvaluateRiskState_UnknownBalanceSkipsTransitions: без достоверного
// баланса переходы по процентам не выполняются
func TestEvaluateRiskState_UnknownBalanceSkipsTransitions(t *testing.T) {
	prev := activeStatus(models.TierAggressive)
	metrics := models.RiskMetrics{WeeklyLossPct: 50, BalanceKnown: false}

	status, notifications := EvaluateRiskState(prev, metrics, smNow)

	if status.Tier != models.TierAggressive {
		t.Errorf("expected tier unchanged on unknown balance, got %s", status.Tier)
	}
	if !status.TradingAllowed {
		t.Error("expected no restriction on unknown balance")
	}
	if len(notifications) != 0 {
		t.Errorf("expected no notifications, got %d", len(notifications))
	}
}

// TestEvaluateRiskState_UnknownBalanceKeepsLastPercentages: без
// достоверного баланса прошлые проценты и score не затираются нулями
func TestEvaluateRiskState_UnknownBalanceKeepsLastPercentages(t *testing.T) {
	prev := activeStatus(models.TierAggressive)
	prev.CurrentRisk = 100
	prev.RiskLevel = models.RiskLevelCritical
	prev.DailyLossPct = 6
	prev.WeeklyLossPct = 18
	prev.WeeklyProfitPct = 0
	prev.BalanceKnown = true

	metrics := models.RiskMetrics{DailyTrades: 4, HighestLeverage: 12, BalanceKnown: false}

	status, _ := EvaluateRiskState(prev, metrics, smNow)

	if status.CurrentRisk != 100 {
		t.Errorf("expected score retained, got %v", status.CurrentRisk)
	}
	if status.RiskLevel != models.RiskLevelCritical {
		t.Errorf("expected level retained, got %s", status.RiskLevel)
	}
	if status.DailyLossPct != 6 || status.WeeklyLossPct != 18 {
		t.Errorf("expected loss percentages retained, got %v / %v",
			status.DailyLossPct, status.WeeklyLossPct)
	}
	if status.BalanceKnown {
		t.Error("status must be flagged as based on a stale balance")
	}

	// Счётчики сделок от баланса не зависят и обновляются
	if status.DailyTrades != 4 || status.HighestLeverage != 12 {
		t.Errorf("expected trade counters refreshed, got %d / %d",
			status.DailyTrades, status.HighestLeverage)
	}

	// Восстановление баланса снимает флаг
	recovered, _ := EvaluateRiskState(status, models.RiskMetrics{BalanceKnown: true}, smNow.Add(time.Minute))
	if !recovered.BalanceKnown {
		t.Error("expected flag cleared once balance is known again")
	}
	if recovered.CurrentRisk != 0 {
		t.Errorf("expected score recomputed from fresh metrics, got %v", recovered.CurrentRisk)
	}
}

// TestEvaluateRiskState_ScoreAndLevel проверяет расчёт score и
// качественных уровней
func TestEvaluateRiskState_ScoreAndLevel(t *testing.T) {
	tests := []struct {
		name      string
		tier      string
		metrics   models.RiskMetrics
		wantScore float64
		wantLevel string
	}{
		{"no losses", models.TierModerate, models.RiskMetrics{}, 0, models.RiskLevelLow},
		{"daily drives score", models.TierModerate, models.RiskMetrics{DailyLossPct: 2.5}, 50, models.RiskLevelMedium},
		{"weekly drives score", models.TierModerate, models.RiskMetrics{WeeklyLossPct: 12}, 80, models.RiskLevelHigh},
		{"critical", models.TierConservative, models.RiskMetrics{DailyLossPct: 2.9}, 100 * (2.9 / 3), models.RiskLevelCritical},
		{"clamped", models.TierConservative, models.RiskMetrics{DailyLossPct: 9}, 100, models.RiskLevelCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := EvaluateRiskState(activeStatus(tt.tier), knownMetrics(tt.metrics), smNow)
			if status.CurrentRisk != tt.wantScore {
				t.Errorf("expected score %v, got %v", tt.wantScore, status.CurrentRisk)
			}
			if status.RiskLevel != tt.wantLevel {
				t.Errorf("expected level %s, got %s", tt.wantLevel, status.RiskLevel)
			}
		})
	}
}

// TestRequestTierChange_TwoStepRejected: смена больше чем на один шаг
// отклоняется для каждой пары тиров
func TestRequestTierChange_TwoStepRejected(t *testing.T) {
	pairs := [][2]string{
		{models.TierConservative, models.TierAggressive},
		{models.TierAggressive, models.TierConservative},
	}

	for _, pair := range pairs {
		prev := activeStatus(pair[0])
		prev.EligibleForUpgrade = true

		status, _, err := RequestTierChange(prev, pair[1], smNow)
		if !errors.Is(err, ErrTierStepTooLarge) {
			t.Errorf("%s -> %s: expected ErrTierStepTooLarge, got %v", pair[0], pair[1], err)
		}
		if status.Tier != pair[0] {
			t.Errorf("%s -> %s: status must not change on rejection", pair[0], pair[1])
		}
	}
}

// TestRequestTierChange_UpgradeRequiresEligibility: шаг вверх принимается
// только при действующем праве и потребляет его
func TestRequestTierChange_UpgradeRequiresEligibility(t *testing.T) {
	prev := activeStatus(models.TierConservative)

	_, _, err := RequestTierChange(prev, models.TierModerate, smNow)
	if !errors.Is(err, ErrUpgradeNotEligible) {
		t.Fatalf("expected ErrUpgradeNotEligible, got %v", err)
	}

	prev.EligibleForUpgrade = true
	status, notification, err := RequestTierChange(prev, models.TierModerate, smNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Tier != models.TierModerate {
		t.Errorf("expected moderate, got %s", status.Tier)
	}
	if status.EligibleForUpgrade {
		t.Error("eligibility must be consumed by upgrade")
	}
	if notification == nil || notification.Type != models.NotificationTypeTierChange {
		t.Error("expected TIER_CHANGE notification")
	}
}

// TestRequestTierChange_DowngradeAlwaysAccepted: шаг вниз не требует
// права на повышение
func TestRequestTierChange_DowngradeAlwaysAccepted(t *testing.T) {
	prev := activeStatus(models.TierAggressive)

	status, _, err := RequestTierChange(prev, models.TierModerate, smNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Tier != models.TierModerate {
		t.Errorf("expected moderate, got %s", status.Tier)
	}
}

// TestRequestTierChange_Validation: неизвестный тир, тот же тир и
// действующая блокировка отклоняются
func TestRequestTierChange_Validation(t *testing.T) {
	prev := activeStatus(models.TierModerate)

	if _, _, err := RequestTierChange(prev, "reckless", smNow); !errors.Is(err, ErrUnknownTier) {
		t.Errorf("expected ErrUnknownTier, got %v", err)
	}
	if _, _, err := RequestTierChange(prev, models.TierModerate, smNow); !errors.Is(err, ErrSameTier) {
		t.Errorf("expected ErrSameTier, got %v", err)
	}

	restricted := prev
	restricted.TradingAllowed = false
	end := smNow.Add(time.Hour)
	restricted.RestrictionEndTime = &end
	if _, _, err := RequestTierChange(restricted, models.TierConservative, smNow); !errors.Is(err, ErrTradingRestricted) {
		t.Errorf("expected ErrTradingRestricted, got %v", err)
	}
}

// TestNewRiskStatus: стартовый статус разрешает торговлю, неизвестный
// тир сводится к Conservative
func TestNewRiskStatus(t *testing.T) {
	status := NewRiskStatus(models.TierModerate, smNow)
	if status.Tier != models.TierModerate || !status.TradingAllowed {
		t.Errorf("unexpected initial status: %+v", status)
	}

	fallback := NewRiskStatus("bogus", smNow)
	if fallback.Tier != models.TierConservative {
		t.Errorf("expected conservative fallback, got %s", fallback.Tier)
	}
}

package core

import (
	"errors"
	"fmt"
	"time"

	"riskguard/internal/models"
)

const (
	// globalWeeklyLossCeilingPct - потолок недельного убытка, общий для
	// всех тиров. Его превышение блокирует торговлю и принудительно
	// понижает тир до Conservative.
	globalWeeklyLossCeilingPct = 20.0

	// upgradeProfitThresholdPct - недельная прибыль, открывающая право
	// на повышение тира
	upgradeProfitThresholdPct = 10.0
)

// Ошибки ручной смены тира. Возвращаются синхронно, частично смена
// никогда не применяется.
var (
	ErrUnknownTier        = errors.New("unknown risk tier")
	ErrSameTier           = errors.New("already on requested tier")
	ErrTierStepTooLarge   = errors.New("tier change must be exactly one step")
	ErrUpgradeNotEligible = errors.New("upgrade requires weekly profit threshold")
	ErrTradingRestricted  = errors.New("tier change blocked while trading is restricted")
)

// EvaluateRiskState выполняет один такт риск-машины.
//
// Принимает предыдущий статус и свежие метрики, возвращает новый статус
// целиком и список уведомлений о произошедших переходах. Вход не
// мутируется: вызывающий заменяет свой снимок атомарно.
//
// Порядок проверок фиксирован:
//  1. Истечение действующей блокировки.
//  2. Жёсткая блокировка по глобальному потолку недельного убытка.
//  3. Мягкое понижение на один тир по лимиту собственного тира.
//  4. Пересчёт права на повышение.
//  5. Пересчёт score и качественного уровня по лимитам итогового тира.
//
// При недостоверных метриках (BalanceKnown=false) переходы по процентам
// не выполняются: отсутствие данных не означает отсутствие убытка,
// но и наказывать за него нельзя.
func EvaluateRiskState(prev models.RiskStatus, metrics models.RiskMetrics, now time.Time) (models.RiskStatus, []*models.Notification) {
	status := prev
	status.UpdatedAt = now
	var notifications []*models.Notification

	// 1. Истечение блокировки
	if !status.TradingAllowed && status.RestrictionEndTime != nil && now.After(*status.RestrictionEndTime) {
		status.TradingAllowed = true
		status.RestrictionReason = ""
		status.RestrictionEndTime = nil
		notifications = append(notifications, &models.Notification{
			Timestamp: now,
			Type:      models.NotificationTypeRestrictionLifted,
			Severity:  models.SeverityInfo,
			Message:   "Trading restriction expired, trading re-enabled",
			Meta:      map[string]interface{}{"tier": status.Tier},
		})
	}

	if metrics.BalanceKnown {
		// 2. Жёсткая блокировка: тиронезависимый потолок
		if metrics.WeeklyLossPct >= globalWeeklyLossCeilingPct {
			alreadyRestricted := !status.TradingAllowed
			forcedFrom := status.Tier

			status.Tier = models.TierConservative
			status.TradingAllowed = false
			status.EligibleForUpgrade = false
			status.RestrictionReason = fmt.Sprintf("weekly loss %.1f%% exceeded global ceiling %.0f%%",
				metrics.WeeklyLossPct, globalWeeklyLossCeilingPct)
			if !alreadyRestricted {
				// Действующая блокировка не продлевается повторными тактами
				end := now.Add(models.LimitsForTier(models.TierConservative).RecoveryTime)
				status.RestrictionEndTime = &end
				RestrictionsTriggered.Inc()
				notifications = append(notifications, &models.Notification{
					Timestamp: now,
					Type:      models.NotificationTypeRestriction,
					Severity:  models.SeverityError,
					Message:   status.RestrictionReason,
					Meta: map[string]interface{}{
						"forced_from":          forcedFrom,
						"restriction_end_time": end,
					},
				})
				if forcedFrom != models.TierConservative {
					TierChanges.WithLabelValues("forced").Inc()
				}
			}
		} else if metrics.WeeklyLossPct >= status.Limits().WeeklyLossLimitPct {
			// 3. Мягкое понижение ровно на один тир
			if lower, ok := tierBelow(status.Tier); ok {
				from := status.Tier
				status.Tier = lower
				status.EligibleForUpgrade = false
				TierChanges.WithLabelValues("downgrade").Inc()
				notifications = append(notifications, &models.Notification{
					Timestamp: now,
					Type:      models.NotificationTypeDowngrade,
					Severity:  models.SeverityWarn,
					Message: fmt.Sprintf("Weekly loss %.1f%% exceeded %s tier limit, downgraded to %s",
						metrics.WeeklyLossPct, from, lower),
					Meta: map[string]interface{}{"from": from, "to": lower},
				})
			}
		}

		// 4. Право на повышение
		eligible := status.TradingAllowed && metrics.WeeklyProfitPct >= upgradeProfitThresholdPct
		if eligible && !status.EligibleForUpgrade {
			notifications = append(notifications, &models.Notification{
				Timestamp: now,
				Type:      models.NotificationTypeUpgradeEligible,
				Severity:  models.SeverityInfo,
				Message:   fmt.Sprintf("Weekly profit %.1f%% reached, tier upgrade available", metrics.WeeklyProfitPct),
				Meta:      map[string]interface{}{"tier": status.Tier},
			})
		}
		status.EligibleForUpgrade = eligible
	}

	// 5. Score по лимитам итогового тира.
	// При неизвестном балансе свежие проценты - нули от деления на
	// ничто: прошлый снимок не затирается, читатели видят последние
	// достоверные значения с флагом BalanceKnown=false.
	status.BalanceKnown = metrics.BalanceKnown
	if metrics.BalanceKnown {
		limits := status.Limits()
		status.CurrentRisk = riskScore(metrics, limits)
		status.RiskLevel = riskLevel(status.CurrentRisk)
		status.DailyLossPct = metrics.DailyLossPct
		status.WeeklyLossPct = metrics.WeeklyLossPct
		status.WeeklyProfitPct = metrics.WeeklyProfitPct
	}
	// Счётчики сделок и плечо считаются по сделкам, баланс им не нужен
	status.DailyTrades = metrics.DailyTrades
	status.HighestLeverage = metrics.HighestLeverage

	return status, notifications
}

// RequestTierChange обрабатывает явный запрос смены тира.
//
// Правила:
//   - тир должен существовать и отличаться от текущего;
//   - разрешён ровно один шаг вверх или вниз;
//   - шаг вверх требует действующего права на повышение и потребляет его;
//   - шаг вниз принимается всегда;
//   - при действующей блокировке смена тира не выполняется.
//
// Нарушение любого правила возвращает ошибку, статус не меняется.
func RequestTierChange(prev models.RiskStatus, desired string, now time.Time) (models.RiskStatus, *models.Notification, error) {
	desiredRank, ok := models.TierRank(desired)
	if !ok {
		return prev, nil, fmt.Errorf("%w: %q", ErrUnknownTier, desired)
	}
	currentRank, _ := models.TierRank(prev.Tier)

	if desiredRank == currentRank {
		return prev, nil, ErrSameTier
	}
	step := desiredRank - currentRank
	if step > 1 || step < -1 {
		return prev, nil, fmt.Errorf("%w: %s -> %s", ErrTierStepTooLarge, prev.Tier, desired)
	}
	if !prev.TradingAllowed {
		return prev, nil, ErrTradingRestricted
	}
	if step == 1 && !prev.EligibleForUpgrade {
		return prev, nil, ErrUpgradeNotEligible
	}

	status := prev
	status.Tier = desired
	status.UpdatedAt = now

	direction := "downgrade"
	if step == 1 {
		// Право одноразовое: после повышения нужно заработать его заново
		status.EligibleForUpgrade = false
		direction = "upgrade"
	}
	TierChanges.WithLabelValues(direction).Inc()

	notification := &models.Notification{
		Timestamp: now,
		Type:      models.NotificationTypeTierChange,
		Severity:  models.SeverityInfo,
		Message:   fmt.Sprintf("Risk tier changed from %s to %s", prev.Tier, desired),
		Meta:      map[string]interface{}{"from": prev.Tier, "to": desired, "direction": direction},
	}
	return status, notification, nil
}

// NewRiskStatus возвращает стартовый статус для тира
func NewRiskStatus(tier string, now time.Time) models.RiskStatus {
	if !models.IsValidTier(tier) {
		tier = models.TierConservative
	}
	return models.RiskStatus{
		Tier:           tier,
		RiskLevel:      models.RiskLevelLow,
		TradingAllowed: true,
		UpdatedAt:      now,
	}
}

// riskScore: 100 * max(дневной убыток / лимит, недельный убыток / лимит),
// с отсечкой в [0, 100]
func riskScore(metrics models.RiskMetrics, limits models.RiskLimits) float64 {
	daily := metrics.DailyLossPct / limits.DailyLossLimitPct
	weekly := metrics.WeeklyLossPct / limits.WeeklyLossLimitPct

	worst := daily
	if weekly > worst {
		worst = weekly
	}

	score := 100 * worst
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func riskLevel(score float64) string {
	switch {
	case score < 40:
		return models.RiskLevelLow
	case score < 70:
		return models.RiskLevelMedium
	case score < 90:
		return models.RiskLevelHigh
	default:
		return models.RiskLevelCritical
	}
}

func tierBelow(tier string) (string, bool) {
	switch tier {
	case models.TierAggressive:
		return models.TierModerate, true
	case models.TierModerate:
		return models.TierConservative, true
	default:
		return "", false
	}
}

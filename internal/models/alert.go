package models

import "time"

// Типы поведенческих алертов
const (
	AlertTypeExcessiveLeverage = "EXCESSIVE_LEVERAGE" // плечо выше лимита тира
	AlertTypeEmotionalTrading  = "EMOTIONAL_TRADING"  // быстрые развороты, докупка после убытка
	AlertTypeLimitViolation    = "LIMIT_VIOLATION"    // превышен дневной/недельный лимит убытка
	AlertTypeConcentrationRisk = "CONCENTRATION_RISK" // несколько позиций с превышенным плечом
)

// Важность алерта
const (
	AlertSeverityLow    = "low"
	AlertSeverityMedium = "medium"
	AlertSeverityHigh   = "high"
)

// Alert - поведенческое предупреждение от эвристического детектора.
//
// Создаётся детектором, после создания не изменяется. Снятие алерта -
// операция уровня UI и ядром не отслеживается.
type Alert struct {
	ID             int64     `json:"id" db:"id"`
	Type           string    `json:"type" db:"type"`
	Description    string    `json:"description" db:"description"`
	Severity       string    `json:"severity" db:"severity"` // low | medium | high
	Recommendation string    `json:"recommendation" db:"recommendation"`
	Timestamp      time.Time `json:"timestamp" db:"timestamp"`
}

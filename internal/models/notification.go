package models

import "time"

// Notification представляет уведомление о событии риск-машины
type Notification struct {
	ID        int                    `json:"id" db:"id"`
	Timestamp time.Time              `json:"timestamp" db:"timestamp"`
	Type      string                 `json:"type" db:"type"`         // RESTRICTION, DOWNGRADE, UPGRADE_ELIGIBLE, TIER_CHANGE, RESTRICTION_LIFTED, ALERT, ERROR
	Severity  string                 `json:"severity" db:"severity"` // info, warn, error
	Message   string                 `json:"message" db:"message"`
	Meta      map[string]interface{} `json:"meta,omitempty" db:"meta"` // дополнительные данные (JSON в БД)
}

// Типы уведомлений
const (
	NotificationTypeRestriction       = "RESTRICTION"        // торговля заблокирована
	NotificationTypeDowngrade         = "DOWNGRADE"          // понижение тира
	NotificationTypeUpgradeEligible   = "UPGRADE_ELIGIBLE"   // открыта возможность повышения
	NotificationTypeTierChange        = "TIER_CHANGE"        // явная смена тира
	NotificationTypeRestrictionLifted = "RESTRICTION_LIFTED" // блокировка истекла
	NotificationTypeAlert             = "ALERT"              // поведенческий алерт
	NotificationTypeError             = "ERROR"              // ошибка API биржи
)

// Уровни важности
const (
	SeverityInfo  = "info"
	SeverityWarn  = "warn"
	SeverityError = "error"
)

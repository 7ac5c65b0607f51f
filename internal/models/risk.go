package models

import "time"

// Уровни риска (тиры)
const (
	TierConservative = "conservative"
	TierModerate     = "moderate"
	TierAggressive   = "aggressive"
)

// Качественные уровни текущего риска
const (
	RiskLevelLow      = "low"
	RiskLevelMedium   = "medium"
	RiskLevelHigh     = "high"
	RiskLevelCritical = "critical"
)

// tierRank - порядок тиров для проверки "ровно один шаг"
var tierRank = map[string]int{
	TierConservative: 0,
	TierModerate:     1,
	TierAggressive:   2,
}

// TierRank возвращает порядковый номер тира и признак его существования
func TierRank(tier string) (int, bool) {
	rank, ok := tierRank[tier]
	return rank, ok
}

// IsValidTier проверяет что строка является известным тиром
func IsValidTier(tier string) bool {
	_, ok := tierRank[tier]
	return ok
}

// RiskLimits - иммутабельные лимиты одного тира.
//
// Для каждого тира существует ровно одна статическая запись,
// см. LimitsForTier.
type RiskLimits struct {
	Tier               string        `json:"tier"`
	DailyLossLimitPct  float64       `json:"daily_loss_limit_pct"`  // допустимый дневной убыток, % от баланса
	WeeklyLossLimitPct float64       `json:"weekly_loss_limit_pct"` // допустимый недельный убыток, % от баланса
	MaxLeverage        int           `json:"max_leverage"`
	MaxDailyTrades     int           `json:"max_daily_trades"`
	RecoveryTime       time.Duration `json:"recovery_time"` // длительность блокировки торговли
}

// Статические лимиты тиров.
// Недельные лимиты всегда ниже глобального потолка 20%.
var tierLimits = map[string]RiskLimits{
	TierConservative: {
		Tier:               TierConservative,
		DailyLossLimitPct:  3,
		WeeklyLossLimitPct: 10,
		MaxLeverage:        5,
		MaxDailyTrades:     5,
		RecoveryTime:       168 * time.Hour, // 7 дней
	},
	TierModerate: {
		Tier:               TierModerate,
		DailyLossLimitPct:  5,
		WeeklyLossLimitPct: 15,
		MaxLeverage:        10,
		MaxDailyTrades:     10,
		RecoveryTime:       72 * time.Hour,
	},
	TierAggressive: {
		Tier:               TierAggressive,
		DailyLossLimitPct:  10,
		WeeklyLossLimitPct: 18,
		MaxLeverage:        20,
		MaxDailyTrades:     20,
		RecoveryTime:       24 * time.Hour,
	},
}

// LimitsForTier возвращает лимиты тира.
// Для неизвестного тира возвращает лимиты Conservative - самые строгие.
func LimitsForTier(tier string) RiskLimits {
	if limits, ok := tierLimits[tier]; ok {
		return limits
	}
	return tierLimits[TierConservative]
}

// RiskMetrics - производные метрики за скользящие окна 24h / 7d.
//
// Чистая функция от списка сделок, позиций и баланса: внутреннего
// состояния нет, пересчёт идемпотентен.
type RiskMetrics struct {
	DailyPnl        float64 `json:"daily_pnl"`         // сумма PNL сделок за 24 часа
	WeeklyPnl       float64 `json:"weekly_pnl"`        // сумма PNL сделок за 7 дней
	DailyLossPct    float64 `json:"daily_loss_pct"`    // дневной убыток, % от баланса (>= 0)
	WeeklyLossPct   float64 `json:"weekly_loss_pct"`   // недельный убыток, % от баланса (>= 0)
	WeeklyProfitPct float64 `json:"weekly_profit_pct"` // недельная прибыль, % от баланса (>= 0)
	DailyTrades     int     `json:"daily_trades"`      // число уникальных ордеров за 24 часа
	HighestLeverage int     `json:"highest_leverage"`  // максимальное плечо среди сделок и позиций
	BalanceKnown    bool    `json:"balance_known"`     // false = проценты недостоверны
}

// RiskStatus - текущее состояние риск-машины пользователя.
//
// Единственная мутабельная запись; владеет ею исключительно риск-машина
// и заменяет целиком после полного пересчёта метрик. Конкурентные
// читатели видят либо предыдущий, либо полностью новый снимок.
type RiskStatus struct {
	Tier               string     `json:"tier"`
	CurrentRisk        float64    `json:"current_risk"` // score 0-100
	RiskLevel          string     `json:"risk_level"`   // low | medium | high | critical
	DailyLossPct       float64    `json:"daily_loss_pct"`
	WeeklyLossPct      float64    `json:"weekly_loss_pct"`
	WeeklyProfitPct    float64    `json:"weekly_profit_pct"`
	DailyTrades        int        `json:"daily_trades"`
	HighestLeverage    int        `json:"highest_leverage"`
	BalanceKnown       bool       `json:"balance_known"` // false = проценты и score унаследованы от прошлого снимка
	TradingAllowed     bool       `json:"trading_allowed"`
	RestrictionReason  string     `json:"restriction_reason,omitempty"`
	RestrictionEndTime *time.Time `json:"restriction_end_time,omitempty"`
	EligibleForUpgrade bool       `json:"eligible_for_upgrade"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Limits возвращает лимиты текущего тира статуса
func (s *RiskStatus) Limits() RiskLimits {
	return LimitsForTier(s.Tier)
}

// RiskSettings - персистентный выбор тира, хранится по пользователю
type RiskSettings struct {
	UserID    string    `json:"user_id" db:"user_id"`
	Tier      string    `json:"tier" db:"tier"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

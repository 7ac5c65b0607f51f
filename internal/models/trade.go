package models

import "time"

// Стороны сделки
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Trade представляет каноничную закрытую сделку.
//
// Результат согласования трёх независимых фидов биржи (ордера, исполнения,
// журнал реализованного PNL). ID совпадает с ID исходного ордера на бирже.
// Запись иммутабельна: при повторной выборке создаётся новый список,
// существующие записи не мутируются.
type Trade struct {
	ID          string    `json:"id" db:"id"`                     // = orderId биржи
	Symbol      string    `json:"symbol" db:"symbol"`
	Side        string    `json:"side" db:"side"`                 // buy | sell
	AvgPrice    float64   `json:"avg_price" db:"avg_price"`       // средневзвешенная цена исполнения
	Size        float64   `json:"size" db:"size"`                 // суммарный объём, всегда > 0
	Leverage    int       `json:"leverage" db:"leverage"`         // 0 = неизвестно
	RealizedPnl float64   `json:"realized_pnl" db:"realized_pnl"` // реализованный PNL в USDT
	Timestamp   time.Time `json:"timestamp" db:"timestamp"`       // время ордера
}

// Position представляет открытую позицию.
//
// Обновляется целиком при каждом опросе биржи, частичные обновления
// не применяются.
type Position struct {
	Symbol           string    `json:"symbol"`
	Side             string    `json:"side"` // buy | sell
	Size             float64   `json:"size"`
	EntryPrice       float64   `json:"entry_price"`
	MarkPrice        float64   `json:"mark_price"`
	Leverage         int       `json:"leverage"`
	LiquidationPrice float64   `json:"liquidation_price"`
	UnrealizedPnl    float64   `json:"unrealized_pnl"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Balance представляет баланс аккаунта.
//
// Known=false означает что баланс получить не удалось: потребители обязаны
// показывать "данные недоступны", а не нули.
type Balance struct {
	Total         float64   `json:"total"`     // equity в USDT
	Available     float64   `json:"available"` // доступно для торговли
	UnrealizedPnl float64   `json:"unrealized_pnl"`
	Known         bool      `json:"known"`
	UpdatedAt     time.Time `json:"updated_at"`
}

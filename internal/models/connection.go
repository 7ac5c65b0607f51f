package models

import "time"

// Виды аккаунтов
const (
	AccountKindSpot    = "spot"
	AccountKindFutures = "futures"
)

// Connection представляет сохранённое подключение к бирже.
// API ключи хранятся в БД зашифрованными (AES-256-GCM) и
// не возвращаются в JSON.
type Connection struct {
	ID          int       `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Exchange    string    `json:"exchange" db:"exchange"` // bybit
	AccountKind string    `json:"account_kind" db:"account_kind"` // spot | futures
	APIKey      string    `json:"-" db:"api_key"`       // зашифрован
	SecretKey   string    `json:"-" db:"secret_key"`    // зашифрован
	Connected   bool      `json:"connected" db:"connected"`
	LastError   string    `json:"last_error,omitempty" db:"last_error"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Credential - расшифрованные ключи для подписи запросов.
//
// Живёт только в памяти: передаётся в подписывающий клиент по ссылке
// на каждый вызов и никогда не сохраняется ядром.
type Credential struct {
	ConnectionID int
	Exchange     string
	APIKey       string
	SecretKey    string
	AccountKind  string // spot | futures
}

// Package exchange реализует подписанный доступ к приватному REST API биржи.
//
// Ядро работает с биржей только на чтение: балансы, позиции и три
// исторических фида (ордера, исполнения, журнал реализованного PNL).
// Размещение ордеров не поддерживается намеренно.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"riskguard/internal/models"
)

// Ошибки клиента
var (
	// ErrMissingCredential - нет ключа или секрета; запрос не отправляется,
	// неподписанный fallback недопустим
	ErrMissingCredential = errors.New("api key and secret are required for signed request")

	// ErrMalformedResponse - биржа вернула ответ с невалидными полями;
	// запись отклоняется целиком вместо подстановки NaN/заглушек
	ErrMalformedResponse = errors.New("malformed exchange response")

	// ErrUnsupportedAccountKind - неизвестный вид аккаунта в credential
	ErrUnsupportedAccountKind = errors.New("unsupported account kind")
)

// ExchangeError представляет ошибку уровня API биржи (retCode != 0)
type ExchangeError struct {
	Exchange string
	Endpoint string
	Code     string
	Message  string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("%s %s: [%s] %s", e.Exchange, e.Endpoint, e.Code, e.Message)
}

// AccountClient - доступ к приватным данным аккаунта на бирже.
//
// Credential передаётся в каждый вызов по ссылке и клиентом не
// сохраняется: один клиент обслуживает несколько аккаунтов, а темп
// запросов при этом контролирует общий SpacingGate.
type AccountClient interface {
	// Name возвращает идентификатор биржи (bybit)
	Name() string

	// Balance возвращает текущий баланс аккаунта
	Balance(ctx context.Context, cred *models.Credential) (models.Balance, error)

	// Positions возвращает все открытые позиции.
	// Для spot-аккаунтов всегда пустой список.
	Positions(ctx context.Context, cred *models.Credential) ([]models.Position, error)

	// OrderHistory возвращает историю ордеров за интервал [start, end].
	// Интервал не должен превышать 7 дней (ограничение биржи).
	OrderHistory(ctx context.Context, cred *models.Credential, start, end time.Time) ([]RawOrder, error)

	// Fills возвращает исполнения (трейды) за интервал [start, end]
	Fills(ctx context.Context, cred *models.Credential, start, end time.Time) ([]RawFill, error)

	// IncomeHistory возвращает записи журнала транзакций за интервал [start, end].
	// Потребители используют только записи реализованного PNL.
	IncomeHistory(ctx context.Context, cred *models.Credential, start, end time.Time) ([]RawIncomeEntry, error)
}

// RawOrder - ордер в том виде, в каком его вернула биржа.
// Иммутабелен после получения.
type RawOrder struct {
	OrderID     string    // ID ордера на бирже
	Symbol      string
	Side        string    // buy | sell (уже нормализован)
	Status      string    // статус биржи, см. OrderStatusFilled
	AvgPrice    float64   // средняя цена исполнения по данным биржи
	ExecutedQty float64   // исполненный объём по данным биржи
	CreatedAt   time.Time // время создания ордера
}

// Статусы ордеров после нормализации
const (
	OrderStatusFilled    = "filled"
	OrderStatusCancelled = "cancelled"
	OrderStatusRejected  = "rejected"
	OrderStatusOpen      = "open"
)

// RawFill - одно исполнение ордера
type RawFill struct {
	OrderID     string    // FK на RawOrder
	Qty         float64
	Price       float64
	Leverage    int     // 0 = биржа не сообщила
	RealizedPnl float64 // фрагмент реализованного PNL, 0 = биржа не сообщила
	ExecTime    time.Time
}

// RawIncomeEntry - запись журнала транзакций аккаунта
type RawIncomeEntry struct {
	Symbol     string
	Income     float64
	IncomeType string // потребляется только IncomeTypeRealizedPnl
	Timestamp  time.Time
}

// IncomeTypeRealizedPnl - тип записи журнала с реализованным торговым PNL.
// Остальные типы (комиссии, funding, переводы) ядром игнорируются.
const IncomeTypeRealizedPnl = "TRADE"

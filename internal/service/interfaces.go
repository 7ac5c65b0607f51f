package service

import (
	"context"
	"time"

	"riskguard/internal/models"
	"riskguard/internal/repository"
)

// ConnectionRepositoryInterface определяет интерфейс репозитория подключений
type ConnectionRepositoryInterface interface {
	Create(conn *models.Connection) error
	GetByID(id int) (*models.Connection, error)
	GetByUser(userID string) ([]*models.Connection, error)
	GetConnected() ([]*models.Connection, error)
	SetConnected(id int, connected bool, lastError string) error
	Delete(id int) error
}

// SettingsRepositoryInterface определяет интерфейс репозитория настроек риска
type SettingsRepositoryInterface interface {
	Get(userID string) (*models.RiskSettings, error)
	SetTier(userID, tier string) error
}

// NotificationRepositoryInterface определяет интерфейс репозитория уведомлений
type NotificationRepositoryInterface interface {
	Create(connectionID int, notification *models.Notification) error
	GetRecent(connectionID, limit int) ([]*models.Notification, error)
	GetByTypes(connectionID int, types []string, limit int) ([]*models.Notification, error)
	DeleteOlderThan(cutoff time.Time) (int64, error)
}

// AlertRepositoryInterface определяет интерфейс репозитория алертов
type AlertRepositoryInterface interface {
	Create(connectionID int, alert *models.Alert) error
	CreateBatch(connectionID int, alerts []models.Alert) error
	GetRecent(connectionID, limit int) ([]*models.Alert, error)
	DeleteOlderThan(cutoff time.Time) (int64, error)
}

// TradeRepositoryInterface определяет интерфейс архива сделок
type TradeRepositoryInterface interface {
	Upsert(connectionID int, trades []models.Trade) error
	GetRecent(connectionID, limit int) ([]models.Trade, error)
}

// Проверяем, что реальные репозитории реализуют интерфейсы
var _ ConnectionRepositoryInterface = (*repository.ConnectionRepository)(nil)
var _ SettingsRepositoryInterface = (*repository.SettingsRepository)(nil)
var _ NotificationRepositoryInterface = (*repository.NotificationRepository)(nil)
var _ AlertRepositoryInterface = (*repository.AlertRepository)(nil)
var _ TradeRepositoryInterface = (*repository.TradeRepository)(nil)

// EventBroadcaster - интерфейс для отправки событий через WebSocket.
// Реализуется пакетом internal/websocket/Hub.
type EventBroadcaster interface {
	// BroadcastNotification отправляет уведомление риск-машины
	BroadcastNotification(connectionID int, notification *models.Notification)

	// BroadcastAlerts отправляет алерты одного прогона детектора
	BroadcastAlerts(connectionID int, alerts []models.Alert)

	// BroadcastRiskStatus отправляет обновлённый снимок статуса риска
	BroadcastRiskStatus(connectionID int, status models.RiskStatus)
}

// ============ Интерфейсы сервисов для API handlers ============

// ConnectionServiceInterface определяет интерфейс сервиса подключений
type ConnectionServiceInterface interface {
	Connect(ctx context.Context, userID, exchangeName, accountKind, apiKey, secretKey string) (*models.Connection, error)
	Disconnect(userID string, connectionID int) error
	Delete(userID string, connectionID int) error
	List(userID string) ([]*models.Connection, error)
	Get(userID string, connectionID int) (*models.Connection, error)
}

// RiskServiceInterface определяет интерфейс риск-сервиса
type RiskServiceInterface interface {
	Status(connectionID int) (models.RiskStatus, error)
	Overview(connectionID int) (models.RiskStatus, models.Balance, []models.Position, []models.Alert, error)
	RequestTierChange(userID string, connectionID int, desired string) (models.RiskStatus, error)
}

// HistoryServiceInterface определяет интерфейс сервиса истории сделок
type HistoryServiceInterface interface {
	ReconciledTrades(ctx context.Context, connectionID, limit int) ([]models.Trade, error)
}

// NotificationServiceInterface определяет интерфейс сервиса уведомлений
type NotificationServiceInterface interface {
	GetNotifications(connectionID int, types []string, limit int) ([]*models.Notification, error)
	GetAlerts(connectionID, limit int) ([]*models.Alert, error)
}

// Проверяем, что реальные сервисы реализуют интерфейсы
var _ ConnectionServiceInterface = (*ConnectionService)(nil)
var _ RiskServiceInterface = (*RiskService)(nil)
var _ HistoryServiceInterface = (*HistoryService)(nil)
var _ NotificationServiceInterface = (*NotificationService)(nil)

package websocket

import (
	"time"

	"riskguard/internal/models"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypeRiskStatus - обновленный снимок статуса риска.
	// Отправляется после каждого прогона анализа и смены уровня.
	MessageTypeRiskStatus MessageType = "riskStatus"

	// MessageTypeNotification - новое уведомление риск-машины.
	// Блокировки, понижения, право на повышение, ошибки API биржи.
	MessageTypeNotification MessageType = "notification"

	// MessageTypeAlerts - поведенческие алерты одного прогона детектора
	MessageTypeAlerts MessageType = "alerts"
)

// BaseMessage - базовая структура для всех WebSocket сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// RiskStatusMessage - сообщение с обновленным статусом риска подключения
type RiskStatusMessage struct {
	BaseMessage
	ConnectionID int               `json:"connection_id"`
	Data         models.RiskStatus `json:"data"`
}

// NotificationMessage - сообщение о новом уведомлении
type NotificationMessage struct {
	BaseMessage
	ConnectionID int                  `json:"connection_id"`
	Data         *models.Notification `json:"data"`
}

// AlertsMessage - сообщение с алертами одного прогона детектора.
// Алерты отправляются пачкой: один прогон может породить несколько.
type AlertsMessage struct {
	BaseMessage
	ConnectionID int            `json:"connection_id"`
	Data         []models.Alert `json:"data"`
}

// NewRiskStatusMessage создает сообщение обновления статуса риска
func NewRiskStatusMessage(connectionID int, status models.RiskStatus) *RiskStatusMessage {
	return &RiskStatusMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeRiskStatus,
			Timestamp: time.Now(),
		},
		ConnectionID: connectionID,
		Data:         status,
	}
}

// NewNotificationMessage создает сообщение уведомления
func NewNotificationMessage(connectionID int, notification *models.Notification) *NotificationMessage {
	return &NotificationMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeNotification,
			Timestamp: time.Now(),
		},
		ConnectionID: connectionID,
		Data:         notification,
	}
}

// NewAlertsMessage создает сообщение с алертами прогона
func NewAlertsMessage(connectionID int, alerts []models.Alert) *AlertsMessage {
	return &AlertsMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeAlerts,
			Timestamp: time.Now(),
		},
		ConnectionID: connectionID,
		Data:         alerts,
	}
}

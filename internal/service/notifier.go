package service

import (
	"go.uber.org/zap"

	"riskguard/internal/core"
	"riskguard/internal/models"
)

// Notifier доставляет события мониторов: сохраняет их в БД и
// рассылает подключённым WebSocket-клиентам. Реализует sink движка.
//
// Ошибки персистентности логируются и не прерывают доставку:
// пользователю важнее увидеть блокировку сразу, чем иметь полный журнал.
type Notifier struct {
	notificationRepo NotificationRepositoryInterface
	alertRepo        AlertRepositoryInterface
	hub              EventBroadcaster
	log              *zap.Logger
}

var _ core.NotificationSink = (*Notifier)(nil)

// NewNotifier создает новый экземпляр
func NewNotifier(notificationRepo NotificationRepositoryInterface, alertRepo AlertRepositoryInterface,
	hub EventBroadcaster, log *zap.Logger) *Notifier {
	return &Notifier{
		notificationRepo: notificationRepo,
		alertRepo:        alertRepo,
		hub:              hub,
		log:              log,
	}
}

// PublishNotification сохраняет и рассылает уведомление
func (n *Notifier) PublishNotification(connectionID int, notification *models.Notification) {
	if err := n.notificationRepo.Create(connectionID, notification); err != nil {
		n.log.Error("notification persist failed",
			zap.Int("connection_id", connectionID),
			zap.String("type", notification.Type),
			zap.Error(err))
	}
	if n.hub != nil {
		n.hub.BroadcastNotification(connectionID, notification)
	}
}

// PublishAlerts сохраняет и рассылает алерты одного прогона
func (n *Notifier) PublishAlerts(connectionID int, alerts []models.Alert) {
	if err := n.alertRepo.CreateBatch(connectionID, alerts); err != nil {
		n.log.Error("alerts persist failed",
			zap.Int("connection_id", connectionID),
			zap.Int("count", len(alerts)),
			zap.Error(err))
	}
	if n.hub != nil {
		n.hub.BroadcastAlerts(connectionID, alerts)
	}
}

package service

import (
	"time"

	"go.uber.org/zap"

	"riskguard/internal/models"
)

// NotificationService - выдача журнала уведомлений и алертов
type NotificationService struct {
	notificationRepo NotificationRepositoryInterface
	alertRepo        AlertRepositoryInterface
	log              *zap.Logger
}

// NewNotificationService создает новый экземпляр сервиса
func NewNotificationService(notificationRepo NotificationRepositoryInterface,
	alertRepo AlertRepositoryInterface, log *zap.Logger) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		alertRepo:        alertRepo,
		log:              log,
	}
}

// GetNotifications возвращает уведомления подключения.
// Пустой список типов означает все типы.
func (s *NotificationService) GetNotifications(connectionID int, types []string, limit int) ([]*models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	if len(types) == 0 {
		return s.notificationRepo.GetRecent(connectionID, limit)
	}
	return s.notificationRepo.GetByTypes(connectionID, types, limit)
}

// GetAlerts возвращает последние поведенческие алерты подключения
func (s *NotificationService) GetAlerts(connectionID, limit int) ([]*models.Alert, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.alertRepo.GetRecent(connectionID, limit)
}

// Cleanup удаляет уведомления и алерты старше retention.
// Запускается периодически из main.
func (s *NotificationService) Cleanup(retention time.Duration) {
	cutoff := time.Now().Add(-retention)

	if deleted, err := s.notificationRepo.DeleteOlderThan(cutoff); err != nil {
		s.log.Error("notification cleanup failed", zap.Error(err))
	} else if deleted > 0 {
		s.log.Info("old notifications removed", zap.Int64("count", deleted))
	}

	if deleted, err := s.alertRepo.DeleteOlderThan(cutoff); err != nil {
		s.log.Error("alert cleanup failed", zap.Error(err))
	} else if deleted > 0 {
		s.log.Info("old alerts removed", zap.Int64("count", deleted))
	}
}

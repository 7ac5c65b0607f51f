package service

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"riskguard/internal/models"
)

func TestNotifier_PublishNotification(t *testing.T) {
	notificationRepo := NewMockNotificationRepository()
	hub := &MockHub{}
	notifier := NewNotifier(notificationRepo, NewMockAlertRepository(), hub, zap.NewNop())

	notification := &models.Notification{
		Timestamp: time.Now(),
		Type:      models.NotificationTypeRestriction,
		Severity:  models.SeverityError,
		Message:   "weekly loss limit exceeded, trading restricted",
	}
	notifier.PublishNotification(1, notification)

	saved, _ := notificationRepo.GetRecent(1, 10)
	if len(saved) != 1 {
		t.Fatalf("Expected 1 persisted notification, got %d", len(saved))
	}
	if len(hub.notifications) != 1 {
		t.Fatalf("Expected 1 broadcast notification, got %d", len(hub.notifications))
	}
}

func TestNotifier_PersistErrorDoesNotBlockBroadcast(t *testing.T) {
	notificationRepo := NewMockNotificationRepository()
	notificationRepo.createErr = errors.New("connection refused")
	alertRepo := NewMockAlertRepository()
	alertRepo.batchErr = errors.New("connection refused")
	hub := &MockHub{}
	notifier := NewNotifier(notificationRepo, alertRepo, hub, zap.NewNop())

	notifier.PublishNotification(1, &models.Notification{Type: models.NotificationTypeError})
	notifier.PublishAlerts(1, []models.Alert{{Type: models.AlertTypeExcessiveLeverage}})

	if len(hub.notifications) != 1 {
		t.Errorf("Expected notification broadcast despite persist error, got %d", len(hub.notifications))
	}
	if len(hub.alerts) != 1 {
		t.Errorf("Expected alert broadcast despite persist error, got %d", len(hub.alerts))
	}
}

func TestNotifier_PublishAlerts(t *testing.T) {
	alertRepo := NewMockAlertRepository()
	hub := &MockHub{}
	notifier := NewNotifier(NewMockNotificationRepository(), alertRepo, hub, zap.NewNop())

	alerts := []models.Alert{
		{Type: models.AlertTypeExcessiveLeverage, Severity: models.AlertSeverityHigh},
		{Type: models.AlertTypeEmotionalTrading, Severity: models.AlertSeverityMedium},
	}
	notifier.PublishAlerts(1, alerts)

	saved, _ := alertRepo.GetRecent(1, 10)
	if len(saved) != 2 {
		t.Errorf("Expected 2 persisted alerts, got %d", len(saved))
	}
	if len(hub.alerts) != 2 {
		t.Errorf("Expected 2 broadcast alerts, got %d", len(hub.alerts))
	}
}

func TestNotificationService_GetNotifications(t *testing.T) {
	notificationRepo := NewMockNotificationRepository()
	svc := NewNotificationService(notificationRepo, NewMockAlertRepository(), zap.NewNop())

	for _, typ := range []string{
		models.NotificationTypeRestriction,
		models.NotificationTypeError,
		models.NotificationTypeDowngrade,
	} {
		if err := notificationRepo.Create(1, &models.Notification{Type: typ}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	all, err := svc.GetNotifications(1, nil, 0)
	if err != nil {
		t.Fatalf("GetNotifications failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Expected 3 notifications, got %d", len(all))
	}

	filtered, err := svc.GetNotifications(1, []string{models.NotificationTypeError}, 0)
	if err != nil {
		t.Fatalf("GetNotifications failed: %v", err)
	}
	if len(filtered) != 1 || filtered[0].Type != models.NotificationTypeError {
		t.Errorf("Expected 1 ERROR notification, got %d", len(filtered))
	}
}

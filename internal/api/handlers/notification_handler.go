package handlers

import (
	"net/http"
	"strings"

	"riskguard/internal/models"
	"riskguard/internal/service"
)

// NotificationHandler отвечает за журнал уведомлений и алертов
//
// Endpoints:
// - GET /api/v1/connections/{id}/notifications - журнал уведомлений риск-машины
// - GET /api/v1/connections/{id}/notifications?types=RESTRICTION,ERROR - с фильтрацией
// - GET /api/v1/connections/{id}/alerts - поведенческие алерты детектора
type NotificationHandler struct {
	notificationService service.NotificationServiceInterface
}

// NewNotificationHandler создает новый NotificationHandler
func NewNotificationHandler(notificationService service.NotificationServiceInterface) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
	}
}

// GetNotificationsResponse представляет ответ списка уведомлений
type GetNotificationsResponse struct {
	Notifications []*models.Notification `json:"notifications"`
	Total         int                    `json:"total"`
}

// GetAlertsResponse представляет ответ списка алертов
type GetAlertsResponse struct {
	Alerts []*models.Alert `json:"alerts"`
	Total  int             `json:"total"`
}

// GetNotifications возвращает журнал уведомлений подключения
// GET /api/v1/connections/{id}/notifications
//
// Query параметры:
// - types (string): фильтр по типам через запятую
// - limit (int): количество записей (по умолчанию 50, максимум 200)
//
// Типы уведомлений:
// - RESTRICTION: торговля заблокирована
// - DOWNGRADE: автоматическое понижение уровня
// - UPGRADE_ELIGIBLE: открыта возможность повышения
// - TIER_CHANGE: явная смена уровня
// - RESTRICTION_LIFTED: блокировка истекла
// - ERROR: ошибка API биржи
func (h *NotificationHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	connectionID, ok := connectionIDFromRequest(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid connection id", "")
		return
	}

	var types []string
	if typesParam := r.URL.Query().Get("types"); typesParam != "" {
		for _, part := range strings.Split(typesParam, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				types = append(types, strings.ToUpper(trimmed))
			}
		}
	}

	limit := limitFromQuery(r, 50, 200)

	notifications, err := h.notificationService.GetNotifications(connectionID, types, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get notifications", err.Error())
		return
	}

	if notifications == nil {
		notifications = []*models.Notification{}
	}
	respondWithJSON(w, http.StatusOK, GetNotificationsResponse{
		Notifications: notifications,
		Total:         len(notifications),
	})
}

// GetAlerts возвращает последние поведенческие алерты подключения
// GET /api/v1/connections/{id}/alerts
//
// Query параметры:
// - limit (int): количество записей (по умолчанию 20, максимум 100)
func (h *NotificationHandler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	connectionID, ok := connectionIDFromRequest(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid connection id", "")
		return
	}

	limit := limitFromQuery(r, 20, 100)

	alerts, err := h.notificationService.GetAlerts(connectionID, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get alerts", err.Error())
		return
	}

	if alerts == nil {
		alerts = []*models.Alert{}
	}
	respondWithJSON(w, http.StatusOK, GetAlertsResponse{
		Alerts: alerts,
		Total:  len(alerts),
	})
}

package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"riskguard/internal/api/handlers"
	"riskguard/internal/api/middleware"
	"riskguard/internal/service"
	"riskguard/internal/websocket"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	ConnectionService   service.ConnectionServiceInterface
	RiskService         service.RiskServiceInterface
	HistoryService      service.HistoryServiceInterface
	NotificationService service.NotificationServiceInterface
	Hub                 *websocket.Hub
	APIToken            string
	Log                 *zap.Logger
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── /connections/
//	│   ├── GET / - список подключений
//	│   ├── POST / - подключить биржевой аккаунт
//	│   ├── GET /{id} - информация о подключении
//	│   ├── POST /{id}/disconnect - остановить мониторинг
//	│   ├── DELETE /{id} - удалить подключение
//	│   ├── GET /{id}/risk - статус риска
//	│   ├── GET /{id}/overview - статус, баланс, позиции, алерты
//	│   ├── PATCH /{id}/risk/tier - смена уровня риска
//	│   ├── GET /{id}/trades - согласованная история сделок
//	│   ├── GET /{id}/alerts - поведенческие алерты
//	│   └── GET /{id}/notifications - журнал уведомлений
//
// /ws/
//
//	└── /stream - WebSocket для real-time обновлений
//
// /metrics - Prometheus метрики
// /health - проверка живости
//
// Middleware применяется в следующем порядке:
// 1. Recovery (для всех маршрутов)
// 2. Logging (для всех маршрутов)
// 3. CORS (для всех маршрутов)
// 4. Auth (только для /api/v1)
func SetupRoutes(deps *Dependencies) *mux.Router {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}

	router := mux.NewRouter()

	// Глобальные middleware (применяются ко всем маршрутам)
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logging(log))
	router.Use(middleware.CORS)

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Auth(deps.APIToken))

	// Connection routes
	if deps.ConnectionService != nil {
		connectionHandler := handlers.NewConnectionHandler(deps.ConnectionService)
		api.HandleFunc("/connections", connectionHandler.List).Methods("GET")
		api.HandleFunc("/connections", connectionHandler.Connect).Methods("POST")
		api.HandleFunc("/connections/{id}", connectionHandler.Get).Methods("GET")
		api.HandleFunc("/connections/{id}", connectionHandler.Delete).Methods("DELETE")
		api.HandleFunc("/connections/{id}/disconnect", connectionHandler.Disconnect).Methods("POST")
	}

	// Risk routes
	if deps.RiskService != nil {
		riskHandler := handlers.NewRiskHandler(deps.RiskService)
		api.HandleFunc("/connections/{id}/risk", riskHandler.GetStatus).Methods("GET")
		api.HandleFunc("/connections/{id}/overview", riskHandler.GetOverview).Methods("GET")
		api.HandleFunc("/connections/{id}/risk/tier", riskHandler.ChangeTier).Methods("PATCH")
	}

	// Trade history routes
	if deps.HistoryService != nil {
		historyHandler := handlers.NewHistoryHandler(deps.HistoryService)
		api.HandleFunc("/connections/{id}/trades", historyHandler.GetTrades).Methods("GET")
	}

	// Notification routes
	if deps.NotificationService != nil {
		notificationHandler := handlers.NewNotificationHandler(deps.NotificationService)
		api.HandleFunc("/connections/{id}/notifications", notificationHandler.GetNotifications).Methods("GET")
		api.HandleFunc("/connections/{id}/alerts", notificationHandler.GetAlerts).Methods("GET")
	}

	// WebSocket route
	if deps.Hub != nil {
		router.HandleFunc("/ws/stream", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWS(deps.Hub, w, r)
		})
	}

	// Prometheus metrics
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods("GET")

	return router
}

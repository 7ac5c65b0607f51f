package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"riskguard/internal/api/middleware"
	"riskguard/internal/repository"
	"riskguard/internal/service"
)

// ConnectRequest - тело запроса для подключения биржевого аккаунта
type ConnectRequest struct {
	Exchange    string `json:"exchange"`
	AccountKind string `json:"account_kind"` // spot | futures
	APIKey      string `json:"api_key"`
	SecretKey   string `json:"secret_key"`
}

// ConnectionHandler отвечает за управление подключениями к биржам
//
// Endpoints:
// - GET /api/v1/connections - список подключений пользователя
// - POST /api/v1/connections - подключение нового аккаунта
// - GET /api/v1/connections/{id} - информация о подключении
// - POST /api/v1/connections/{id}/disconnect - остановка мониторинга
// - DELETE /api/v1/connections/{id} - полное удаление вместе с ключами
type ConnectionHandler struct {
	connectionService service.ConnectionServiceInterface
}

// NewConnectionHandler создает новый ConnectionHandler
func NewConnectionHandler(connectionService service.ConnectionServiceInterface) *ConnectionHandler {
	return &ConnectionHandler{
		connectionService: connectionService,
	}
}

// Connect подключает биржевой аккаунт по API ключам
// POST /api/v1/connections
//
// Тело запроса:
//
//	{
//	  "exchange": "bybit",
//	  "account_kind": "futures",
//	  "api_key": "your-api-key",
//	  "secret_key": "your-secret-key"
//	}
//
// Ответы:
// - 201 Created: аккаунт подключен, мониторинг запущен
// - 400 Bad Request: некорректные данные
// - 401 Unauthorized: биржа отклонила ключи
func (h *ConnectionHandler) Connect(w http.ResponseWriter, r *http.Request) {
	// 1. Ограничиваем размер тела запроса и декодируем
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	var req ConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	// 2. Валидация входных данных
	if req.Exchange == "" {
		respondWithError(w, http.StatusBadRequest, "Exchange is required", "")
		return
	}
	if req.APIKey == "" {
		respondWithError(w, http.StatusBadRequest, "API key is required", "")
		return
	}
	if req.SecretKey == "" {
		respondWithError(w, http.StatusBadRequest, "Secret key is required", "")
		return
	}

	// 3. Подключаем аккаунт через сервис
	userID := middleware.UserID(r)
	conn, err := h.connectionService.Connect(r.Context(), userID, req.Exchange, req.AccountKind, req.APIKey, req.SecretKey)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrExchangeNotSupported):
			respondWithError(w, http.StatusBadRequest, "Exchange not supported", err.Error())
		case errors.Is(err, service.ErrAccountKindInvalid):
			respondWithError(w, http.StatusBadRequest, "Invalid account kind", "Use spot or futures")
		case errors.Is(err, service.ErrInvalidCredentials):
			respondWithError(w, http.StatusUnauthorized, "Invalid API credentials", err.Error())
		default:
			respondWithError(w, http.StatusInternalServerError, "Internal server error", err.Error())
		}
		return
	}

	respondWithJSON(w, http.StatusCreated, conn)
}

// List возвращает все подключения пользователя
// GET /api/v1/connections
func (h *ConnectionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	connections, err := h.connectionService.List(userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get connections", err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, connections)
}

// Get возвращает информацию о подключении
// GET /api/v1/connections/{id}
func (h *ConnectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	connectionID, ok := connectionIDFromRequest(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid connection id", "")
		return
	}

	userID := middleware.UserID(r)
	conn, err := h.connectionService.Get(userID, connectionID)
	if err != nil {
		h.respondConnectionError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, conn)
}

// Disconnect останавливает мониторинг подключения
// POST /api/v1/connections/{id}/disconnect
//
// Ключи остаются в БД, мониторинг можно возобновить повторным подключением.
func (h *ConnectionHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	connectionID, ok := connectionIDFromRequest(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid connection id", "")
		return
	}

	userID := middleware.UserID(r)
	if err := h.connectionService.Disconnect(userID, connectionID); err != nil {
		h.respondConnectionError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "Connection disconnected",
		"id":        connectionID,
		"connected": false,
	})
}

// Delete полностью удаляет подключение вместе с ключами
// DELETE /api/v1/connections/{id}
func (h *ConnectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	connectionID, ok := connectionIDFromRequest(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid connection id", "")
		return
	}

	userID := middleware.UserID(r)
	if err := h.connectionService.Delete(userID, connectionID); err != nil {
		h.respondConnectionError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Connection deleted",
		"id":      connectionID,
	})
}

// respondConnectionError транслирует ошибки сервиса в HTTP коды
func (h *ConnectionHandler) respondConnectionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrConnectionNotFound):
		respondWithError(w, http.StatusNotFound, "Connection not found", "")
	case errors.Is(err, service.ErrConnectionNotOwned):
		respondWithError(w, http.StatusForbidden, "Connection belongs to another user", "")
	default:
		respondWithError(w, http.StatusInternalServerError, "Internal server error", err.Error())
	}
}

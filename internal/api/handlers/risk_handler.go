package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"riskguard/internal/api/middleware"
	"riskguard/internal/core"
	"riskguard/internal/models"
	"riskguard/internal/service"
)

// ChangeTierRequest - тело запроса смены уровня риска
type ChangeTierRequest struct {
	Tier string `json:"tier"` // conservative | moderate | aggressive
}

// OverviewResponse - сводный снимок состояния подключения
type OverviewResponse struct {
	Status    models.RiskStatus `json:"status"`
	Balance   models.Balance    `json:"balance"`
	Positions []models.Position `json:"positions"`
	Alerts    []models.Alert    `json:"alerts"`
}

// RiskHandler отвечает за состояние риска подключений
//
// Endpoints:
// - GET /api/v1/connections/{id}/risk - статус риска
// - GET /api/v1/connections/{id}/overview - статус, баланс, позиции, алерты
// - PATCH /api/v1/connections/{id}/risk/tier - смена уровня риска
type RiskHandler struct {
	riskService service.RiskServiceInterface
}

// NewRiskHandler создает новый RiskHandler
func NewRiskHandler(riskService service.RiskServiceInterface) *RiskHandler {
	return &RiskHandler{
		riskService: riskService,
	}
}

// GetStatus возвращает текущий статус риска подключения
// GET /api/v1/connections/{id}/risk
//
// Ответ:
//
//	{
//	  "tier": "moderate",
//	  "current_risk": 42.5,
//	  "risk_level": "medium",
//	  "daily_loss_pct": 2.1,
//	  "trading_allowed": true,
//	  ...
//	}
func (h *RiskHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	connectionID, ok := connectionIDFromRequest(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid connection id", "")
		return
	}

	status, err := h.riskService.Status(connectionID)
	if err != nil {
		if errors.Is(err, service.ErrMonitorNotRunning) {
			respondWithError(w, http.StatusNotFound, "No active monitor for connection", "Connect the exchange account first")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Internal server error", err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, status)
}

// GetOverview возвращает статус, баланс, позиции и алерты одним снимком
// GET /api/v1/connections/{id}/overview
func (h *RiskHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	connectionID, ok := connectionIDFromRequest(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid connection id", "")
		return
	}

	status, balance, positions, alerts, err := h.riskService.Overview(connectionID)
	if err != nil {
		if errors.Is(err, service.ErrMonitorNotRunning) {
			respondWithError(w, http.StatusNotFound, "No active monitor for connection", "Connect the exchange account first")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Internal server error", err.Error())
		return
	}

	if positions == nil {
		positions = []models.Position{}
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}
	respondWithJSON(w, http.StatusOK, OverviewResponse{
		Status:    status,
		Balance:   balance,
		Positions: positions,
		Alerts:    alerts,
	})
}

// ChangeTier выполняет ручную смену уровня риска
// PATCH /api/v1/connections/{id}/risk/tier
//
// Тело запроса:
//
//	{"tier": "aggressive"}
//
// Ответы:
// - 200 OK: уровень изменен, возвращает обновленный статус
// - 400 Bad Request: неизвестный уровень или переход через уровень
// - 403 Forbidden: повышение без права на него или активная блокировка
// - 404 Not Found: монитор не запущен
func (h *RiskHandler) ChangeTier(w http.ResponseWriter, r *http.Request) {
	connectionID, ok := connectionIDFromRequest(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid connection id", "")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	var req ChangeTierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if req.Tier == "" {
		respondWithError(w, http.StatusBadRequest, "Tier is required", "Use conservative, moderate or aggressive")
		return
	}

	userID := middleware.UserID(r)
	status, err := h.riskService.RequestTierChange(userID, connectionID, req.Tier)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMonitorNotRunning):
			respondWithError(w, http.StatusNotFound, "No active monitor for connection", "")
		case errors.Is(err, core.ErrUnknownTier):
			respondWithError(w, http.StatusBadRequest, "Unknown tier", "Use conservative, moderate or aggressive")
		case errors.Is(err, core.ErrSameTier):
			respondWithError(w, http.StatusBadRequest, "Already on requested tier", "")
		case errors.Is(err, core.ErrTierStepTooLarge):
			respondWithError(w, http.StatusBadRequest, "Tier can be changed only one step at a time", "")
		case errors.Is(err, core.ErrUpgradeNotEligible):
			respondWithError(w, http.StatusForbidden, "Upgrade requires 10% weekly profit", err.Error())
		case errors.Is(err, core.ErrTradingRestricted):
			respondWithError(w, http.StatusForbidden, "Tier change is blocked while trading is restricted", err.Error())
		default:
			respondWithError(w, http.StatusInternalServerError, "Internal server error", err.Error())
		}
		return
	}

	respondWithJSON(w, http.StatusOK, status)
}

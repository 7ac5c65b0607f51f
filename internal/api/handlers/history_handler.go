package handlers

import (
	"net/http"

	"riskguard/internal/models"
	"riskguard/internal/service"
)

// TradesResponse представляет ответ со списком согласованных сделок
type TradesResponse struct {
	Trades []models.Trade `json:"trades"`
	Total  int            `json:"total"`
}

// HistoryHandler отвечает за историю согласованных сделок
//
// Endpoints:
// - GET /api/v1/connections/{id}/trades - последние сделки, новые первыми
type HistoryHandler struct {
	historyService service.HistoryServiceInterface
}

// NewHistoryHandler создает новый HistoryHandler
func NewHistoryHandler(historyService service.HistoryServiceInterface) *HistoryHandler {
	return &HistoryHandler{
		historyService: historyService,
	}
}

// GetTrades возвращает согласованную историю сделок подключения
// GET /api/v1/connections/{id}/trades
//
// Query параметры:
// - limit (int): количество записей (по умолчанию 200, максимум 500)
//
// Каждая сделка - агрегат исполнений одного ордера с средневзвешенной
// ценой и сопоставленным реализованным PNL.
func (h *HistoryHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	connectionID, ok := connectionIDFromRequest(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid connection id", "")
		return
	}

	limit := limitFromQuery(r, 200, 500)

	trades, err := h.historyService.ReconciledTrades(r.Context(), connectionID, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get trades", err.Error())
		return
	}

	if trades == nil {
		trades = []models.Trade{}
	}
	respondWithJSON(w, http.StatusOK, TradesResponse{
		Trades: trades,
		Total:  len(trades),
	})
}

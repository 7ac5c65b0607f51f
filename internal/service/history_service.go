package service

import (
	"context"

	"go.uber.org/zap"

	"riskguard/internal/cache"
	"riskguard/internal/core"
	"riskguard/internal/models"
)

// HistoryService - выдача согласованной истории сделок.
//
// Порядок источников: кеш последнего прогона, живой снимок монитора,
// архив в БД. Кеш и монитор держат только свежий горизонт; архив
// хранит всё, что конвейер когда-либо согласовал.
type HistoryService struct {
	engine    *core.Engine
	cache     cache.Store
	tradeRepo TradeRepositoryInterface
	log       *zap.Logger
}

// NewHistoryService создает новый экземпляр сервиса
func NewHistoryService(engine *core.Engine, store cache.Store, tradeRepo TradeRepositoryInterface, log *zap.Logger) *HistoryService {
	return &HistoryService{
		engine:    engine,
		cache:     store,
		tradeRepo: tradeRepo,
		log:       log,
	}
}

// ReconciledTrades возвращает последние сделки подключения, новые первыми
func (s *HistoryService) ReconciledTrades(ctx context.Context, connectionID, limit int) ([]models.Trade, error) {
	if limit <= 0 {
		limit = core.DefaultTradeLimit
	}

	if trades, ok := s.cache.GetTrades(ctx, connectionID); ok {
		return clip(trades, limit), nil
	}

	if monitor, ok := s.engine.Monitor(connectionID); ok {
		if trades := monitor.Trades(); len(trades) > 0 {
			return clip(trades, limit), nil
		}
	}

	trades, err := s.tradeRepo.GetRecent(connectionID, limit)
	if err != nil {
		return nil, err
	}
	return trades, nil
}

func clip(trades []models.Trade, limit int) []models.Trade {
	if len(trades) <= limit {
		return trades
	}
	return trades[:limit]
}

// TradeRecorder принимает сделки от мониторов и раскладывает их по
// кешу и архиву. Отдаётся движку как приёмник результатов прогона.
type TradeRecorder struct {
	cache     cache.Store
	tradeRepo TradeRepositoryInterface
	log       *zap.Logger
}

var _ core.TradeCache = (*TradeRecorder)(nil)

// NewTradeRecorder создает новый экземпляр
func NewTradeRecorder(store cache.Store, tradeRepo TradeRepositoryInterface, log *zap.Logger) *TradeRecorder {
	return &TradeRecorder{cache: store, tradeRepo: tradeRepo, log: log}
}

// PutTrades обновляет кеш и дописывает архив. Ошибка архива не
// прерывает конвейер: кеш уже обновлён, архив догонит на следующем
// прогоне благодаря upsert.
func (r *TradeRecorder) PutTrades(ctx context.Context, connectionID int, trades []models.Trade) {
	r.cache.PutTrades(ctx, connectionID, trades)
	if err := r.tradeRepo.Upsert(connectionID, trades); err != nil {
		r.log.Error("trade archive failed",
			zap.Int("connection_id", connectionID),
			zap.Int("count", len(trades)),
			zap.Error(err))
	}
}

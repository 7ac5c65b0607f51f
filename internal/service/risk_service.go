package service

import (
	"errors"

	"go.uber.org/zap"

	"riskguard/internal/core"
	"riskguard/internal/models"
)

// Ошибки риск-сервиса
var (
	ErrMonitorNotRunning = errors.New("no active monitor for connection")
)

// RiskService - доступ к состоянию риска активных подключений.
//
// Чтение отдаёт снимки мониторов; ручная смена тира проходит через
// правила риск-машины и при успехе сохраняется в настройках
// пользователя, чтобы пережить рестарт.
type RiskService struct {
	engine       *core.Engine
	settingsRepo SettingsRepositoryInterface
	hub          EventBroadcaster
	log          *zap.Logger
}

// NewRiskService создает новый экземпляр сервиса
func NewRiskService(engine *core.Engine, settingsRepo SettingsRepositoryInterface,
	hub EventBroadcaster, log *zap.Logger) *RiskService {
	return &RiskService{
		engine:       engine,
		settingsRepo: settingsRepo,
		hub:          hub,
		log:          log,
	}
}

// Status возвращает снимок статуса риска подключения
func (s *RiskService) Status(connectionID int) (models.RiskStatus, error) {
	monitor, ok := s.engine.Monitor(connectionID)
	if !ok {
		return models.RiskStatus{}, ErrMonitorNotRunning
	}
	return monitor.Status(), nil
}

// Overview возвращает статус, баланс, позиции и алерты одним снимком
func (s *RiskService) Overview(connectionID int) (models.RiskStatus, models.Balance, []models.Position, []models.Alert, error) {
	monitor, ok := s.engine.Monitor(connectionID)
	if !ok {
		return models.RiskStatus{}, models.Balance{}, nil, nil, ErrMonitorNotRunning
	}
	return monitor.Status(), monitor.Balance(), monitor.Positions(), monitor.Alerts(), nil
}

// RequestTierChange выполняет ручную смену тира.
// Ошибки правил (двойной шаг, нет права на повышение, блокировка)
// возвращаются вызывающему как есть.
func (s *RiskService) RequestTierChange(userID string, connectionID int, desired string) (models.RiskStatus, error) {
	monitor, ok := s.engine.Monitor(connectionID)
	if !ok {
		return models.RiskStatus{}, ErrMonitorNotRunning
	}

	status, err := monitor.RequestTierChange(desired)
	if err != nil {
		return status, err
	}

	// Выбор тира персистентен: монитор после рестарта должен начать
	// с него, а не с дефолта
	if err := s.settingsRepo.SetTier(userID, status.Tier); err != nil {
		s.log.Error("tier persist failed",
			zap.String("user_id", userID),
			zap.String("tier", status.Tier),
			zap.Error(err))
	}

	if s.hub != nil {
		s.hub.BroadcastRiskStatus(connectionID, status)
	}
	return status, nil
}

package handlers

import (
	"context"
	"errors"
	"sync"
	"time"

	"riskguard/internal/models"
	"riskguard/internal/repository"
	"riskguard/internal/service"
)

// ============ Mock Connection Service ============

// MockConnectionService мок для ConnectionServiceInterface
type MockConnectionService struct {
	mu          sync.RWMutex
	connections map[int]*models.Connection
	nextID      int
	connectErr  error
	listErr     error
}

// NewMockConnectionService создает новый мок сервиса подключений
func NewMockConnectionService() *MockConnectionService {
	return &MockConnectionService{
		connections: make(map[int]*models.Connection),
		nextID:      1,
	}
}

func (m *MockConnectionService) Connect(ctx context.Context, userID, exchangeName, accountKind, apiKey, secretKey string) (*models.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connectErr != nil {
		return nil, m.connectErr
	}

	conn := &models.Connection{
		ID:          m.nextID,
		UserID:      userID,
		Exchange:    exchangeName,
		AccountKind: accountKind,
		Connected:   true,
		CreatedAt:   time.Now(),
	}
	m.nextID++
	m.connections[conn.ID] = conn
	return conn, nil
}

func (m *MockConnectionService) Disconnect(userID string, connectionID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, exists := m.connections[connectionID]
	if !exists {
		return repository.ErrConnectionNotFound
	}
	if conn.UserID != userID {
		return service.ErrConnectionNotOwned
	}
	conn.Connected = false
	return nil
}

func (m *MockConnectionService) Delete(userID string, connectionID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, exists := m.connections[connectionID]
	if !exists {
		return repository.ErrConnectionNotFound
	}
	if conn.UserID != userID {
		return service.ErrConnectionNotOwned
	}
	delete(m.connections, connectionID)
	return nil
}

func (m *MockConnectionService) List(userID string) ([]*models.Connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.listErr != nil {
		return nil, m.listErr
	}

	result := make([]*models.Connection, 0)
	for _, conn := range m.connections {
		if conn.UserID == userID {
			result = append(result, conn)
		}
	}
	return result, nil
}

func (m *MockConnectionService) Get(userID string, connectionID int) (*models.Connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conn, exists := m.connections[connectionID]
	if !exists {
		return nil, repository.ErrConnectionNotFound
	}
	if conn.UserID != userID {
		return nil, service.ErrConnectionNotOwned
	}
	return conn, nil
}

// AddConnection добавляет подключение напрямую (для настройки тестов)
func (m *MockConnectionService) AddConnection(userID, exchange string) *models.Connection {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn := &models.Connection{
		ID:        m.nextID,
		UserID:    userID,
		Exchange:  exchange,
		Connected: true,
	}
	m.nextID++
	m.connections[conn.ID] = conn
	return conn
}

// ============ Mock Risk Service ============

// MockRiskService мок для RiskServiceInterface
type MockRiskService struct {
	mu        sync.RWMutex
	statuses  map[int]models.RiskStatus
	balances  map[int]models.Balance
	changeErr error
}

// NewMockRiskService создает новый мок риск-сервиса
func NewMockRiskService() *MockRiskService {
	return &MockRiskService{
		statuses: make(map[int]models.RiskStatus),
		balances: make(map[int]models.Balance),
	}
}

func (m *MockRiskService) Status(connectionID int) (models.RiskStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, exists := m.statuses[connectionID]
	if !exists {
		return models.RiskStatus{}, service.ErrMonitorNotRunning
	}
	return status, nil
}

func (m *MockRiskService) Overview(connectionID int) (models.RiskStatus, models.Balance, []models.Position, []models.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, exists := m.statuses[connectionID]
	if !exists {
		return models.RiskStatus{}, models.Balance{}, nil, nil, service.ErrMonitorNotRunning
	}
	return status, m.balances[connectionID], nil, nil, nil
}

func (m *MockRiskService) RequestTierChange(userID string, connectionID int, desired string) (models.RiskStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status, exists := m.statuses[connectionID]
	if !exists {
		return models.RiskStatus{}, service.ErrMonitorNotRunning
	}
	if m.changeErr != nil {
		return status, m.changeErr
	}

	status.Tier = desired
	m.statuses[connectionID] = status
	return status, nil
}

// SetStatus устанавливает статус подключения напрямую (для настройки тестов)
func (m *MockRiskService) SetStatus(connectionID int, status models.RiskStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[connectionID] = status
}

// ============ Mock History Service ============

// MockHistoryService мок для HistoryServiceInterface
type MockHistoryService struct {
	mu     sync.RWMutex
	trades map[int][]models.Trade
	getErr error
}

// NewMockHistoryService создает новый мок сервиса истории
func NewMockHistoryService() *MockHistoryService {
	return &MockHistoryService{
		trades: make(map[int][]models.Trade),
	}
}

func (m *MockHistoryService) ReconciledTrades(ctx context.Context, connectionID, limit int) ([]models.Trade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.getErr != nil {
		return nil, m.getErr
	}

	trades := m.trades[connectionID]
	if len(trades) > limit {
		trades = trades[:limit]
	}
	return trades, nil
}

// SetTrades устанавливает сделки подключения (для настройки тестов)
func (m *MockHistoryService) SetTrades(connectionID int, trades []models.Trade) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades[connectionID] = trades
}

// ============ Mock Notification Service ============

// MockNotificationService мок для NotificationServiceInterface
type MockNotificationService struct {
	mu            sync.RWMutex
	notifications map[int][]*models.Notification
	alerts        map[int][]*models.Alert
	getErr        error
}

// NewMockNotificationService создает новый мок сервиса уведомлений
func NewMockNotificationService() *MockNotificationService {
	return &MockNotificationService{
		notifications: make(map[int][]*models.Notification),
		alerts:        make(map[int][]*models.Alert),
	}
}

func (m *MockNotificationService) GetNotifications(connectionID int, types []string, limit int) ([]*models.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.getErr != nil {
		return nil, m.getErr
	}

	all := m.notifications[connectionID]
	if len(types) == 0 {
		if len(all) > limit {
			all = all[:limit]
		}
		return all, nil
	}

	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}
	result := make([]*models.Notification, 0)
	for _, n := range all {
		if typeSet[n.Type] {
			result = append(result, n)
		}
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockNotificationService) GetAlerts(connectionID, limit int) ([]*models.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.getErr != nil {
		return nil, m.getErr
	}

	alerts := m.alerts[connectionID]
	if len(alerts) > limit {
		alerts = alerts[:limit]
	}
	return alerts, nil
}

// AddNotification добавляет уведомление напрямую (для настройки тестов)
func (m *MockNotificationService) AddNotification(connectionID int, notifType, severity, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.notifications[connectionID] = append(m.notifications[connectionID], &models.Notification{
		ID:        len(m.notifications[connectionID]) + 1,
		Type:      notifType,
		Severity:  severity,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// AddAlert добавляет алерт напрямую (для настройки тестов)
func (m *MockNotificationService) AddAlert(connectionID int, alertType, severity string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.alerts[connectionID] = append(m.alerts[connectionID], &models.Alert{
		ID:        int64(len(m.alerts[connectionID]) + 1),
		Type:      alertType,
		Severity:  severity,
		Timestamp: time.Now(),
	})
}

// ============ Helper errors for tests ============

var ErrMockDatabase = errors.New("mock database error")

// ============ Проверяем, что моки реализуют интерфейсы ============

var _ service.ConnectionServiceInterface = (*MockConnectionService)(nil)
var _ service.RiskServiceInterface = (*MockRiskService)(nil)
var _ service.HistoryServiceInterface = (*MockHistoryService)(nil)
var _ service.NotificationServiceInterface = (*MockNotificationService)(nil)

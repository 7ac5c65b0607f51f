package service

import (
	"context"
	"sync"
	"time"

	"riskguard/internal/exchange"
	"riskguard/internal/models"
	"riskguard/internal/repository"
)

// ============ Mock ConnectionRepository ============

type MockConnectionRepository struct {
	mu          sync.Mutex
	connections map[int]*models.Connection
	nextID      int
	createErr   error
}

func NewMockConnectionRepository() *MockConnectionRepository {
	return &MockConnectionRepository{
		connections: make(map[int]*models.Connection),
		nextID:      1,
	}
}

func (m *MockConnectionRepository) Create(conn *models.Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	conn.ID = m.nextID
	m.nextID++
	conn.CreatedAt = time.Now()
	conn.UpdatedAt = conn.CreatedAt
	copied := *conn
	m.connections[conn.ID] = &copied
	return nil
}

func (m *MockConnectionRepository) GetByID(id int) (*models.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conn, ok := m.connections[id]; ok {
		copied := *conn
		return &copied, nil
	}
	return nil, repository.ErrConnectionNotFound
}

func (m *MockConnectionRepository) GetByUser(userID string) ([]*models.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*models.Connection
	for _, conn := range m.connections {
		if conn.UserID == userID {
			copied := *conn
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *MockConnectionRepository) GetConnected() ([]*models.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*models.Connection
	for _, conn := range m.connections {
		if conn.Connected {
			copied := *conn
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *MockConnectionRepository) SetConnected(id int, connected bool, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn, ok := m.connections[id]
	if !ok {
		return repository.ErrConnectionNotFound
	}
	conn.Connected = connected
	conn.LastError = lastError
	return nil
}

func (m *MockConnectionRepository) Delete(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.connections[id]; !ok {
		return repository.ErrConnectionNotFound
	}
	delete(m.connections, id)
	return nil
}

// ============ Mock SettingsRepository ============

type MockSettingsRepository struct {
	mu     sync.Mutex
	tiers  map[string]string
	setErr error
}

func NewMockSettingsRepository() *MockSettingsRepository {
	return &MockSettingsRepository{tiers: make(map[string]string)}
}

func (m *MockSettingsRepository) Get(userID string) (*models.RiskSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tier, ok := m.tiers[userID]
	if !ok {
		tier = models.TierConservative
		m.tiers[userID] = tier
	}
	return &models.RiskSettings{UserID: userID, Tier: tier, UpdatedAt: time.Now()}, nil
}

func (m *MockSettingsRepository) SetTier(userID, tier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.tiers[userID] = tier
	return nil
}

// ============ Mock NotificationRepository ============

type MockNotificationRepository struct {
	mu            sync.Mutex
	notifications map[int][]*models.Notification
	nextID        int
	createErr     error
}

func NewMockNotificationRepository() *MockNotificationRepository {
	return &MockNotificationRepository{
		notifications: make(map[int][]*models.Notification),
		nextID:        1,
	}
}

func (m *MockNotificationRepository) Create(connectionID int, notification *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	notification.ID = m.nextID
	m.nextID++
	m.notifications[connectionID] = append(m.notifications[connectionID], notification)
	return nil
}

func (m *MockNotificationRepository) GetRecent(connectionID, limit int) ([]*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.notifications[connectionID]
	if len(list) > limit {
		list = list[len(list)-limit:]
	}
	return list, nil
}

func (m *MockNotificationRepository) GetByTypes(connectionID int, types []string, limit int) ([]*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := make(map[string]struct{}, len(types))
	for _, t := range types {
		wanted[t] = struct{}{}
	}
	var result []*models.Notification
	for _, n := range m.notifications[connectionID] {
		if _, ok := wanted[n.Type]; ok {
			result = append(result, n)
		}
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockNotificationRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	return 0, nil
}

// ============ Mock AlertRepository ============

type MockAlertRepository struct {
	mu       sync.Mutex
	alerts   map[int][]models.Alert
	batchErr error
}

func NewMockAlertRepository() *MockAlertRepository {
	return &MockAlertRepository{alerts: make(map[int][]models.Alert)}
}

func (m *MockAlertRepository) Create(connectionID int, alert *models.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts[connectionID] = append(m.alerts[connectionID], *alert)
	return nil
}

func (m *MockAlertRepository) CreateBatch(connectionID int, alerts []models.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.batchErr != nil {
		return m.batchErr
	}
	m.alerts[connectionID] = append(m.alerts[connectionID], alerts...)
	return nil
}

func (m *MockAlertRepository) GetRecent(connectionID, limit int) ([]*models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.alerts[connectionID]
	result := make([]*models.Alert, 0, len(list))
	for i := range list {
		result = append(result, &list[i])
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

func (m *MockAlertRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	return 0, nil
}

// ============ Mock TradeRepository ============

type MockTradeRepository struct {
	mu        sync.Mutex
	trades    map[int][]models.Trade
	upsertErr error
}

func NewMockTradeRepository() *MockTradeRepository {
	return &MockTradeRepository{trades: make(map[int][]models.Trade)}
}

func (m *MockTradeRepository) Upsert(connectionID int, trades []models.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.trades[connectionID] = append([]models.Trade(nil), trades...)
	return nil
}

func (m *MockTradeRepository) GetRecent(connectionID, limit int) ([]models.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.trades[connectionID]
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// ============ Mock EventBroadcaster ============

type MockHub struct {
	mu            sync.Mutex
	notifications []*models.Notification
	alerts        []models.Alert
	statuses      []models.RiskStatus
}

func (h *MockHub) BroadcastNotification(connectionID int, notification *models.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.notifications = append(h.notifications, notification)
}

func (h *MockHub) BroadcastAlerts(connectionID int, alerts []models.Alert) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.alerts = append(h.alerts, alerts...)
}

func (h *MockHub) BroadcastRiskStatus(connectionID int, status models.RiskStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.statuses = append(h.statuses, status)
}

// ============ Stub AccountClient ============

type stubAccountClient struct {
	balanceErr error
}

func (c *stubAccountClient) Name() string { return "bybit" }

func (c *stubAccountClient) Balance(ctx context.Context, cred *models.Credential) (models.Balance, error) {
	if c.balanceErr != nil {
		return models.Balance{}, c.balanceErr
	}
	return models.Balance{Total: 5000, Available: 4000, Known: true, UpdatedAt: time.Now()}, nil
}

func (c *stubAccountClient) Positions(ctx context.Context, cred *models.Credential) ([]models.Position, error) {
	return nil, nil
}

func (c *stubAccountClient) OrderHistory(ctx context.Context, cred *models.Credential, start, end time.Time) ([]exchange.RawOrder, error) {
	return nil, nil
}

func (c *stubAccountClient) Fills(ctx context.Context, cred *models.Credential, start, end time.Time) ([]exchange.RawFill, error) {
	return nil, nil
}

func (c *stubAccountClient) IncomeHistory(ctx context.Context, cred *models.Credential, start, end time.Time) ([]exchange.RawIncomeEntry, error) {
	return nil, nil
}

package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"riskguard/internal/exchange"
	"riskguard/internal/models"
)

// Интервалы опроса по умолчанию
const (
	DefaultAccountPollInterval = 60 * time.Second
	DefaultAnalysisInterval    = 15 * time.Minute
	DefaultRunTimeout          = 5 * time.Minute
	DefaultTradeLimit          = 200
)

// NotificationSink принимает события мониторов для доставки пользователю.
// Реализуется сервисным слоем (персистентность плюс WebSocket).
type NotificationSink interface {
	PublishNotification(connectionID int, notification *models.Notification)
	PublishAlerts(connectionID int, alerts []models.Alert)
}

// TradeCache принимает согласованные сделки для быстрой выдачи в UI
type TradeCache interface {
	PutTrades(ctx context.Context, connectionID int, trades []models.Trade)
}

// MonitorConfig - параметры планировщика одного монитора
type MonitorConfig struct {
	AccountPollInterval time.Duration
	AnalysisInterval    time.Duration
	RunTimeout          time.Duration
	TradeLimit          int
}

// DefaultMonitorConfig возвращает боевые интервалы
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		AccountPollInterval: DefaultAccountPollInterval,
		AnalysisInterval:    DefaultAnalysisInterval,
		RunTimeout:          DefaultRunTimeout,
		TradeLimit:          DefaultTradeLimit,
	}
}

// Monitor - конвейер риска одного биржевого подключения.
//
// Два независимых такта:
//   - быстрый (раз в минуту): баланс и открытые позиции;
//   - полный (раз в 15 минут): выборка истории, согласование сделок,
//     пересчёт метрик, такт риск-машины, поведенческие эвристики.
//
// Для одного подключения одновременно выполняется не больше одного
// полного прогона: пропущенный тик лучше дублирующих подписанных
// запросов к тем же лимитированным эндпоинтам. Снимок состояния
// заменяется целиком под локом, читатели видят либо старую, либо
// полностью новую версию.
type Monitor struct {
	cred    *models.Credential
	client  exchange.AccountClient
	fetcher *HistoryFetcher
	sink    NotificationSink
	cache   TradeCache
	cfg     MonitorConfig
	log     *zap.Logger

	mu        sync.RWMutex
	status    models.RiskStatus
	balance   models.Balance
	positions []models.Position
	trades    []models.Trade
	alerts    []models.Alert

	analysisBusy atomic.Bool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor создаёт монитор для подключения. tier задаёт стартовый тир
// из сохранённых настроек пользователя.
func NewMonitor(cred *models.Credential, client exchange.AccountClient, fetcher *HistoryFetcher,
	sink NotificationSink, cache TradeCache, tier string, cfg MonitorConfig, log *zap.Logger) *Monitor {

	if cfg.AccountPollInterval <= 0 {
		cfg.AccountPollInterval = DefaultAccountPollInterval
	}
	if cfg.AnalysisInterval <= 0 {
		cfg.AnalysisInterval = DefaultAnalysisInterval
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = DefaultRunTimeout
	}
	if cfg.TradeLimit <= 0 {
		cfg.TradeLimit = DefaultTradeLimit
	}

	return &Monitor{
		cred:    cred,
		client:  client,
		fetcher: fetcher,
		sink:    sink,
		cache:   cache,
		cfg:     cfg,
		status:  NewRiskStatus(tier, time.Now()),
		log: log.With(
			zap.Int("connection_id", cred.ConnectionID),
			zap.String("exchange", cred.Exchange),
		),
	}
}

// Start запускает оба такта монитора. Первый полный прогон выполняется
// сразу, чтобы UI не ждал 15 минут после подключения биржи.
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)

		accountTicker := time.NewTicker(m.cfg.AccountPollInterval)
		analysisTicker := time.NewTicker(m.cfg.AnalysisInterval)
		defer accountTicker.Stop()
		defer analysisTicker.Stop()

		m.pollAccount(ctx)
		m.runAnalysis(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-accountTicker.C:
				m.pollAccount(ctx)
			case <-analysisTicker.C:
				m.runAnalysis(ctx)
			}
		}
	}()
}

// Stop останавливает такты и дожидается завершения текущего прогона.
// Запросы в полёте отменяются, их частичные результаты отбрасываются.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.done != nil {
		<-m.done
	}
}

// Status возвращает снимок текущего статуса риска
func (m *Monitor) Status() models.RiskStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Balance возвращает снимок баланса
func (m *Monitor) Balance() models.Balance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balance
}

// Positions возвращает копию списка открытых позиций
func (m *Monitor) Positions() []models.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Position, len(m.positions))
	copy(out, m.positions)
	return out
}

// Trades возвращает копию последнего согласованного списка сделок
func (m *Monitor) Trades() []models.Trade {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Trade, len(m.trades))
	copy(out, m.trades)
	return out
}

// Alerts возвращает копию алертов последнего прогона
func (m *Monitor) Alerts() []models.Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Alert, len(m.alerts))
	copy(out, m.alerts)
	return out
}

// RequestTierChange применяет ручную смену тира к текущему статусу.
// Ошибки правил возвращаются как есть, статус при них не меняется.
func (m *Monitor) RequestTierChange(desired string) (models.RiskStatus, error) {
	m.mu.Lock()
	status, notification, err := RequestTierChange(m.status, desired, time.Now())
	if err != nil {
		m.mu.Unlock()
		return m.status, err
	}
	m.status = status
	m.mu.Unlock()

	if notification != nil && m.sink != nil {
		m.sink.PublishNotification(m.cred.ConnectionID, notification)
	}
	return status, nil
}

// pollAccount обновляет баланс и позиции. Ошибка биржи переводит баланс
// в состояние "неизвестен": потребители обязаны показать отсутствие
// данных, а не нули.
func (m *Monitor) pollAccount(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.RunTimeout)
	defer cancel()

	balance, balErr := m.client.Balance(ctx, m.cred)
	positions, posErr := m.client.Positions(ctx, m.cred)

	m.mu.Lock()
	if balErr != nil {
		m.balance.Known = false
	} else {
		m.balance = balance
	}
	if posErr == nil {
		m.positions = positions
	}
	m.mu.Unlock()

	if balErr != nil {
		m.log.Warn("balance poll failed", zap.Error(balErr))
		m.notifyError(fmt.Sprintf("Failed to fetch balance: %v", balErr))
	}
	if posErr != nil {
		m.log.Warn("positions poll failed", zap.Error(posErr))
	}
}

// runAnalysis выполняет полный прогон конвейера. Не больше одного
// одновременно: занятый монитор пропускает тик.
func (m *Monitor) runAnalysis(ctx context.Context) {
	if !m.analysisBusy.CompareAndSwap(false, true) {
		AnalysisRuns.WithLabelValues("skipped").Inc()
		m.log.Warn("analysis still running, tick skipped")
		return
	}
	defer m.analysisBusy.Store(false)

	ctx, cancel := context.WithTimeout(ctx, m.cfg.RunTimeout)
	defer cancel()

	started := time.Now()
	if err := m.analyze(ctx); err != nil {
		AnalysisRuns.WithLabelValues("error").Inc()
		m.log.Error("analysis run failed", zap.Error(err))
		m.notifyError(fmt.Sprintf("Risk analysis failed: %v", err))
		return
	}
	AnalysisRuns.WithLabelValues("ok").Inc()
	AnalysisDuration.Observe(time.Since(started).Seconds())
}

func (m *Monitor) analyze(ctx context.Context) error {
	now := time.Now()

	history, report, err := m.fetcher.Fetch(ctx, m.cred, now.Add(-weeklyWindow), now)
	if err != nil {
		return err
	}
	if !report.Complete() {
		m.log.Warn("history fetched with gaps",
			zap.Int("chunks", report.Chunks),
			zap.Int("failed_endpoints", len(report.Failures)))
	}

	trades := ReconcileTrades(history, m.cfg.TradeLimit)

	m.mu.RLock()
	balance := m.balance
	positions := make([]models.Position, len(m.positions))
	copy(positions, m.positions)
	prev := m.status
	m.mu.RUnlock()

	metrics := ComputeRiskMetrics(trades, positions, balance, now)
	status, notifications := EvaluateRiskState(prev, metrics, now)
	alerts := DetectBehaviors(trades, positions, metrics, status.Limits(), now)

	m.mu.Lock()
	m.status = status
	m.trades = trades
	m.alerts = alerts
	m.mu.Unlock()

	if m.cache != nil {
		m.cache.PutTrades(ctx, m.cred.ConnectionID, trades)
	}
	if m.sink != nil {
		for _, n := range notifications {
			m.sink.PublishNotification(m.cred.ConnectionID, n)
		}
		if len(alerts) > 0 {
			m.sink.PublishAlerts(m.cred.ConnectionID, alerts)
		}
	}

	m.log.Info("analysis run finished",
		zap.Int("trades", len(trades)),
		zap.Int("alerts", len(alerts)),
		zap.Float64("risk_score", status.CurrentRisk),
		zap.String("tier", status.Tier),
		zap.Bool("trading_allowed", status.TradingAllowed))
	return nil
}

func (m *Monitor) notifyError(message string) {
	if m.sink == nil {
		return
	}
	m.sink.PublishNotification(m.cred.ConnectionID, &models.Notification{
		Timestamp: time.Now(),
		Type:      models.NotificationTypeError,
		Severity:  models.SeverityError,
		Message:   message,
	})
}

// Engine владеет мониторами всех активных подключений.
//
// Клиенты бирж регистрируются один раз при старте процесса; мониторы
// добавляются и убираются по мере подключения пользователей.
type Engine struct {
	clients map[string]exchange.AccountClient
	sink    NotificationSink
	cache   TradeCache
	cfg     MonitorConfig
	log     *zap.Logger

	ctx context.Context

	mu       sync.RWMutex
	monitors map[int]*Monitor
}

// ErrUnknownExchange возвращается при подключении к незарегистрированной бирже
var ErrUnknownExchange = fmt.Errorf("unknown exchange")

// NewEngine создаёт движок. ctx ограничивает жизнь всех мониторов.
func NewEngine(ctx context.Context, clients map[string]exchange.AccountClient,
	sink NotificationSink, cache TradeCache, cfg MonitorConfig, log *zap.Logger) *Engine {

	return &Engine{
		clients:  clients,
		sink:     sink,
		cache:    cache,
		cfg:      cfg,
		log:      log,
		ctx:      ctx,
		monitors: make(map[int]*Monitor),
	}
}

// Client возвращает зарегистрированный клиент биржи
func (e *Engine) Client(exchangeName string) (exchange.AccountClient, bool) {
	client, ok := e.clients[exchangeName]
	return client, ok
}

// StartMonitor запускает монитор подключения. Повторный запуск того же
// подключения заменяет существующий монитор.
func (e *Engine) StartMonitor(cred *models.Credential, tier string) error {
	client, ok := e.clients[cred.Exchange]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownExchange, cred.Exchange)
	}

	fetcher := NewHistoryFetcher(client, DefaultChunkSize, e.log)
	monitor := NewMonitor(cred, client, fetcher, e.sink, e.cache, tier, e.cfg, e.log)

	e.mu.Lock()
	if old, exists := e.monitors[cred.ConnectionID]; exists {
		old.Stop()
	}
	e.monitors[cred.ConnectionID] = monitor
	e.mu.Unlock()

	monitor.Start(e.ctx)
	e.log.Info("monitor started",
		zap.Int("connection_id", cred.ConnectionID),
		zap.String("exchange", cred.Exchange),
		zap.String("tier", tier))
	return nil
}

// StopMonitor останавливает и убирает монитор подключения
func (e *Engine) StopMonitor(connectionID int) {
	e.mu.Lock()
	monitor, ok := e.monitors[connectionID]
	if ok {
		delete(e.monitors, connectionID)
	}
	e.mu.Unlock()

	if ok {
		monitor.Stop()
		e.log.Info("monitor stopped", zap.Int("connection_id", connectionID))
	}
}

// Monitor возвращает монитор подключения
func (e *Engine) Monitor(connectionID int) (*Monitor, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	monitor, ok := e.monitors[connectionID]
	return monitor, ok
}

// Shutdown останавливает все мониторы
func (e *Engine) Shutdown() {
	e.mu.Lock()
	monitors := make([]*Monitor, 0, len(e.monitors))
	for id, m := range e.monitors {
		monitors = append(monitors, m)
		delete(e.monitors, id)
	}
	e.mu.Unlock()

	for _, m := range monitors {
		m.Stop()
	}
	e.log.Info("all monitors stopped", zap.Int("count", len(monitors)))
}

package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"riskguard/internal/api"
	"riskguard/internal/cache"
	"riskguard/internal/config"
	"riskguard/internal/core"
	"riskguard/internal/exchange"
	"riskguard/internal/repository"
	"riskguard/internal/service"
	"riskguard/internal/websocket"
	"riskguard/pkg/crypto"
	"riskguard/pkg/logger"
	"riskguard/pkg/ratelimit"

	_ "github.com/lib/pq"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Логирование
	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	// Ключ шифрования API ключей выводится из master-фразы
	encryptionKey, err := crypto.DeriveKey(cfg.Security.EncryptionPassphrase, []byte(cfg.Security.EncryptionSalt))
	if err != nil {
		log.Fatal("encryption key derivation failed", zap.Error(err))
	}

	// База данных
	db, err := initDatabase(cfg)
	if err != nil {
		log.Fatal("database connection failed",
			zap.String("dsn", cfg.Database.DSNWithoutPassword()),
			zap.Error(err))
	}
	defer db.Close()
	log.Info("connected to database", zap.String("dsn", cfg.Database.DSNWithoutPassword()))

	// Репозитории
	connectionRepo := repository.NewConnectionRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	tradeRepo := repository.NewTradeRepository(db)

	// Кеш сделок: Redis при наличии адреса, иначе память процесса
	var store cache.Store
	if cfg.Redis.Addr != "" {
		redisStore, err := cache.NewRedisStore(cache.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		}, log)
		if err != nil {
			log.Fatal("redis connection failed", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		defer redisStore.Close()
		store = redisStore
		log.Info("trade cache: redis", zap.String("addr", cfg.Redis.Addr))
	} else {
		store = cache.NewMemoryStore(cfg.Redis.TTL)
		log.Info("trade cache: in-memory")
	}

	// Клиенты бирж. Все запросы к одной бирже проходят через общий
	// gate с минимальной паузой.
	httpClient := exchange.NewHTTPClient(exchange.DefaultHTTPClientConfig())
	gate := ratelimit.NewSpacingGate(cfg.Monitor.RequestSpacing)
	bybit := exchange.NewBybit(httpClient, gate, log)
	clients := map[string]exchange.AccountClient{
		bybit.Name(): bybit,
	}

	// WebSocket hub
	hub := websocket.NewHub(log)
	go hub.Run()

	// Движок мониторов
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifier := service.NewNotifier(notificationRepo, alertRepo, hub, log)
	recorder := service.NewTradeRecorder(store, tradeRepo, log)
	engine := core.NewEngine(ctx, clients, notifier, recorder, core.MonitorConfig{
		AccountPollInterval: cfg.Monitor.AccountPollInterval,
		AnalysisInterval:    cfg.Monitor.AnalysisInterval,
		RunTimeout:          cfg.Monitor.RunTimeout,
		TradeLimit:          cfg.Monitor.TradeLimit,
	}, log)

	// Сервисы
	connectionService := service.NewConnectionService(connectionRepo, settingsRepo, engine, encryptionKey, log)
	riskService := service.NewRiskService(engine, settingsRepo, hub, log)
	historyService := service.NewHistoryService(engine, store, tradeRepo, log)
	notificationService := service.NewNotificationService(notificationRepo, alertRepo, log)

	// Поднимаем мониторы подключений, активных до рестарта
	if err := connectionService.RestoreMonitors(); err != nil {
		log.Error("monitor restore failed", zap.Error(err))
	}

	// Периодическая чистка журнала уведомлений
	go runCleanup(ctx, notificationService, cfg.Monitor.Retention)

	// HTTP роутер
	router := api.SetupRoutes(&api.Dependencies{
		ConnectionService:   connectionService,
		RiskService:         riskService,
		HistoryService:      historyService,
		NotificationService: notificationService,
		Hub:                 hub,
		APIToken:            cfg.Security.APIToken,
		Log:                 log,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск сервера в отдельной горутине
	go func() {
		log.Info("starting server", zap.String("addr", server.Addr))
		if cfg.Server.UseHTTPS {
			if err := server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile); err != nil && err != http.ErrServerClosed {
				log.Fatal("server failed", zap.Error(err))
			}
		} else {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatal("server failed", zap.Error(err))
			}
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	// Останавливаем мониторы, затем HTTP сервер
	engine.Shutdown()
	cancel()
	hub.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited")
}

// runCleanup периодически удаляет устаревшие уведомления и алерты
func runCleanup(ctx context.Context, notificationService *service.NotificationService, retention time.Duration) {
	ticker := time.NewTicker(6 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			notificationService.Cleanup(retention)
		}
	}
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Проверка подключения
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

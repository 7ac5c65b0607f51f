package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"riskguard/internal/core"
	"riskguard/internal/models"
	"riskguard/pkg/crypto"
)

// Ошибки сервиса подключений
var (
	ErrExchangeNotSupported = errors.New("exchange is not supported")
	ErrAccountKindInvalid   = errors.New("account kind must be spot or futures")
	ErrInvalidCredentials   = errors.New("invalid API credentials")
	ErrConnectionNotOwned   = errors.New("connection belongs to another user")
)

// ConnectionService - бизнес-логика подключений к биржам.
//
// Подключение: проверка ключей тестовым запросом баланса, шифрование,
// сохранение, запуск монитора. Отключение: остановка монитора,
// затирание ключей в БД.
type ConnectionService struct {
	connectionRepo ConnectionRepositoryInterface
	settingsRepo   SettingsRepositoryInterface
	engine         *core.Engine
	encryptionKey  []byte
	log            *zap.Logger
}

// NewConnectionService создает новый экземпляр сервиса
func NewConnectionService(connectionRepo ConnectionRepositoryInterface, settingsRepo SettingsRepositoryInterface,
	engine *core.Engine, encryptionKey []byte, log *zap.Logger) *ConnectionService {
	return &ConnectionService{
		connectionRepo: connectionRepo,
		settingsRepo:   settingsRepo,
		engine:         engine,
		encryptionKey:  encryptionKey,
		log:            log,
	}
}

// Connect подключает биржевой аккаунт.
// Выполняет:
//  1. Валидацию параметров.
//  2. Тестовый запрос баланса с переданными ключами.
//  3. Шифрование ключей и сохранение подключения.
//  4. Запуск монитора.
func (s *ConnectionService) Connect(ctx context.Context, userID, exchangeName, accountKind, apiKey, secretKey string) (*models.Connection, error) {
	exchangeName = strings.ToLower(exchangeName)
	accountKind = strings.ToLower(accountKind)

	client, ok := s.engine.Client(exchangeName)
	if !ok {
		return nil, ErrExchangeNotSupported
	}
	if accountKind != models.AccountKindSpot && accountKind != models.AccountKindFutures {
		return nil, ErrAccountKindInvalid
	}

	// Тестовый запрос: ключи должны позволять читать баланс
	probe := &models.Credential{
		Exchange:    exchangeName,
		APIKey:      apiKey,
		SecretKey:   secretKey,
		AccountKind: accountKind,
	}
	if _, err := client.Balance(ctx, probe); err != nil {
		return nil, errors.Join(ErrInvalidCredentials, err)
	}

	encryptedAPIKey, err := crypto.Encrypt(apiKey, s.encryptionKey)
	if err != nil {
		return nil, err
	}
	encryptedSecretKey, err := crypto.Encrypt(secretKey, s.encryptionKey)
	if err != nil {
		return nil, err
	}

	conn := &models.Connection{
		UserID:      userID,
		Exchange:    exchangeName,
		AccountKind: accountKind,
		APIKey:      encryptedAPIKey,
		SecretKey:   encryptedSecretKey,
		Connected:   true,
	}
	if err := s.connectionRepo.Create(conn); err != nil {
		return nil, err
	}

	if err := s.startMonitor(conn); err != nil {
		// Подключение сохранено, монитор поднимется при рестарте
		s.log.Error("monitor start failed", zap.Int("connection_id", conn.ID), zap.Error(err))
	}

	s.log.Info("exchange connected",
		zap.Int("connection_id", conn.ID),
		zap.String("exchange", exchangeName),
		zap.String("account_kind", accountKind))
	return sanitized(conn), nil
}

// Disconnect останавливает монитор и отключает аккаунт.
// Запросы монитора в полёте отменяются, их результаты отбрасываются.
func (s *ConnectionService) Disconnect(userID string, connectionID int) error {
	conn, err := s.connectionRepo.GetByID(connectionID)
	if err != nil {
		return err
	}
	if conn.UserID != userID {
		return ErrConnectionNotOwned
	}

	s.engine.StopMonitor(connectionID)

	if err := s.connectionRepo.SetConnected(connectionID, false, ""); err != nil {
		return err
	}

	s.log.Info("exchange disconnected", zap.Int("connection_id", connectionID))
	return nil
}

// Delete полностью удаляет подключение вместе с ключами
func (s *ConnectionService) Delete(userID string, connectionID int) error {
	conn, err := s.connectionRepo.GetByID(connectionID)
	if err != nil {
		return err
	}
	if conn.UserID != userID {
		return ErrConnectionNotOwned
	}

	s.engine.StopMonitor(connectionID)
	return s.connectionRepo.Delete(connectionID)
}

// List возвращает подключения пользователя без ключей
func (s *ConnectionService) List(userID string) ([]*models.Connection, error) {
	connections, err := s.connectionRepo.GetByUser(userID)
	if err != nil {
		return nil, err
	}

	result := make([]*models.Connection, len(connections))
	for i, conn := range connections {
		result[i] = sanitized(conn)
	}
	return result, nil
}

// Get возвращает подключение пользователя без ключей
func (s *ConnectionService) Get(userID string, connectionID int) (*models.Connection, error) {
	conn, err := s.connectionRepo.GetByID(connectionID)
	if err != nil {
		return nil, err
	}
	if conn.UserID != userID {
		return nil, ErrConnectionNotOwned
	}
	return sanitized(conn), nil
}

// RestoreMonitors поднимает мониторы всех активных подключений.
// Вызывается один раз при старте процесса. Подключение с нечитаемыми
// ключами помечается отключённым вместо остановки всего старта.
func (s *ConnectionService) RestoreMonitors() error {
	connections, err := s.connectionRepo.GetConnected()
	if err != nil {
		return err
	}

	for _, conn := range connections {
		if err := s.startMonitor(conn); err != nil {
			s.log.Error("monitor restore failed",
				zap.Int("connection_id", conn.ID),
				zap.Error(err))
			_ = s.connectionRepo.SetConnected(conn.ID, false, err.Error())
			continue
		}
	}

	s.log.Info("monitors restored", zap.Int("count", len(connections)))
	return nil
}

// startMonitor расшифровывает ключи и запускает монитор подключения
func (s *ConnectionService) startMonitor(conn *models.Connection) error {
	apiKey, err := crypto.Decrypt(conn.APIKey, s.encryptionKey)
	if err != nil {
		return err
	}
	secretKey, err := crypto.Decrypt(conn.SecretKey, s.encryptionKey)
	if err != nil {
		return err
	}

	settings, err := s.settingsRepo.Get(conn.UserID)
	if err != nil {
		return err
	}

	cred := &models.Credential{
		ConnectionID: conn.ID,
		Exchange:     conn.Exchange,
		APIKey:       apiKey,
		SecretKey:    secretKey,
		AccountKind:  conn.AccountKind,
	}
	return s.engine.StartMonitor(cred, settings.Tier)
}

// sanitized возвращает копию подключения без зашифрованных ключей
func sanitized(conn *models.Connection) *models.Connection {
	return &models.Connection{
		ID:          conn.ID,
		UserID:      conn.UserID,
		Exchange:    conn.Exchange,
		AccountKind: conn.AccountKind,
		Connected:   conn.Connected,
		LastError:   conn.LastError,
		UpdatedAt:   conn.UpdatedAt,
		CreatedAt:   conn.CreatedAt,
	}
}

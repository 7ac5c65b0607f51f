package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Security SecurityConfig
	Monitor  MonitorConfig
	Logging  LoggingConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port     int
	Host     string
	UseHTTPS bool
	CertFile string
	KeyFile  string
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// RedisConfig - настройки кеша согласованных сделок.
// Пустой Addr отключает Redis, кеш работает в памяти процесса.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	// Master-фраза для шифрования API ключей бирж (AES-256-GCM).
	// Ключ выводится через PBKDF2, фраза может быть произвольной длины.
	EncryptionPassphrase string

	// Соль деривации ключа, минимум 16 байт. Секретом не является,
	// но менять её нельзя: старые ключи станут нечитаемыми.
	EncryptionSalt string

	// Статический API токен. Пустой токен отключает проверку
	// Authorization (локальное развертывание).
	APIToken string
}

// MonitorConfig - интервалы мониторов подключений
type MonitorConfig struct {
	AccountPollInterval time.Duration // опрос баланса и позиций
	AnalysisInterval    time.Duration // полный прогон конвейера анализа
	RunTimeout          time.Duration // таймаут одного прогона
	TradeLimit          int           // сколько сделок держать в снимке

	// Минимальная пауза между запросами к API биржи
	RequestSpacing time.Duration

	// Сколько хранить уведомления и алерты
	Retention time.Duration
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnvAsInt("SERVER_PORT", 8080),
			Host:     getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS: getEnvAsBool("USE_HTTPS", false),
			CertFile: getEnv("CERT_FILE", ""),
			KeyFile:  getEnv("KEY_FILE", ""),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "riskguard"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			TTL:      getEnvAsDuration("REDIS_TTL", 20*time.Minute),
		},
		Security: SecurityConfig{
			EncryptionPassphrase: getEnv("ENCRYPTION_PASSPHRASE", ""),
			EncryptionSalt:       getEnv("ENCRYPTION_SALT", ""),
			APIToken:             getEnv("API_TOKEN", ""),
		},
		Monitor: MonitorConfig{
			AccountPollInterval: getEnvAsDuration("ACCOUNT_POLL_INTERVAL", 60*time.Second),
			AnalysisInterval:    getEnvAsDuration("ANALYSIS_INTERVAL", 15*time.Minute),
			RunTimeout:          getEnvAsDuration("ANALYSIS_RUN_TIMEOUT", 5*time.Minute),
			TradeLimit:          getEnvAsInt("TRADE_LIMIT", 200),
			RequestSpacing:      getEnvAsDuration("REQUEST_SPACING", 300*time.Millisecond),
			Retention:           getEnvAsDuration("NOTIFICATION_RETENTION", 30*24*time.Hour),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.validateSecurity(); err != nil {
		return nil, err
	}

	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSecurity проверяет параметры безопасности
func (c *Config) validateSecurity() error {
	// Без фразы шифрования ключи бирж хранить негде
	if c.Security.EncryptionPassphrase == "" {
		return fmt.Errorf("ENCRYPTION_PASSPHRASE is required for encrypting API keys")
	}

	if len(c.Security.EncryptionSalt) < 16 {
		return fmt.Errorf("ENCRYPTION_SALT must be at least 16 bytes, got %d", len(c.Security.EncryptionSalt))
	}

	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	if c.Monitor.AccountPollInterval <= 0 {
		return fmt.Errorf("ACCOUNT_POLL_INTERVAL must be positive, got %v", c.Monitor.AccountPollInterval)
	}

	if c.Monitor.AnalysisInterval <= 0 {
		return fmt.Errorf("ANALYSIS_INTERVAL must be positive, got %v", c.Monitor.AnalysisInterval)
	}

	if c.Monitor.RunTimeout <= 0 {
		return fmt.Errorf("ANALYSIS_RUN_TIMEOUT must be positive, got %v", c.Monitor.RunTimeout)
	}

	if c.Monitor.RunTimeout >= c.Monitor.AnalysisInterval {
		return fmt.Errorf("ANALYSIS_RUN_TIMEOUT (%v) must be shorter than ANALYSIS_INTERVAL (%v)",
			c.Monitor.RunTimeout, c.Monitor.AnalysisInterval)
	}

	if c.Monitor.TradeLimit < 1 {
		return fmt.Errorf("TRADE_LIMIT must be at least 1, got %d", c.Monitor.TradeLimit)
	}

	if c.Monitor.RequestSpacing < 0 {
		return fmt.Errorf("REQUEST_SPACING cannot be negative, got %v", c.Monitor.RequestSpacing)
	}

	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

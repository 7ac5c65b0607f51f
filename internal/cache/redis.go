package cache

import (
	"context"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"riskguard/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RedisOptions - параметры подключения к Redis
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisStore - Redis-реализация Store. Сделки сериализуются в JSON
// одной записью на подключение, TTL вытесняет устаревшие.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

// NewRedisStore подключается к Redis и проверяет соединение
func NewRedisStore(opts RedisOptions, log *zap.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolSize:     10,
		MaxRetries:   3,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &RedisStore{client: client, ttl: ttl, log: log}, nil
}

func tradesKey(connectionID int) string {
	return "riskguard:trades:" + strconv.Itoa(connectionID)
}

func (s *RedisStore) PutTrades(ctx context.Context, connectionID int, trades []models.Trade) {
	data, err := json.Marshal(trades)
	if err != nil {
		s.log.Error("trades marshal failed", zap.Error(err))
		return
	}
	if err := s.client.Set(ctx, tradesKey(connectionID), data, s.ttl).Err(); err != nil {
		s.log.Warn("redis set failed",
			zap.Int("connection_id", connectionID),
			zap.Error(err))
	}
}

func (s *RedisStore) GetTrades(ctx context.Context, connectionID int) ([]models.Trade, bool) {
	data, err := s.client.Get(ctx, tradesKey(connectionID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.log.Warn("redis get failed",
				zap.Int("connection_id", connectionID),
				zap.Error(err))
		}
		return nil, false
	}

	var trades []models.Trade
	if err := json.Unmarshal(data, &trades); err != nil {
		s.log.Error("trades unmarshal failed", zap.Error(err))
		return nil, false
	}
	return trades, true
}

func (s *RedisStore) Invalidate(ctx context.Context, connectionID int) {
	if err := s.client.Del(ctx, tradesKey(connectionID)).Err(); err != nil {
		s.log.Warn("redis del failed",
			zap.Int("connection_id", connectionID),
			zap.Error(err))
	}
}

// Close закрывает соединение с Redis
func (s *RedisStore) Close() error {
	return s.client.Close()
}

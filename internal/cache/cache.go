// Package cache хранит последние согласованные сделки подключений.
//
// Кеш ускоряет выдачу истории в UI между полными прогонами анализа.
// Источником истины остаётся биржа: потеря кеша приводит только к
// повторной выборке, поэтому все реализации работают в режиме
// best-effort и не возвращают ошибки наружу.
package cache

import (
	"context"
	"sync"
	"time"

	"riskguard/internal/models"
)

// DefaultTTL - время жизни записи. Совпадает с интервалом полного
// прогона анализа с запасом: устаревший кеш вытесняется раньше, чем
// станет заметно расходиться с биржей.
const DefaultTTL = 20 * time.Minute

// Store - кеш сделок по подключению
type Store interface {
	// PutTrades заменяет кешированный список сделок подключения
	PutTrades(ctx context.Context, connectionID int, trades []models.Trade)

	// GetTrades возвращает кешированные сделки подключения.
	// false = записи нет или она истекла.
	GetTrades(ctx context.Context, connectionID int) ([]models.Trade, bool)

	// Invalidate удаляет запись подключения
	Invalidate(ctx context.Context, connectionID int)
}

// memoryEntry - запись in-memory кеша
type memoryEntry struct {
	trades    []models.Trade
	expiresAt time.Time
}

// MemoryStore - кеш в памяти процесса. Используется когда Redis не
// сконфигурирован, и в тестах.
type MemoryStore struct {
	ttl time.Duration

	mu      sync.RWMutex
	entries map[int]memoryEntry
}

// NewMemoryStore создаёт in-memory кеш с заданным TTL
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		ttl:     ttl,
		entries: make(map[int]memoryEntry),
	}
}

func (s *MemoryStore) PutTrades(_ context.Context, connectionID int, trades []models.Trade) {
	copied := make([]models.Trade, len(trades))
	copy(copied, trades)

	s.mu.Lock()
	s.entries[connectionID] = memoryEntry{
		trades:    copied,
		expiresAt: time.Now().Add(s.ttl),
	}
	s.mu.Unlock()
}

func (s *MemoryStore) GetTrades(_ context.Context, connectionID int) ([]models.Trade, bool) {
	s.mu.RLock()
	entry, ok := s.entries[connectionID]
	s.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}

	copied := make([]models.Trade, len(entry.trades))
	copy(copied, entry.trades)
	return copied, true
}

func (s *MemoryStore) Invalidate(_ context.Context, connectionID int) {
	s.mu.Lock()
	delete(s.entries, connectionID)
	s.mu.Unlock()
}

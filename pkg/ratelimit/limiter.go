package ratelimit

import (
	"context"
	"sync"
	"time"
)

// SpacingGate - шлюз минимального интервала между запросами к приватному API биржи
//
// Биржа лимитирует частоту подписанных запросов на аккаунт, поэтому все
// вызовы одного credential должны проходить через общий шлюз. В отличие от
// token bucket, шлюз не допускает burst'ов вообще: между любыми двумя
// запросами выдерживается минимум Spacing, даже если вызывающие горутины
// конкурентны. Фактически это мьютекс на один слот с таймером.
//
// Использование:
//
//	gate := ratelimit.NewSpacingGate(300 * time.Millisecond)
//	if err := gate.Wait(ctx); err != nil { ... } // ждём свой слот
//	// выполняем подписанный запрос
type SpacingGate struct {
	spacing time.Duration
	last    time.Time // время выдачи последнего слота
	mu      sync.Mutex
}

// DefaultSpacing - минимальный интервал по умолчанию.
// 300ms держит нас заведомо ниже лимитов приватных endpoint'ов Bybit.
const DefaultSpacing = 300 * time.Millisecond

// NewSpacingGate создаёт шлюз с указанным минимальным интервалом.
// При spacing <= 0 используется DefaultSpacing.
func NewSpacingGate(spacing time.Duration) *SpacingGate {
	if spacing <= 0 {
		spacing = DefaultSpacing
	}
	return &SpacingGate{spacing: spacing}
}

// Wait блокирует до наступления своего слота или отмены контекста.
//
// Слот резервируется до начала ожидания: конкурентные вызовы выстраиваются
// в очередь и получают слоты строго с интервалом Spacing. При отмене
// контекста зарезервированный слот не возвращается - следующий вызов
// просто использует более позднее время.
func (g *SpacingGate) Wait(ctx context.Context) error {
	g.mu.Lock()
	now := time.Now()

	next := g.last.Add(g.spacing)
	if next.Before(now) {
		next = now
	}
	g.last = next
	g.mu.Unlock()

	wait := time.Until(next)
	if wait <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Allow сообщает, доступен ли слот прямо сейчас, и занимает его если да.
// Неблокирующая проверка для вызовов, которые лучше отложить, чем ждать.
func (g *SpacingGate) Allow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	if now.Sub(g.last) < g.spacing {
		return false
	}
	g.last = now
	return true
}

// Spacing возвращает настроенный минимальный интервал
func (g *SpacingGate) Spacing() time.Duration {
	return g.spacing
}

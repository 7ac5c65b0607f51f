package core

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"riskguard/internal/exchange"
	"riskguard/internal/models"
)

// Имена фидов для отчёта об ошибках и метрик
const (
	FeedOrders = "orders"
	FeedFills  = "fills"
	FeedIncome = "income"
)

// DefaultChunkSize - максимальная ширина одного чанка.
// Биржа не отдаёт историю интервалами шире 7 дней.
const DefaultChunkSize = 7 * 24 * time.Hour

// RawHistory - три сырых фида за весь запрошенный диапазон.
// Каждый фид может быть неполным, см. FetchReport.
type RawHistory struct {
	Orders []exchange.RawOrder
	Fills  []exchange.RawFill
	Income []exchange.RawIncomeEntry
}

// EndpointFailure - отказ одного endpoint'а в одном чанке
type EndpointFailure struct {
	Feed       string    `json:"feed"` // orders | fills | income
	ChunkStart time.Time `json:"chunk_start"`
	ChunkEnd   time.Time `json:"chunk_end"`
	Err        string    `json:"error"`
}

// FetchReport - структурированный отчёт о частичных отказах выборки.
//
// Потребители обязаны трактовать перечисленные пробелы как "данные
// неизвестны", а не как отсутствие торговой активности.
type FetchReport struct {
	Chunks   int               `json:"chunks"`
	Failures []EndpointFailure `json:"failures,omitempty"`
}

// Complete сообщает, получены ли все фиды всех чанков без ошибок
func (r *FetchReport) Complete() bool {
	return len(r.Failures) == 0
}

// HistoryFetcher выбирает три исторических фида по чанкам.
//
// Диапазон режется на непересекающиеся чанки не шире chunkSize,
// чанки обрабатываются от старых к новым. Внутри чанка три фида
// запрашиваются конкурентно: темп всё равно задаёт общий SpacingGate
// подписанного клиента. Отказ одного фида не прерывает ни соседние
// фиды, ни последующие чанки - частичные данные лучше, чем никакие.
type HistoryFetcher struct {
	client    exchange.AccountClient
	chunkSize time.Duration
	log       *zap.Logger
}

// NewHistoryFetcher создаёт fetcher. При chunkSize <= 0 берётся DefaultChunkSize.
func NewHistoryFetcher(client exchange.AccountClient, chunkSize time.Duration, log *zap.Logger) *HistoryFetcher {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &HistoryFetcher{
		client:    client,
		chunkSize: chunkSize,
		log:       log,
	}
}

// Fetch выбирает все три фида за [start, end].
//
// Возвращает ошибку только при отмене контекста: в этом случае
// частичные результаты отбрасываются, а не сливаются. Все остальные
// отказы фиксируются в FetchReport.
func (f *HistoryFetcher) Fetch(ctx context.Context, cred *models.Credential, start, end time.Time) (*RawHistory, *FetchReport, error) {
	history := &RawHistory{}
	report := &FetchReport{}

	if !start.Before(end) {
		return history, report, nil
	}

	// startTime и endTime у биржи включающие, поэтому следующий чанк
	// начинается на миллисекунду позже конца предыдущего: запись с
	// таймштампом ровно на границе иначе выбиралась бы дважды.
	for chunkStart := start; !chunkStart.After(end); chunkStart = chunkStart.Add(f.chunkSize + time.Millisecond) {
		chunkEnd := chunkStart.Add(f.chunkSize)
		if chunkEnd.After(end) {
			chunkEnd = end
		}

		if err := ctx.Err(); err != nil {
			// Отмена: выбранное до сих пор не отдаём
			return nil, nil, err
		}

		f.fetchChunk(ctx, cred, chunkStart, chunkEnd, history, report)
		report.Chunks++
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	return history, report, nil
}

// fetchChunk конкурентно выбирает три фида одного чанка
func (f *HistoryFetcher) fetchChunk(ctx context.Context, cred *models.Credential, start, end time.Time, history *RawHistory, report *FetchReport) {
	began := time.Now()

	var mu sync.Mutex
	var wg sync.WaitGroup

	fail := func(feed string, err error) {
		FetchFailures.WithLabelValues(feed).Inc()
		f.log.Warn("feed request failed",
			zap.String("feed", feed),
			zap.Time("chunk_start", start),
			zap.Time("chunk_end", end),
			zap.Error(err))

		mu.Lock()
		report.Failures = append(report.Failures, EndpointFailure{
			Feed:       feed,
			ChunkStart: start,
			ChunkEnd:   end,
			Err:        err.Error(),
		})
		mu.Unlock()
	}

	wg.Add(3)

	go func() {
		defer wg.Done()
		FetchRequests.WithLabelValues(FeedOrders).Inc()
		orders, err := f.client.OrderHistory(ctx, cred, start, end)
		if err != nil {
			fail(FeedOrders, err)
			return
		}
		mu.Lock()
		history.Orders = append(history.Orders, orders...)
		mu.Unlock()
	}()

	go func() {
		defer wg.Done()
		FetchRequests.WithLabelValues(FeedFills).Inc()
		fills, err := f.client.Fills(ctx, cred, start, end)
		if err != nil {
			fail(FeedFills, err)
			return
		}
		mu.Lock()
		history.Fills = append(history.Fills, fills...)
		mu.Unlock()
	}()

	go func() {
		defer wg.Done()
		FetchRequests.WithLabelValues(FeedIncome).Inc()
		income, err := f.client.IncomeHistory(ctx, cred, start, end)
		if err != nil {
			fail(FeedIncome, err)
			return
		}
		mu.Lock()
		history.Income = append(history.Income, income...)
		mu.Unlock()
	}()

	wg.Wait()
	FetchChunkDuration.Observe(time.Since(began).Seconds())
}

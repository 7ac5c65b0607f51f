package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"riskguard/internal/exchange"
	"riskguard/internal/models"
)

// IncomeMatchWindow - максимальное расхождение времени ордера и записи
// журнала PNL, при котором они считаются относящимися к одной сделке
const IncomeMatchWindow = 10 * time.Minute

// ReconcileTrades собирает каноничный список сделок из трёх сырых фидов.
//
// Алгоритм:
//  1. Берутся только ордера со статусом filled, от новых к старым.
//  2. Исполнения группируются по orderId; объём и средневзвешенная цена
//     считаются по исполнениям, при их отсутствии - по полям самого ордера.
//  3. Реализованный PNL ищется в журнале: запись того же символа в окне
//     ±IncomeMatchWindow от времени ордера, ближайшая по времени.
//     Найденная запись потребляется и другим ордерам не достаётся.
//  4. Без записи журнала PNL берётся из фрагментов в исполнениях.
//  5. Сделка с итоговым PNL ровно 0 отбрасывается: ноль означает
//     "не удалось согласовать", а не безубыточную сделку. Лучше
//     пропустить сомнительную сделку, чем выдумать ей нулевой PNL.
//
// Функция чистая и детерминированная: повторный вызов на том же
// снимке фидов даёт идентичный результат, входные слайсы не мутируются.
// Ни одна сделка не синтезируется - каждая строго привязана к
// реальному исполненному ордеру.
func ReconcileTrades(history *RawHistory, limit int) []models.Trade {
	if history == nil || limit == 0 {
		return []models.Trade{}
	}

	orders := filledOrdersNewestFirst(history.Orders)
	fillsByOrder := groupFillsByOrder(history.Fills)
	income := newIncomePool(history.Income)

	trades := make([]models.Trade, 0, len(orders))
	for _, order := range orders {
		if limit > 0 && len(trades) >= limit {
			break
		}

		fills := fillsByOrder[order.OrderID]
		size, avgPrice, leverage, fillPnl := aggregateFills(fills)
		if size == 0 {
			// Исполнений нет - доверяем полям самого ордера
			size = order.ExecutedQty
			avgPrice = order.AvgPrice
		}
		if size <= 0 {
			continue
		}

		pnl, matched := income.consume(order.Symbol, order.CreatedAt)
		if !matched {
			pnl = fillPnl
		}
		if pnl == 0 {
			// Не согласовано: точность важнее полноты
			DroppedZeroPnl.Inc()
			continue
		}

		trades = append(trades, models.Trade{
			ID:          order.OrderID,
			Symbol:      order.Symbol,
			Side:        order.Side,
			AvgPrice:    avgPrice,
			Size:        size,
			Leverage:    leverage,
			RealizedPnl: pnl,
			Timestamp:   order.CreatedAt,
		})
		ReconciledTrades.Inc()
	}

	return trades
}

// filledOrdersNewestFirst отбирает исполненные ордера и сортирует их
// от новых к старым. Вторичный ключ - orderId, чтобы порядок был
// детерминирован при равных временах.
func filledOrdersNewestFirst(orders []exchange.RawOrder) []exchange.RawOrder {
	filled := make([]exchange.RawOrder, 0, len(orders))
	for _, o := range orders {
		if o.Status == exchange.OrderStatusFilled {
			filled = append(filled, o)
		}
	}

	sort.Slice(filled, func(i, j int) bool {
		if !filled[i].CreatedAt.Equal(filled[j].CreatedAt) {
			return filled[i].CreatedAt.After(filled[j].CreatedAt)
		}
		return filled[i].OrderID > filled[j].OrderID
	})

	return filled
}

func groupFillsByOrder(fills []exchange.RawFill) map[string][]exchange.RawFill {
	grouped := make(map[string][]exchange.RawFill, len(fills))
	for _, f := range fills {
		grouped[f.OrderID] = append(grouped[f.OrderID], f)
	}
	return grouped
}

// aggregateFills считает суммарный объём, средневзвешенную цену,
// максимальное плечо и сумму PNL-фрагментов по исполнениям ордера.
// Денежная арифметика на decimal: float64-суммирование цен исполнения
// накапливает ошибку.
func aggregateFills(fills []exchange.RawFill) (size, avgPrice float64, leverage int, pnl float64) {
	if len(fills) == 0 {
		return 0, 0, 0, 0
	}

	totalQty := decimal.Zero
	totalNotional := decimal.Zero
	totalPnl := decimal.Zero

	for _, f := range fills {
		qty := decimal.NewFromFloat(f.Qty)
		price := decimal.NewFromFloat(f.Price)

		totalQty = totalQty.Add(qty)
		totalNotional = totalNotional.Add(qty.Mul(price))
		totalPnl = totalPnl.Add(decimal.NewFromFloat(f.RealizedPnl))

		if f.Leverage > leverage {
			leverage = f.Leverage
		}
	}

	if totalQty.IsZero() {
		return 0, 0, leverage, 0
	}

	size, _ = totalQty.Float64()
	avgPrice, _ = totalNotional.Div(totalQty).Float64()
	pnl, _ = totalPnl.Float64()
	return size, avgPrice, leverage, pnl
}

// incomePool - кандидаты журнала PNL с отметками потребления.
//
// Потребление строго один-к-одному: запись, отданная одному ордеру,
// исключается из поиска для остальных. При нескольких кандидатах в
// окне выбирается ближайший по времени (а не первый встреченный):
// эвристика всё равно неточна при серии ордеров по одному символу,
// но ближайший по времени кандидат ошибается реже.
type incomePool struct {
	entries  []exchange.RawIncomeEntry
	consumed []bool
}

func newIncomePool(entries []exchange.RawIncomeEntry) *incomePool {
	// Только реализованный торговый PNL; копия для детерминированной
	// сортировки без мутации входа
	pnlOnly := make([]exchange.RawIncomeEntry, 0, len(entries))
	for _, e := range entries {
		if e.IncomeType == exchange.IncomeTypeRealizedPnl {
			pnlOnly = append(pnlOnly, e)
		}
	}

	sort.Slice(pnlOnly, func(i, j int) bool {
		return pnlOnly[i].Timestamp.Before(pnlOnly[j].Timestamp)
	})

	return &incomePool{
		entries:  pnlOnly,
		consumed: make([]bool, len(pnlOnly)),
	}
}

// consume ищет ближайшую по времени свободную запись того же символа
// в окне ±IncomeMatchWindow и помечает её потреблённой
func (p *incomePool) consume(symbol string, orderTime time.Time) (float64, bool) {
	best := -1
	var bestDist time.Duration

	for i, e := range p.entries {
		if p.consumed[i] || e.Symbol != symbol {
			continue
		}

		dist := e.Timestamp.Sub(orderTime)
		if dist < 0 {
			dist = -dist
		}
		if dist > IncomeMatchWindow {
			continue
		}

		if best == -1 || dist < bestDist {
			best = i
			bestDist = dist
		}
	}

	if best == -1 {
		return 0, false
	}

	p.consumed[best] = true
	return p.entries[best].Income, true
}

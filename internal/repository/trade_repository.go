package repository

import (
	"database/sql"

	"riskguard/internal/models"
)

// TradeRepository - работа с таблицей trades.
//
// Архив согласованных сделок: биржи отдают историю с ограниченной
// глубиной, архив позволяет показывать статистику дальше этого
// горизонта. Upsert по (connection_id, id) делает повторную запись
// одного прогона безопасной.
type TradeRepository struct {
	db *sql.DB
}

// NewTradeRepository создает новый экземпляр репозитория
func NewTradeRepository(db *sql.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Upsert сохраняет сделки прогона в транзакции.
// Существующие записи перезаписываются: согласование могло уточнить PNL.
func (r *TradeRepository) Upsert(connectionID int, trades []models.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO trades (connection_id, id, symbol, side, avg_price, size, leverage, realized_pnl, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (connection_id, id) DO UPDATE
		SET avg_price = EXCLUDED.avg_price,
		    size = EXCLUDED.size,
		    leverage = EXCLUDED.leverage,
		    realized_pnl = EXCLUDED.realized_pnl`

	for _, trade := range trades {
		if _, err := tx.Exec(query,
			connectionID,
			trade.ID,
			trade.Symbol,
			trade.Side,
			trade.AvgPrice,
			trade.Size,
			trade.Leverage,
			trade.RealizedPnl,
			trade.Timestamp,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetRecent возвращает последние сделки подключения, новые первыми
func (r *TradeRepository) GetRecent(connectionID, limit int) ([]models.Trade, error) {
	query := `
		SELECT id, symbol, side, avg_price, size, leverage, realized_pnl, timestamp
		FROM trades
		WHERE connection_id = $1
		ORDER BY timestamp DESC
		LIMIT $2`

	rows, err := r.db.Query(query, connectionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []models.Trade
	for rows.Next() {
		var t models.Trade
		err := rows.Scan(&t.ID, &t.Symbol, &t.Side, &t.AvgPrice, &t.Size, &t.Leverage, &t.RealizedPnl, &t.Timestamp)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}

	return trades, rows.Err()
}

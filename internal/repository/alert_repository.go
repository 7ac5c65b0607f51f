package repository

import (
	"database/sql"
	"time"

	"riskguard/internal/models"
)

// AlertRepository - работа с таблицей alerts (поведенческие предупреждения)
type AlertRepository struct {
	db *sql.DB
}

// NewAlertRepository создает новый экземпляр репозитория
func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create сохраняет алерт
func (r *AlertRepository) Create(connectionID int, alert *models.Alert) error {
	query := `
		INSERT INTO alerts (connection_id, type, description, severity, recommendation, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	return r.db.QueryRow(query,
		connectionID,
		alert.Type,
		alert.Description,
		alert.Severity,
		alert.Recommendation,
		alert.Timestamp,
	).Scan(&alert.ID)
}

// CreateBatch сохраняет все алерты одного прогона в транзакции
func (r *AlertRepository) CreateBatch(connectionID int, alerts []models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO alerts (connection_id, type, description, severity, recommendation, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)`

	for _, alert := range alerts {
		if _, err := tx.Exec(query,
			connectionID,
			alert.Type,
			alert.Description,
			alert.Severity,
			alert.Recommendation,
			alert.Timestamp,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetRecent возвращает последние алерты подключения, новые первыми
func (r *AlertRepository) GetRecent(connectionID, limit int) ([]*models.Alert, error) {
	query := `
		SELECT id, type, description, severity, recommendation, timestamp
		FROM alerts
		WHERE connection_id = $1
		ORDER BY timestamp DESC
		LIMIT $2`

	rows, err := r.db.Query(query, connectionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		a := &models.Alert{}
		err := rows.Scan(&a.ID, &a.Type, &a.Description, &a.Severity, &a.Recommendation, &a.Timestamp)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}

	return alerts, rows.Err()
}

// DeleteOlderThan удаляет алерты старше отметки
func (r *AlertRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM alerts WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

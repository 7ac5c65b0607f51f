package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	"riskguard/internal/models"
)

// NotificationRepository - работа с таблицей notifications
type NotificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository создает новый экземпляр репозитория
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create сохраняет уведомление. Meta сериализуется в JSON.
func (r *NotificationRepository) Create(connectionID int, notification *models.Notification) error {
	var metaJSON []byte
	if notification.Meta != nil {
		var err error
		metaJSON, err = json.Marshal(notification.Meta)
		if err != nil {
			return err
		}
	}

	query := `
		INSERT INTO notifications (connection_id, timestamp, type, severity, message, meta)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	return r.db.QueryRow(query,
		connectionID,
		notification.Timestamp,
		notification.Type,
		notification.Severity,
		notification.Message,
		metaJSON,
	).Scan(&notification.ID)
}

// GetRecent возвращает последние уведомления подключения, новые первыми
func (r *NotificationRepository) GetRecent(connectionID, limit int) ([]*models.Notification, error) {
	query := `
		SELECT id, timestamp, type, severity, message, meta
		FROM notifications
		WHERE connection_id = $1
		ORDER BY timestamp DESC
		LIMIT $2`

	rows, err := r.db.Query(query, connectionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanNotifications(rows)
}

// GetByTypes возвращает уведомления заданных типов
func (r *NotificationRepository) GetByTypes(connectionID int, types []string, limit int) ([]*models.Notification, error) {
	query := `
		SELECT id, timestamp, type, severity, message, meta
		FROM notifications
		WHERE connection_id = $1 AND type = ANY($2)
		ORDER BY timestamp DESC
		LIMIT $3`

	rows, err := r.db.Query(query, connectionID, pq.Array(types), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanNotifications(rows)
}

// DeleteOlderThan удаляет уведомления старше отметки, возвращает число удаленных
func (r *NotificationRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM notifications WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanNotifications(rows *sql.Rows) ([]*models.Notification, error) {
	var notifications []*models.Notification
	for rows.Next() {
		n := &models.Notification{}
		var metaJSON []byte
		err := rows.Scan(&n.ID, &n.Timestamp, &n.Type, &n.Severity, &n.Message, &metaJSON)
		if err != nil {
			return nil, err
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &n.Meta); err != nil {
				return nil, err
			}
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

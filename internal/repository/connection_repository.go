package repository

import (
	"database/sql"
	"errors"
	"time"

	"riskguard/internal/models"
)

// Ошибки репозитория подключений
var (
	ErrConnectionNotFound = errors.New("connection not found")
)

// ConnectionRepository - работа с таблицей connections.
// API ключи приходят сюда уже зашифрованными, репозиторий с
// криптографией не работает.
type ConnectionRepository struct {
	db *sql.DB
}

// NewConnectionRepository создает новый экземпляр репозитория
func NewConnectionRepository(db *sql.DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

// Create сохраняет новое подключение и возвращает его ID
func (r *ConnectionRepository) Create(conn *models.Connection) error {
	query := `
		INSERT INTO connections (user_id, exchange, account_kind, api_key, secret_key, connected, last_error, updated_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	now := time.Now()
	conn.CreatedAt = now
	conn.UpdatedAt = now

	return r.db.QueryRow(query,
		conn.UserID,
		conn.Exchange,
		conn.AccountKind,
		conn.APIKey,
		conn.SecretKey,
		conn.Connected,
		conn.LastError,
		conn.UpdatedAt,
		conn.CreatedAt,
	).Scan(&conn.ID)
}

// GetByID возвращает подключение по ID
func (r *ConnectionRepository) GetByID(id int) (*models.Connection, error) {
	query := `
		SELECT id, user_id, exchange, account_kind, api_key, secret_key, connected, last_error, updated_at, created_at
		FROM connections
		WHERE id = $1`

	conn := &models.Connection{}
	err := r.db.QueryRow(query, id).Scan(
		&conn.ID,
		&conn.UserID,
		&conn.Exchange,
		&conn.AccountKind,
		&conn.APIKey,
		&conn.SecretKey,
		&conn.Connected,
		&conn.LastError,
		&conn.UpdatedAt,
		&conn.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConnectionNotFound
		}
		return nil, err
	}

	return conn, nil
}

// GetByUser возвращает все подключения пользователя
func (r *ConnectionRepository) GetByUser(userID string) ([]*models.Connection, error) {
	query := `
		SELECT id, user_id, exchange, account_kind, api_key, secret_key, connected, last_error, updated_at, created_at
		FROM connections
		WHERE user_id = $1
		ORDER BY created_at`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var connections []*models.Connection
	for rows.Next() {
		conn := &models.Connection{}
		err := rows.Scan(
			&conn.ID,
			&conn.UserID,
			&conn.Exchange,
			&conn.AccountKind,
			&conn.APIKey,
			&conn.SecretKey,
			&conn.Connected,
			&conn.LastError,
			&conn.UpdatedAt,
			&conn.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		connections = append(connections, conn)
	}

	return connections, rows.Err()
}

// GetConnected возвращает все активные подключения.
// Используется при старте процесса для восстановления мониторов.
func (r *ConnectionRepository) GetConnected() ([]*models.Connection, error) {
	query := `
		SELECT id, user_id, exchange, account_kind, api_key, secret_key, connected, last_error, updated_at, created_at
		FROM connections
		WHERE connected = true
		ORDER BY id`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var connections []*models.Connection
	for rows.Next() {
		conn := &models.Connection{}
		err := rows.Scan(
			&conn.ID,
			&conn.UserID,
			&conn.Exchange,
			&conn.AccountKind,
			&conn.APIKey,
			&conn.SecretKey,
			&conn.Connected,
			&conn.LastError,
			&conn.UpdatedAt,
			&conn.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		connections = append(connections, conn)
	}

	return connections, rows.Err()
}

// SetConnected обновляет флаг активности и текст последней ошибки
func (r *ConnectionRepository) SetConnected(id int, connected bool, lastError string) error {
	query := `
		UPDATE connections
		SET connected = $1, last_error = $2, updated_at = $3
		WHERE id = $4`

	result, err := r.db.Exec(query, connected, lastError, time.Now(), id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrConnectionNotFound
	}

	return nil
}

// Delete удаляет подключение
func (r *ConnectionRepository) Delete(id int) error {
	result, err := r.db.Exec(`DELETE FROM connections WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrConnectionNotFound
	}

	return nil
}

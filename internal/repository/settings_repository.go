package repository

import (
	"database/sql"
	"errors"
	"time"

	"riskguard/internal/models"
)

// Ошибки репозитория настроек риска
var (
	ErrSettingsNotFound = errors.New("risk settings not found")
)

// SettingsRepository - работа с таблицей risk_settings.
// Хранит выбранный тир по пользователю; одна запись на пользователя.
type SettingsRepository struct {
	db *sql.DB
}

// NewSettingsRepository создает новый экземпляр репозитория
func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get возвращает настройки пользователя.
// Если записи нет, создает ее с тиром Conservative.
func (r *SettingsRepository) Get(userID string) (*models.RiskSettings, error) {
	query := `
		SELECT user_id, tier, updated_at
		FROM risk_settings
		WHERE user_id = $1`

	settings := &models.RiskSettings{}
	err := r.db.QueryRow(query, userID).Scan(
		&settings.UserID,
		&settings.Tier,
		&settings.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r.createDefault(userID)
		}
		return nil, err
	}

	return settings, nil
}

// SetTier сохраняет выбранный тир пользователя
func (r *SettingsRepository) SetTier(userID, tier string) error {
	query := `
		UPDATE risk_settings
		SET tier = $1, updated_at = $2
		WHERE user_id = $3`

	result, err := r.db.Exec(query, tier, time.Now(), userID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrSettingsNotFound
	}

	return nil
}

// createDefault создает запись настроек с самым строгим тиром
func (r *SettingsRepository) createDefault(userID string) (*models.RiskSettings, error) {
	settings := &models.RiskSettings{
		UserID:    userID,
		Tier:      models.TierConservative,
		UpdatedAt: time.Now(),
	}

	query := `
		INSERT INTO risk_settings (user_id, tier, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO NOTHING`

	_, err := r.db.Exec(query, settings.UserID, settings.Tier, settings.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return settings, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-idcard-api/internal/models"
)

// SettingsRepository persists per-user preferences.
type SettingsRepository struct {
	db *sqlx.DB
}

func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns sql.ErrNoRows when the user never saved preferences.
func (r *SettingsRepository) Get(ctx context.Context, userID string) (*models.UserSettings, error) {
	const query = `SELECT user_id, theme, default_card_variant, updated_at FROM user_settings WHERE user_id = $1`
	var settings models.UserSettings
	if err := r.db.GetContext(ctx, &settings, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get user settings: %w", err)
	}
	return &settings, nil
}

func (r *SettingsRepository) Upsert(ctx context.Context, settings *models.UserSettings) error {
	settings.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO user_settings (user_id, theme, default_card_variant, updated_at)
VALUES (:user_id, :theme, :default_card_variant, :updated_at)
ON CONFLICT (user_id) DO UPDATE SET theme = EXCLUDED.theme, default_card_variant = EXCLUDED.default_card_variant, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, settings); err != nil {
		return fmt.Errorf("upsert user settings: %w", err)
	}
	return nil
}

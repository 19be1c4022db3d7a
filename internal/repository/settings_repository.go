package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/asistmx/checador-api/internal/models"
)

// SettingsRepository persists the named engine thresholds.
type SettingsRepository struct {
	db *sqlx.DB
}

// NewSettingsRepository constructs the repository.
func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// ListAll returns every stored setting row.
func (r *SettingsRepository) ListAll(ctx context.Context) ([]models.EngineSetting, error) {
	const query = `SELECT key, value, description, updated_by, updated_at FROM engine_settings ORDER BY key`
	var rows []models.EngineSetting
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	return rows, nil
}

// Upsert stores one setting value.
func (r *SettingsRepository) Upsert(ctx context.Context, key, value, updatedBy string) error {
	now := time.Now().UTC()
	const query = `INSERT INTO engine_settings (key, value, updated_by, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, key, value, updatedBy, now); err != nil {
		return fmt.Errorf("upsert setting %s: %w", key, err)
	}
	return nil
}

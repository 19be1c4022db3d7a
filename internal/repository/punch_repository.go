package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/asistmx/checador-api/internal/models"
)

// PunchRepository reads the append-only raw punch store. The engine never
// writes to it.
type PunchRepository struct {
	db *sqlx.DB
}

// NewPunchRepository constructs the repository.
func NewPunchRepository(db *sqlx.DB) *PunchRepository {
	return &PunchRepository{db: db}
}

// ListWindow returns all punches with timestamps inside [from, to) ordered by
// subject then time.
func (r *PunchRepository) ListWindow(ctx context.Context, from, to time.Time) ([]models.RawPunch, error) {
	const query = `SELECT id, subject_id, timestamp, terminal_id, auth_method, created_at
FROM raw_punches
WHERE timestamp >= $1 AND timestamp < $2
ORDER BY subject_id ASC, timestamp ASC`
	var punches []models.RawPunch
	if err := r.db.SelectContext(ctx, &punches, query, from, to); err != nil {
		return nil, fmt.Errorf("list punch window: %w", err)
	}
	return punches, nil
}

// ListBySubjectWindow returns one subject's punches inside [from, to) in
// chronological order.
func (r *PunchRepository) ListBySubjectWindow(ctx context.Context, subjectID string, from, to time.Time) ([]models.RawPunch, error) {
	const query = `SELECT id, subject_id, timestamp, terminal_id, auth_method, created_at
FROM raw_punches
WHERE subject_id = $1 AND timestamp >= $2 AND timestamp < $3
ORDER BY timestamp ASC`
	var punches []models.RawPunch
	if err := r.db.SelectContext(ctx, &punches, query, subjectID, from, to); err != nil {
		return nil, fmt.Errorf("list subject punches: %w", err)
	}
	return punches, nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/asistmx/checador-api/internal/models"
)

// AuthorizationRepository persists supervisor pre-approvals for overtime,
// night work and permissions.
type AuthorizationRepository struct {
	db *sqlx.DB
}

// NewAuthorizationRepository constructs the repository.
func NewAuthorizationRepository(db *sqlx.DB) *AuthorizationRepository {
	return &AuthorizationRepository{db: db}
}

// Create stores a new authorization in pending state.
func (r *AuthorizationRepository) Create(ctx context.Context, auth *models.Authorization) error {
	now := time.Now().UTC()
	if auth.ID == "" {
		auth.ID = uuid.NewString()
	}
	if auth.Status == "" {
		auth.Status = models.AuthorizationStatusPending
	}
	auth.CreatedAt = now
	auth.UpdatedAt = now
	const query = `INSERT INTO authorizations
(id, employee_id, date, type, status, hours, reason, approved_by, created_at, updated_at)
VALUES (:id, :employee_id, :date, :type, :status, :hours, :reason, :approved_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, auth); err != nil {
		return fmt.Errorf("insert authorization: %w", err)
	}
	return nil
}

// GetByID returns one authorization.
func (r *AuthorizationRepository) GetByID(ctx context.Context, id string) (*models.Authorization, error) {
	const query = `SELECT * FROM authorizations WHERE id = $1 LIMIT 1`
	var auth models.Authorization
	if err := r.db.GetContext(ctx, &auth, query, id); err != nil {
		return nil, err
	}
	return &auth, nil
}

// ListForDate returns all authorizations covering an employee on a work date.
// The engine filters by Counts() itself so pending rows can still surface in
// review screens.
func (r *AuthorizationRepository) ListForDate(ctx context.Context, employeeID string, workDate time.Time) ([]models.Authorization, error) {
	const query = `SELECT * FROM authorizations WHERE employee_id = $1 AND date = $2 ORDER BY created_at`
	var rows []models.Authorization
	if err := r.db.SelectContext(ctx, &rows, query, employeeID, workDate); err != nil {
		return nil, fmt.Errorf("list authorizations: %w", err)
	}
	return rows, nil
}

// ListForRange returns authorizations for an employee inside a date range,
// used by payroll aggregation.
func (r *AuthorizationRepository) ListForRange(ctx context.Context, employeeID string, from, to time.Time) ([]models.Authorization, error) {
	const query = `SELECT * FROM authorizations WHERE employee_id = $1 AND date BETWEEN $2 AND $3 ORDER BY date`
	var rows []models.Authorization
	if err := r.db.SelectContext(ctx, &rows, query, employeeID, from, to); err != nil {
		return nil, fmt.Errorf("list authorizations range: %w", err)
	}
	return rows, nil
}

// UpdateStatus moves an authorization through its approval lifecycle.
func (r *AuthorizationRepository) UpdateStatus(ctx context.Context, id string, status models.AuthorizationStatus, approvedBy string) error {
	now := time.Now().UTC()
	const query = `UPDATE authorizations SET status = $2, approved_by = $3, updated_at = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, approvedBy, now)
	if err != nil {
		return fmt.Errorf("update authorization status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("authorization %s not found", id)
	}
	return nil
}

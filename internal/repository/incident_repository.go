package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/asistmx/checador-api/internal/models"
)

// IncidentRepository persists leave and absence events.
type IncidentRepository struct {
	db *sqlx.DB
}

// NewIncidentRepository constructs the repository.
func NewIncidentRepository(db *sqlx.DB) *IncidentRepository {
	return &IncidentRepository{db: db}
}

// Create stores a new incident.
func (r *IncidentRepository) Create(ctx context.Context, incident *models.Incident) error {
	now := time.Now().UTC()
	if incident.ID == "" {
		incident.ID = uuid.NewString()
	}
	if incident.Status == "" {
		incident.Status = models.IncidentStatusPending
	}
	incident.CreatedAt = now
	incident.UpdatedAt = now
	const query = `INSERT INTO incidents
(id, employee_id, category, start_date, end_date, paid, deducts_vacation, status, notes, created_at, updated_at)
VALUES (:id, :employee_id, :category, :start_date, :end_date, :paid, :deducts_vacation, :status, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, incident); err != nil {
		return fmt.Errorf("insert incident: %w", err)
	}
	return nil
}

// GetByID returns one incident.
func (r *IncidentRepository) GetByID(ctx context.Context, id string) (*models.Incident, error) {
	const query = `SELECT * FROM incidents WHERE id = $1 LIMIT 1`
	var incident models.Incident
	if err := r.db.GetContext(ctx, &incident, query, id); err != nil {
		return nil, err
	}
	return &incident, nil
}

// ListApprovedForDate returns approved incidents covering an employee on one
// date. The workday engine uses these to map statuses and permission hours.
func (r *IncidentRepository) ListApprovedForDate(ctx context.Context, employeeID string, workDate time.Time) ([]models.Incident, error) {
	const query = `SELECT * FROM incidents
WHERE employee_id = $1 AND status = $2 AND start_date <= $3 AND end_date >= $3
ORDER BY start_date`
	var rows []models.Incident
	if err := r.db.SelectContext(ctx, &rows, query, employeeID, models.IncidentStatusApproved, workDate); err != nil {
		return nil, fmt.Errorf("list incidents for date: %w", err)
	}
	return rows, nil
}

// ListApprovedOverlapping returns approved incidents whose range intersects
// [from, to], used by payroll aggregation with day proration.
func (r *IncidentRepository) ListApprovedOverlapping(ctx context.Context, employeeID string, from, to time.Time) ([]models.Incident, error) {
	const query = `SELECT * FROM incidents
WHERE employee_id = $1 AND status = $2 AND start_date <= $4 AND end_date >= $3
ORDER BY start_date`
	var rows []models.Incident
	if err := r.db.SelectContext(ctx, &rows, query, employeeID, models.IncidentStatusApproved, from, to); err != nil {
		return nil, fmt.Errorf("list overlapping incidents: %w", err)
	}
	return rows, nil
}

// UpdateStatus transitions an incident's approval status.
func (r *IncidentRepository) UpdateStatus(ctx context.Context, id string, status models.IncidentStatus) error {
	now := time.Now().UTC()
	const query = `UPDATE incidents SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, now)
	if err != nil {
		return fmt.Errorf("update incident status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("incident %s not found", id)
	}
	return nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/asistmx/checador-api/internal/models"
)

// EmployeeRepository reads the employee master records the engine computes
// against. Employee administration lives in the HR system upstream.
type EmployeeRepository struct {
	db *sqlx.DB
}

// NewEmployeeRepository constructs the repository.
func NewEmployeeRepository(db *sqlx.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

// GetByID returns one employee.
func (r *EmployeeRepository) GetByID(ctx context.Context, id string) (*models.Employee, error) {
	const query = `SELECT * FROM employees WHERE id = $1 LIMIT 1`
	var emp models.Employee
	if err := r.db.GetContext(ctx, &emp, query, id); err != nil {
		return nil, err
	}
	return &emp, nil
}

// ListActive returns all active employees ordered by code.
func (r *EmployeeRepository) ListActive(ctx context.Context) ([]models.Employee, error) {
	const query = `SELECT * FROM employees WHERE active = TRUE ORDER BY code`
	var rows []models.Employee
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list active employees: %w", err)
	}
	return rows, nil
}

// HolidayRepository reads the holiday calendar.
type HolidayRepository struct {
	db *sqlx.DB
}

// NewHolidayRepository constructs the repository.
func NewHolidayRepository(db *sqlx.DB) *HolidayRepository {
	return &HolidayRepository{db: db}
}

// ListRange returns holidays inside [from, to] inclusive.
func (r *HolidayRepository) ListRange(ctx context.Context, from, to time.Time) ([]models.Holiday, error) {
	const query = `SELECT date, name FROM holidays WHERE date BETWEEN $1 AND $2 ORDER BY date`
	var rows []models.Holiday
	if err := r.db.SelectContext(ctx, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("list holidays: %w", err)
	}
	return rows, nil
}

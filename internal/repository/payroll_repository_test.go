package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asistmx/checador-api/internal/models"
)

func TestPayrollRepositoryOverlapExists(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPayrollRepository(db)

	start := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, time.March, 16, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(start, end, "").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.OverlapExists(context.Background(), start, end, "")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPayrollRepositoryCreatePeriodDefaultsToDraft(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPayrollRepository(db)

	mock.ExpectExec("INSERT INTO payroll_periods").
		WillReturnResult(sqlmock.NewResult(0, 1))

	period := &models.PayrollPeriod{
		Name:      "per-2025-11",
		Type:      models.PayrollPeriodWeekly,
		StartDate: time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, time.March, 16, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.CreatePeriod(context.Background(), period))
	assert.NotEmpty(t, period.ID)
	assert.Equal(t, models.PayrollPeriodDraft, period.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPayrollRepositoryTransitionStatusIsCompareAndSet(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPayrollRepository(db)

	mock.ExpectExec("UPDATE payroll_periods SET status").
		WithArgs("per-1", models.PayrollPeriodDraft, models.PayrollPeriodCalculating, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	won, err := repo.TransitionStatus(context.Background(), "per-1", models.PayrollPeriodDraft, models.PayrollPeriodCalculating, "")
	require.NoError(t, err)
	assert.True(t, won)

	// A concurrent caller sees the status already moved and loses the CAS.
	mock.ExpectExec("UPDATE payroll_periods SET status").
		WithArgs("per-1", models.PayrollPeriodDraft, models.PayrollPeriodCalculating, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	won, err = repo.TransitionStatus(context.Background(), "per-1", models.PayrollPeriodDraft, models.PayrollPeriodCalculating, "")
	require.NoError(t, err)
	assert.False(t, won)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPayrollRepositoryTransitionToApprovedStampsActor(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPayrollRepository(db)

	mock.ExpectExec("UPDATE payroll_periods SET status .* approved_by").
		WithArgs("per-1", models.PayrollPeriodReview, models.PayrollPeriodApproved, sqlmock.AnyArg(), "hr@example.com").
		WillReturnResult(sqlmock.NewResult(0, 1))

	won, err := repo.TransitionStatus(context.Background(), "per-1", models.PayrollPeriodReview, models.PayrollPeriodApproved, "hr@example.com")
	require.NoError(t, err)
	assert.True(t, won)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPayrollRepositoryUpsertEntryAssignsID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPayrollRepository(db)

	mock.ExpectExec("INSERT INTO payroll_entries").
		WillReturnResult(sqlmock.NewResult(0, 1))

	entry := &models.PayrollEntry{
		PeriodID:   "per-1",
		EmployeeID: "emp-1",
		GrossPay:   1600,
		NetPay:     1600,
	}
	require.NoError(t, repo.UpsertEntry(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

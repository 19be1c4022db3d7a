package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asistmx/checador-api/internal/dto"
	"github.com/asistmx/checador-api/internal/middleware"
	"github.com/asistmx/checador-api/internal/models"
	"github.com/asistmx/checador-api/internal/service"
	appErrors "github.com/asistmx/checador-api/pkg/errors"
)

type payrollServiceMock struct {
	createErr    error
	calculateErr error
	paidActor    string
}

func (m *payrollServiceMock) CreatePeriod(ctx context.Context, period *models.PayrollPeriod) error {
	if m.createErr != nil {
		return m.createErr
	}
	period.ID = "per-1"
	period.Status = models.PayrollPeriodDraft
	return nil
}

func (m *payrollServiceMock) GetPeriod(ctx context.Context, id string) (*models.PayrollPeriod, error) {
	return &models.PayrollPeriod{ID: id}, nil
}

func (m *payrollServiceMock) ListPeriods(ctx context.Context, page, pageSize int) ([]models.PayrollPeriod, int, error) {
	return nil, 0, nil
}

func (m *payrollServiceMock) Calculate(ctx context.Context, periodID string) error {
	return m.calculateErr
}

func (m *payrollServiceMock) Approve(ctx context.Context, periodID, actor string) error {
	return nil
}

func (m *payrollServiceMock) MarkPaid(ctx context.Context, periodID, actor string) error {
	m.paidActor = actor
	return nil
}

func (m *payrollServiceMock) ListEntries(ctx context.Context, periodID string) ([]models.PayrollEntryDetail, error) {
	return nil, nil
}

type payrollExportServiceMock struct{}

func (m *payrollExportServiceMock) ExportPayrollPeriod(ctx context.Context, periodID string, format service.ExportFormat) (*service.ExportResult, error) {
	return &service.ExportResult{FileName: "payroll.csv"}, nil
}

func TestPayrollHandlerCreatePeriodRejectsUnknownType(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewPayrollHandler(&payrollServiceMock{}, &payrollExportServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(dto.CreatePayrollPeriodRequest{
		Name:      "per-2025-11",
		Type:      "daily",
		StartDate: "2025-03-10",
		EndDate:   "2025-03-16",
	})
	req, _ := http.NewRequest(http.MethodPost, "/payroll/periods", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.CreatePeriod(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPayrollHandlerCreatePeriodOverlapConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewPayrollHandler(&payrollServiceMock{createErr: appErrors.ErrPeriodOverlap}, &payrollExportServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(dto.CreatePayrollPeriodRequest{
		Name:      "per-2025-11",
		Type:      "weekly",
		StartDate: "2025-03-10",
		EndDate:   "2025-03-16",
	})
	req, _ := http.NewRequest(http.MethodPost, "/payroll/periods", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.CreatePeriod(c)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPayrollHandlerCreatePeriodReturnsDraft(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewPayrollHandler(&payrollServiceMock{}, &payrollExportServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(dto.CreatePayrollPeriodRequest{
		Name:      "per-2025-11",
		Type:      "weekly",
		StartDate: "2025-03-10",
		EndDate:   "2025-03-16",
	})
	req, _ := http.NewRequest(http.MethodPost, "/payroll/periods", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.CreatePeriod(c)
	require.Equal(t, http.StatusCreated, w.Code)

	var envelope struct {
		Data models.PayrollPeriod `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, models.PayrollPeriodDraft, envelope.Data.Status)
}

func TestPayrollHandlerCalculateBusy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewPayrollHandler(&payrollServiceMock{calculateErr: appErrors.ErrCalculationBusy}, &payrollExportServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/payroll/periods/per-1/calculate", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "per-1"}}

	handler.Calculate(c)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPayrollHandlerMarkPaidStampsActor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &payrollServiceMock{}
	handler := NewPayrollHandler(svc, &payrollExportServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPut, "/payroll/periods/per-1/pay", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "per-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Email: "admin@example.com", Role: models.RoleAdmin})

	handler.MarkPaid(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "admin@example.com", svc.paidActor)
}

func TestPayrollHandlerApproveRequiresClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewPayrollHandler(&payrollServiceMock{}, &payrollExportServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPut, "/payroll/periods/per-1/approve", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "per-1"}}

	handler.Approve(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/asistmx/checador-api/internal/models"
)

type failingSettingsRepo struct{}

func (f *failingSettingsRepo) ListAll(ctx context.Context) ([]models.EngineSetting, error) {
	return nil, errors.New("store down")
}

func (f *failingSettingsRepo) Upsert(ctx context.Context, key, value, updatedBy string) error {
	return errors.New("store down")
}

func TestSnapshotDefaultsWithEmptyStore(t *testing.T) {
	svc := NewSettingsService(&fakeSettingsRepo{}, nil, time.Minute, zap.NewNop())

	settings := svc.Snapshot(context.Background())
	assert.Equal(t, models.DefaultEngineSettings(), settings)
}

func TestSnapshotOverlaysStoredRows(t *testing.T) {
	repo := &fakeSettingsRepo{rows: []models.EngineSetting{
		{Key: models.SettingLateTolerance, Value: "15"},
		{Key: models.SettingOvertimeMultiplier, Value: "1.5"},
	}}
	svc := NewSettingsService(repo, nil, time.Minute, zap.NewNop())

	settings := svc.Snapshot(context.Background())
	assert.Equal(t, 15, settings.LateToleranceMinutes)
	assert.Equal(t, 1.5, settings.OvertimeMultiplier)
	// Untouched keys keep their defaults.
	assert.Equal(t, 6, settings.LateToAbsenceCount)
}

func TestSnapshotIgnoresUnparsableRows(t *testing.T) {
	repo := &fakeSettingsRepo{rows: []models.EngineSetting{
		{Key: models.SettingLateTolerance, Value: "not-a-number"},
	}}
	svc := NewSettingsService(repo, nil, time.Minute, zap.NewNop())

	settings := svc.Snapshot(context.Background())
	assert.Equal(t, 10, settings.LateToleranceMinutes)
}

func TestSnapshotFallsBackToDefaultsOnLoadFailure(t *testing.T) {
	svc := NewSettingsService(&failingSettingsRepo{}, nil, time.Minute, zap.NewNop())

	settings := svc.Snapshot(context.Background())
	assert.Equal(t, models.DefaultEngineSettings(), settings)
}

func TestUpdateRejectsNonNumericValue(t *testing.T) {
	repo := &fakeSettingsRepo{}
	svc := NewSettingsService(repo, nil, time.Minute, zap.NewNop())

	err := svc.Update(context.Background(), models.SettingLateTolerance, "soon", "admin@example.com")
	require.Error(t, err)
	assert.Empty(t, repo.rows)
}

func TestUpdateStoresNumericValue(t *testing.T) {
	repo := &fakeSettingsRepo{}
	svc := NewSettingsService(repo, nil, time.Minute, zap.NewNop())

	require.NoError(t, svc.Update(context.Background(), models.SettingLateTolerance, "12", "admin@example.com"))
	require.Len(t, repo.rows, 1)
	assert.Equal(t, "12", repo.rows[0].Value)
}

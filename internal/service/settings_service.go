package service

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/asistmx/checador-api/internal/models"
	appErrors "github.com/asistmx/checador-api/pkg/errors"
)

const settingsCacheKey = "settings:engine:v1"

type settingsRepository interface {
	ListAll(ctx context.Context) ([]models.EngineSetting, error)
	Upsert(ctx context.Context, key, value, updatedBy string) error
}

// SettingsService resolves the engine threshold snapshot. Each calculation
// run receives one resolved snapshot so the run is reproducible from its
// inputs alone.
type SettingsService struct {
	repo     settingsRepository
	cache    *CacheService
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewSettingsService constructs the service.
func NewSettingsService(repo settingsRepository, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *SettingsService {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &SettingsService{repo: repo, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// Snapshot returns the resolved settings, defaults overlaid with stored rows.
// A failed load falls back to defaults rather than aborting the caller's run.
func (s *SettingsService) Snapshot(ctx context.Context) models.EngineSettings {
	var cached models.EngineSettings
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, settingsCacheKey, &cached); err == nil && hit {
			return cached
		}
	}

	settings := models.DefaultEngineSettings()
	rows, err := s.repo.ListAll(ctx)
	if err != nil {
		s.logger.Warn("settings load failed, using defaults", zap.Error(err))
		return settings
	}
	for _, row := range rows {
		settings.Apply(row)
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, settingsCacheKey, settings, s.cacheTTL)
	}
	return settings
}

// List returns the stored rows for administration screens.
func (s *SettingsService) List(ctx context.Context) ([]models.EngineSetting, error) {
	rows, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, "SETTINGS_LIST_FAILED", http.StatusInternalServerError, "could not load settings")
	}
	return rows, nil
}

// Update stores one threshold and invalidates the cached snapshot. Numeric
// keys are validated here so a typo cannot silently fall back to defaults.
func (s *SettingsService) Update(ctx context.Context, key, value, updatedBy string) error {
	if _, err := strconv.ParseFloat(value, 64); err != nil {
		return appErrors.New("INVALID_SETTING_VALUE", http.StatusBadRequest, fmt.Sprintf("setting %s requires a numeric value", key))
	}
	if err := s.repo.Upsert(ctx, key, value, updatedBy); err != nil {
		return appErrors.Wrap(err, "SETTINGS_UPDATE_FAILED", http.StatusInternalServerError, "could not store setting")
	}
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, settingsCacheKey)
	}
	s.logger.Info("engine setting updated",
		zap.String("key", key),
		zap.String("value", value),
		zap.String("updated_by", updatedBy))
	return nil
}

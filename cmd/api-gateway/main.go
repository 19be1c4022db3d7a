package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/asistmx/checador-api/api/swagger"
	"github.com/asistmx/checador-api/internal/handler"
	"github.com/asistmx/checador-api/internal/middleware"
	"github.com/asistmx/checador-api/internal/models"
	"github.com/asistmx/checador-api/internal/repository"
	"github.com/asistmx/checador-api/internal/service"
	"github.com/asistmx/checador-api/pkg/cache"
	"github.com/asistmx/checador-api/pkg/config"
	"github.com/asistmx/checador-api/pkg/database"
	"github.com/asistmx/checador-api/pkg/logger"
	corsmiddleware "github.com/asistmx/checador-api/pkg/middleware/cors"
	reqidmiddleware "github.com/asistmx/checador-api/pkg/middleware/requestid"
	"github.com/asistmx/checador-api/pkg/storage"
)

// @title Checador API
// @version 1.0.0
// @description Attendance reconciliation and payroll computation engine
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	metricsSvc := service.NewMetricsService()

	// Redis is optional. Without it the service runs with caching disabled
	// and settings are read from the database on every snapshot.
	var cacheSvc *service.CacheService
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		cacheSvc = service.NewCacheService(nil, metricsSvc, cfg.Settings.CacheTTL, logr, false)
	} else {
		defer redisClient.Close()
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Settings.CacheTTL, logr, true)
	}

	userRepo := repository.NewUserRepository(db)
	punchRepo := repository.NewPunchRepository(db)
	employeeRepo := repository.NewEmployeeRepository(db)
	holidayRepo := repository.NewHolidayRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	authorizationRepo := repository.NewAuthorizationRepository(db)
	incidentRepo := repository.NewIncidentRepository(db)
	lateRepo := repository.NewLateAccumulationRepository(db)
	anomalyRepo := repository.NewAnomalyRepository(db)
	payrollRepo := repository.NewPayrollRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	syncRepo := repository.NewSyncRepository(db)

	validate := validator.New()
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            "checador-api",
	})
	settingsSvc := service.NewSettingsService(settingsRepo, cacheSvc, cfg.Settings.CacheTTL, logr)
	scheduleSvc := service.NewScheduleService(scheduleRepo, logr)
	reconcileSvc := service.NewReconcileService(logr)
	workdaySvc := service.NewWorkdayService(lateRepo, incidentRepo, logr)
	anomalySvc := service.NewAnomalyService(anomalyRepo, attendanceRepo, metricsSvc, logr)
	syncSvc := service.NewSyncService(
		punchRepo, employeeRepo, holidayRepo, attendanceRepo, syncRepo,
		authorizationRepo, incidentRepo,
		reconcileSvc, workdaySvc, anomalySvc, scheduleSvc, settingsSvc,
		metricsSvc, logr,
		service.SyncConfig{
			Interval:         cfg.Sync.Interval,
			WatermarkOverlap: cfg.Sync.WatermarkOverlap,
			Concurrency:      cfg.Sync.WorkerConcurrency,
			Retries:          cfg.Sync.WorkerRetries,
			RunTimeout:       cfg.Sync.RunTimeout,
		},
	)
	payrollSvc := service.NewPayrollService(
		payrollRepo, attendanceRepo, incidentRepo, authorizationRepo, lateRepo,
		employeeRepo, holidayRepo, settingsSvc, metricsSvc, logr,
		service.PayrollConfig{
			Concurrency: cfg.Payroll.WorkerConcurrency,
			RunTimeout:  cfg.Payroll.RunTimeout,
		},
	)
	attendanceSvc := service.NewAttendanceService(
		attendanceRepo, employeeRepo, authorizationRepo, incidentRepo,
		workdaySvc, anomalySvc, scheduleSvc, settingsSvc, logr,
	)

	store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("failed to open export storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(payrollSvc, attendanceSvc, store, signer, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc, exportSvc)
	anomalyHandler := handler.NewAnomalyHandler(anomalySvc)
	syncHandler := handler.NewSyncHandler(syncSvc)
	payrollHandler := handler.NewPayrollHandler(payrollSvc, exportSvc)
	settingsHandler := handler.NewSettingsHandler(settingsSvc)
	exportHandler := handler.NewExportHandler(exportSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r, cfg, authSvc, authHandler, attendanceHandler, anomalyHandler,
		syncHandler, payrollHandler, settingsHandler, exportHandler)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	syncSvc.Start(ctx)
	defer syncSvc.Stop()

	go func() {
		ticker := time.NewTicker(6 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				exportSvc.CleanupExpired(cfg.Exports.SignedURLTTL)
			}
		}
	}()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

func registerRoutes(
	r *gin.Engine,
	cfg *config.Config,
	authSvc *service.AuthService,
	authHandler *handler.AuthHandler,
	attendanceHandler *handler.AttendanceHandler,
	anomalyHandler *handler.AnomalyHandler,
	syncHandler *handler.SyncHandler,
	payrollHandler *handler.PayrollHandler,
	settingsHandler *handler.SettingsHandler,
	exportHandler *handler.ExportHandler,
) {
	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)

	// Downloads authenticate through the signed token in the query string.
	api.GET("/exports/download", exportHandler.Download)

	secured := api.Group("")
	secured.Use(middleware.JWT(authSvc))

	anyRole := middleware.RBAC(models.RoleAdmin, models.RoleHR, models.RoleSupervisor, models.RoleViewer)
	hrUp := middleware.RBAC(models.RoleAdmin, models.RoleHR)
	supervisorUp := middleware.RBAC(models.RoleAdmin, models.RoleHR, models.RoleSupervisor)
	adminOnly := middleware.RBAC(models.RoleAdmin)

	attendance := secured.Group("/attendance")
	{
		attendance.GET("", anyRole, attendanceHandler.List)
		attendance.POST("/export", supervisorUp, attendanceHandler.Export)
		attendance.GET("/:id", anyRole, attendanceHandler.Get)
		attendance.PUT("/:id/correct", hrUp, attendanceHandler.Correct)
	}

	anomalies := secured.Group("/anomalies")
	{
		anomalies.GET("", anyRole, anomalyHandler.List)
		anomalies.PUT("/:id/resolve", supervisorUp, anomalyHandler.Resolve)
	}

	sync := secured.Group("/sync")
	{
		sync.POST("/runs", hrUp, syncHandler.Trigger)
		sync.GET("/runs", supervisorUp, syncHandler.ListRuns)
		sync.GET("/runs/:id", supervisorUp, syncHandler.GetRun)
	}

	payroll := secured.Group("/payroll")
	{
		payroll.POST("/periods", hrUp, payrollHandler.CreatePeriod)
		payroll.GET("/periods", supervisorUp, payrollHandler.ListPeriods)
		payroll.GET("/periods/:id", supervisorUp, payrollHandler.GetPeriod)
		payroll.POST("/periods/:id/calculate", hrUp, payrollHandler.Calculate)
		payroll.PUT("/periods/:id/approve", hrUp, payrollHandler.Approve)
		payroll.PUT("/periods/:id/pay", adminOnly, payrollHandler.MarkPaid)
		payroll.GET("/periods/:id/entries", supervisorUp, payrollHandler.ListEntries)
		payroll.POST("/periods/:id/export", supervisorUp, payrollHandler.Export)
	}

	settings := secured.Group("/settings")
	{
		settings.GET("", hrUp, settingsHandler.List)
		settings.GET("/snapshot", hrUp, settingsHandler.Snapshot)
		settings.PUT("/:key", adminOnly, settingsHandler.Update)
	}
}

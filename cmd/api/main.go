package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/ChomynNicolas/chomyn-odonto-project-sub004/api/swagger"
	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/dto"
	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/handler"
	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/middleware"
	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/models"
	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/repository"
	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/service"
	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/pkg/cache"
	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/pkg/config"
	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/pkg/database"
	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/pkg/logger"
	corsmiddleware "github.com/ChomynNicolas/chomyn-odonto-project-sub004/pkg/middleware/cors"
	reqidmiddleware "github.com/ChomynNicolas/chomyn-odonto-project-sub004/pkg/middleware/requestid"
	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/pkg/storage"
)

// @title Odonto Records Audit API
// @version 1.0.0
// @description Audit, versioning and review workflow engine for clinical records
// @BasePath /
// @schemes http

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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	recordRepo := repository.NewRecordRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	versionRepo := repository.NewVersionRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	txManager := repository.NewTxManager(db)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(cfg.JWT.Secret, logr)
	auditSvc := service.NewAuditService(auditRepo, txManager, models.SanitizationLevel(cfg.Audit.SanitizationLevel), logr,
		service.WithAuditMetrics(metricsSvc))
	statusSvc := service.NewStatusService(recordRepo, reviewRepo, cfg.Records.ValidityDays, logr,
		service.WithStatusCache(redisClient, cfg.Records.StatusCacheTTL),
		service.WithStatusMetrics(metricsSvc))
	reviewSvc := service.NewReviewService(reviewRepo, recordRepo, auditRepo, txManager, statusSvc, logr,
		service.WithReviewMetrics(metricsSvc))
	versionSvc := service.NewVersionService(versionRepo, recordRepo, auditSvc, reviewSvc, txManager, statusSvc, logr)
	recordSvc := service.NewRecordService(recordRepo, versionRepo, auditSvc, auditSvc, reviewSvc, txManager, statusSvc, logr)
	exportSvc := service.NewExportService(recordRepo, auditSvc, auditSvc, txManager, exportStore, signer, logr)

	recordHandler := handler.NewRecordHandler(recordSvc, statusSvc)
	versionHandler := handler.NewVersionHandler(versionSvc)
	reviewHandler := handler.NewReviewHandler(reviewSvc)
	auditHandler := handler.NewAuditHandler(auditSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	dto.RegisterValidations()

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
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Scrape)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	authed := api.Group("", middleware.JWT(authSvc))

	records := authed.Group("/records")
	records.POST("", recordHandler.Create)
	records.GET("/:id", recordHandler.Get)
	records.PUT("/:id", recordHandler.Update)
	records.DELETE("/:id", recordHandler.Delete)
	records.GET("/:id/status", recordHandler.Status)
	records.GET("/:id/versions", versionHandler.List)
	records.POST("/:id/restore", versionHandler.Restore)
	records.POST("/:id/export", exportHandler.Export)
	records.GET("/:id/print", exportHandler.Print)

	patients := authed.Group("/patients")
	patients.GET("/:patientId/record", recordHandler.GetByPatient)
	patients.GET("/:patientId/record/status", recordHandler.StatusByPatient)

	reviews := authed.Group("/reviews", middleware.RequireRole(string(models.RoleClinician), string(models.RoleAdmin)))
	reviews.GET("", reviewHandler.List)
	reviews.POST("/:id/decision", reviewHandler.Decide)
	reviews.POST("/batch", reviewHandler.BatchDecide)

	audit := authed.Group("/audit")
	audit.GET("", auditHandler.List)
	audit.GET("/:id", auditHandler.Get)
	audit.GET("/:id/diffs", auditHandler.Diffs)

	api.GET("/exports/download", exportHandler.Download)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

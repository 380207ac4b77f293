package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/campusops/enrollment-api/api/swagger"
	"github.com/campusops/enrollment-api/internal/handler"
	"github.com/campusops/enrollment-api/internal/middleware"
	"github.com/campusops/enrollment-api/internal/repository"
	"github.com/campusops/enrollment-api/internal/service"
	"github.com/campusops/enrollment-api/pkg/cache"
	"github.com/campusops/enrollment-api/pkg/config"
	"github.com/campusops/enrollment-api/pkg/database"
	"github.com/campusops/enrollment-api/pkg/jobs"
	"github.com/campusops/enrollment-api/pkg/logger"
	corsmiddleware "github.com/campusops/enrollment-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campusops/enrollment-api/pkg/middleware/requestid"
)

// @title Campus Enrollment API
// @version 1.0.0
// @description Enrollment lifecycle and seat-capacity service
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
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, occupancy cache disabled", "error", err)
		redisClient = nil
	}

	enrollmentRepo := repository.NewEnrollmentRepository(db)
	sequenceRepo := repository.NewSequenceRepository(db)
	offeringRepo := repository.NewOfferingRepository(db)
	studentRepo := repository.NewStudentRepository(db)

	metricsSvc := service.NewMetricsService()
	idGen := service.NewIDGenerator(cfg.Enrollment.IDPrefix, sequenceRepo, enrollmentRepo, logr)
	capacitySvc := service.NewCapacityService(offeringRepo, redisClient, cfg.Occupancy.CacheTTL, metricsSvc, logr)
	enrollmentSvc := service.NewEnrollmentService(
		enrollmentRepo, studentRepo, idGen, capacitySvc,
		validator.New(), metricsSvc, logr,
		cfg.Enrollment.MaxIDRetries, cfg.Enrollment.MaxUpdateRetries,
	)

	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	offeringHandler := handler.NewOfferingHandler(capacitySvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.Actor(cfg.JWT.Secret))
	{
		api.POST("/enrollments", enrollmentHandler.Create)
		api.GET("/enrollments", enrollmentHandler.List)
		api.GET("/enrollments/:id", enrollmentHandler.Get)
		api.PATCH("/enrollments/:id/status", enrollmentHandler.UpdateStatus)
		api.POST("/enrollments/:id/payments", enrollmentHandler.RecordPayment)
		api.POST("/enrollments/:id/certificate", enrollmentHandler.IssueCertificate)
		api.DELETE("/enrollments/:id", enrollmentHandler.Delete)
		api.GET("/offerings/:id/occupancy", offeringHandler.Occupancy)
		api.POST("/offerings/:id/reconcile", offeringHandler.Reconcile)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Reconcile.Enabled {
		queue := jobs.NewQueue("capacity-reconcile", func(ctx context.Context, job jobs.Job) error {
			return capacitySvc.ReconcileAll(ctx)
		}, jobs.QueueConfig{
			Workers: cfg.Reconcile.Workers,
			Logger:  logr,
		})
		queue.Start(ctx)
		defer queue.Stop()

		go func() {
			ticker := time.NewTicker(cfg.Reconcile.Interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case tick := <-ticker.C:
					job := jobs.Job{
						ID:   fmt.Sprintf("reconcile-%d", tick.Unix()),
						Type: "reconcile-all",
					}
					if err := queue.Enqueue(job); err != nil {
						logr.Sugar().Warnw("failed to enqueue reconcile job", "error", err)
					}
				}
			}
		}()
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/empathic/podiatry/internal/config"
	"github.com/empathic/podiatry/internal/document"
	"github.com/empathic/podiatry/internal/domain/facility"
	"github.com/empathic/podiatry/internal/domain/patient"
	"github.com/empathic/podiatry/internal/platform/apperror"
	"github.com/empathic/podiatry/internal/platform/auth"
	"github.com/empathic/podiatry/internal/platform/blobstore"
	"github.com/empathic/podiatry/internal/platform/db"
	"github.com/empathic/podiatry/internal/platform/metrics"
	"github.com/empathic/podiatry/internal/platform/middleware"
)

const version = "0.1.0"

// app holds everything a command needs once configuration is loaded.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger

	pool   *pgxpool.Pool
	sqlite *sql.DB
	redis  *redis.Client

	metrics    *metrics.Metrics
	facilities *facility.Service
	patients   *patient.Service
	policy     *patient.Policy
	archive    blobstore.Store
	limiter    middleware.Limiter
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (a *app, err error) {
	a = &app{cfg: cfg, logger: logger, metrics: metrics.New()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	var facilityRepo facility.Repository
	var patientRepo patient.Repository
	switch cfg.StoreDriver {
	case config.StoreSQLite:
		a.sqlite, err = db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		facilityRepo = facility.NewSQLiteRepo(a.sqlite)
		patientRepo = patient.NewSQLiteRepo(a.sqlite)
		logger.Info().Str("path", cfg.SQLitePath).Msg("opened sqlite database")
	default:
		a.pool, err = db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		facilityRepo = facility.NewRepo(a.pool)
		patientRepo = patient.NewRepo(a.pool)
		logger.Info().Msg("connected to database")
	}

	a.facilities = facility.NewService(facilityRepo)
	a.facilities.SetLogger(logger)
	a.patients = patient.NewService(patientRepo, a.facilities)
	a.patients.SetLogger(logger)
	a.patients.SetRecorder(a.metrics)
	a.facilities.SetPatientCounter(a.patients)
	a.policy = patient.NewPolicy(a.patients, logger)

	a.archive, err = blobstore.Open(ctx, cfg.DocumentStore, blobstore.S3Config{
		Bucket:          cfg.DocumentS3Bucket,
		Region:          cfg.DocumentS3Region,
		Endpoint:        cfg.DocumentS3Endpoint,
		PathStyle:       cfg.DocumentS3PathStyle,
		AccessKeyID:     cfg.DocumentS3AccessKeyID,
		SecretAccessKey: cfg.DocumentS3SecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("open document store: %w", err)
	}

	rl := middleware.RateLimitConfig{RequestsPerSecond: cfg.RateLimitRPS, BurstSize: cfg.RateLimitBurst}
	if rl.RequestsPerSecond <= 0 || rl.BurstSize <= 0 {
		rl = middleware.DefaultRateLimitConfig()
	}
	if cfg.RedisURL != "" {
		a.redis, err = middleware.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.limiter = middleware.NewRedisWindowLimiter(a.redis, rl.BurstSize, time.Second)
		logger.Info().Msg("rate limiting through redis")
	} else {
		a.limiter = middleware.NewTokenBucketLimiter(rl)
	}

	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	if a.sqlite != nil {
		a.sqlite.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

func (a *app) healthHandler() echo.HandlerFunc {
	if a.sqlite != nil {
		return db.SQLHealthHandler(a.sqlite)
	}
	return db.HealthHandler(a.pool)
}

// server builds the HTTP server. Document template errors are fatal.
func (a *app) server() *echo.Echo {
	cfg, logger := a.cfg, a.logger

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperror.HTTPErrorHandler(logger)

	e.Use(a.metrics.Middleware())
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M", "8M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:  []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader, document.ArchiveKeyHeader, echo.HeaderContentDisposition},
	}))

	if cfg.ResolvedAuthMode() == "development" {
		e.Use(auth.DevAuthMiddleware(auth.AuthSkipper))
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
			Skipper:    auth.AuthSkipper,
		}))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
	e.GET("/health/db", a.healthHandler())
	e.GET("/metrics", a.metrics.Handler())

	api := e.Group("/api/v1")
	api.Use(middleware.RateLimitWith(a.limiter, nil, logger))

	facility.NewHandler(a.facilities).RegisterRoutes(api)
	patient.NewHandler(a.patients, a.policy).RegisterRoutes(api)

	html, err := document.NewHTMLRenderer()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load document templates")
	}
	docs := document.NewHandler(
		document.NewGenerator(cfg.PracticeName, cfg.DefaultFacilityName),
		a.facilities, a.patients,
		html, document.NewXLSXRenderer(),
	)
	docs.SetArchive(a.archive)
	docs.SetRecorder(a.metrics)
	docs.SetLogger(logger)
	docs.RegisterRoutes(api)

	if a.archive != nil {
		archiveGroup := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RolePodiatrist, auth.RoleStaff))
		blobstore.NewHandler(a.archive).RegisterRoutes(archiveGroup)
	}

	return e
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "github.com/noah-isme/primes-api/api/swagger"
	"github.com/noah-isme/primes-api/internal/handler"
	internalmiddleware "github.com/noah-isme/primes-api/internal/middleware"
	"github.com/noah-isme/primes-api/internal/repository"
	"github.com/noah-isme/primes-api/internal/service"
	"github.com/noah-isme/primes-api/pkg/cache"
	"github.com/noah-isme/primes-api/pkg/config"
	"github.com/noah-isme/primes-api/pkg/database"
	"github.com/noah-isme/primes-api/pkg/isoweek"
	"github.com/noah-isme/primes-api/pkg/jobs"
	"github.com/noah-isme/primes-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/primes-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/primes-api/pkg/middleware/requestid"
	"github.com/noah-isme/primes-api/pkg/storage"
)

// @title Primes API
// @version 1.0.0
// @description Weekly prime (bonus) planning per agent, keyed by ISO week.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 10 * time.Second

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logr.Info("database schema up to date")
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The API still serves from Postgres without Redis.
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	agentRepo := repository.NewAgentRepository(db)
	primeRepo := repository.NewPrimeTypeRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.WeekTTL, logr, cfg.Cache.Enabled && redisClient != nil)
	authSvc := service.NewAuthService(auditRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
		AdminCodeHash:     cfg.Admin.CodeHash,
	})
	if cfg.Admin.CodeHash == "" {
		logr.Warn("ADMIN_CODE_HASH is empty, admin login is disabled")
	}
	catalogSvc := service.NewCatalogService(agentRepo, primeRepo, cacheSvc, auditRepo, validate, logr, service.CatalogConfig{
		BootstrapTTL: cfg.Cache.BootstrapTTL,
	})
	planSvc := service.NewPlanService(agentRepo, primeRepo, assignmentRepo, cacheSvc, auditRepo, metricsSvc, validate, logr, service.PlanConfig{
		WeekTTL:  cfg.Cache.WeekTTL,
		RecapTTL: cfg.Cache.RecapTTL,
		Wrap:     isoweek.WrapActual,
		Location: location,
	})

	g, gctx := errgroup.WithContext(ctx)

	var rewarmQueue *jobs.Queue
	if cfg.Rewarm.Enabled && cacheSvc.Enabled() {
		rewarmSvc := service.NewRewarmService(planSvc, agentRepo, metricsSvc, logr)
		rewarmQueue = jobs.NewQueue("recap-rewarm", rewarmSvc.Handle, jobs.QueueConfig{
			Workers:    cfg.Rewarm.Workers,
			MaxRetries: cfg.Rewarm.MaxRetries,
			RetryDelay: cfg.Rewarm.RetryDelay,
			Logger:     logr,
		})
		rewarmQueue.Start(gctx)
		defer rewarmQueue.Stop()
		planSvc.WithRewarm(rewarmSvc.UseQueue(rewarmQueue))
	}

	var exportHandler *handler.ExportHandler
	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			return fmt.Errorf("init export storage: %w", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc := service.NewExportService(planSvc, primeRepo, store, signer, auditRepo, metricsSvc, logr, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
		})
		exportHandler = handler.NewExportHandler(exportSvc, validate)
		g.Go(func() error {
			exportSvc.RunCleanup(gctx, cfg.Exports.CleanupInterval)
			return nil
		})
	}

	metricsHandler := handler.NewMetricsHandler(metricsSvc).
		WithCheck("postgres", pingPostgres(db)).
		WithCheck("redis", pingRedis(redisClient, cacheRepo))
	if rewarmQueue != nil {
		metricsHandler.WithQueue(rewarmQueue)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	docsURL := ""
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
		docsURL = "/docs/index.html"
	}

	handler.RegisterRoutes(r, cfg.APIPrefix, handler.Handlers{
		Auth:      handler.NewAuthHandler(authSvc),
		Catalog:   handler.NewCatalogHandler(catalogSvc),
		Plan:      handler.NewPlanHandler(planSvc),
		AdminWeek: handler.NewAdminWeekHandler(planSvc),
		Audit:     handler.NewAuditHandler(service.NewAuditService(auditRepo, logr)),
		Export:    exportHandler,
		Legacy:    handler.NewLegacyHandler(catalogSvc, planSvc, authSvc, logr),
		Metrics:   metricsHandler,
	}, handler.RouteOptions{
		Tokens:        authSvc,
		Audit:         auditRepo,
		Logger:        logr,
		LegacyEnabled: cfg.Legacy.MacroEnabled,
		DocsURL:       docsURL,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "timezone", cfg.Timezone)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logr.Info("server shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func pingPostgres(db *sqlx.DB) handler.ReadinessCheck {
	return func(ctx context.Context) error {
		return db.PingContext(ctx)
	}
}

func pingRedis(client *redis.Client, repo *repository.CacheRepository) handler.ReadinessCheck {
	if client == nil {
		return nil
	}
	return repo.Ping
}

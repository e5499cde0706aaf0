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
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-idcard-api/api/swagger"
	"github.com/noah-isme/sma-idcard-api/internal/handler"
	"github.com/noah-isme/sma-idcard-api/internal/repository"
	"github.com/noah-isme/sma-idcard-api/internal/router"
	"github.com/noah-isme/sma-idcard-api/internal/service"
	"github.com/noah-isme/sma-idcard-api/pkg/cache"
	"github.com/noah-isme/sma-idcard-api/pkg/config"
	"github.com/noah-isme/sma-idcard-api/pkg/database"
	"github.com/noah-isme/sma-idcard-api/pkg/export"
	"github.com/noah-isme/sma-idcard-api/pkg/jobs"
	"github.com/noah-isme/sma-idcard-api/pkg/logger"
	"github.com/noah-isme/sma-idcard-api/pkg/storage"
)

// @title SMA ID Card API
// @version 1.0.0
// @description School ID-card administration: schools, students, card composition and batch printing.
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, card cache disabled", zap.Error(err))
			redisClient = nil
		}
	}

	objects, err := storage.NewObjectStore(ctx, cfg.Assets)
	if err != nil {
		return fmt.Errorf("init object store: %w", err)
	}

	var scanner storage.Scanner = storage.NopScanner{}
	if cfg.Assets.ClamdAddr != "" {
		scanner = storage.NewClamdScanner(cfg.Assets.ClamdAddr)
	} else {
		logr.Warn("CLAMD_ADDR not set, uploads are not virus scanned")
	}

	files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return fmt.Errorf("init export storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	validate := validator.New()
	metrics := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	schoolRepo := repository.NewSchoolRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	batchRepo := repository.NewCardBatchRepository(db)

	var cacheRepo service.CacheRepository
	checks := map[string]handler.Pinger{"postgres": handler.PingFunc(db.PingContext)}
	if redisClient != nil {
		redisRepo := repository.NewCacheRepository(redisClient, logr)
		defer redisRepo.Close() //nolint:errcheck
		cacheRepo = redisRepo
		checks["redis"] = redisRepo
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cards.PreviewCacheTTL, logr, redisClient != nil)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		SingleSession:      cfg.JWT.SingleSession,
	})
	settingsSvc := service.NewSettingsService(settingsRepo, validate, logr)
	schoolSvc := service.NewSchoolService(schoolRepo, cacheSvc, objects, cfg.Assets.PresignTTL, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, schoolRepo, objects, cfg.Assets.PresignTTL, validate, logr)
	pdf := export.NewCardPDF()
	cardSvc := service.NewCardService(schoolRepo, studentRepo, objects, settingsSvc, pdf, cacheSvc, metrics, service.CardServiceConfig{
		ProfileTTL: cfg.Cards.PreviewCacheTTL,
		PresignTTL: cfg.Assets.PresignTTL,
	}, validate, logr)
	assetSvc := service.NewAssetService(schoolRepo, studentRepo, objects, scanner, cacheSvc, metrics, logr, service.AssetServiceConfig{
		MaxFileSize:  cfg.Assets.MaxFileSizeBytes,
		AllowedMIMEs: cfg.Assets.AllowedMIMEs,
		PresignTTL:   cfg.Assets.PresignTTL,
	})
	exportSvc := service.NewExportService(studentRepo, logr)

	batchCfg := service.CardBatchConfig{
		DownloadPrefix:  cfg.APIPrefix + "/card-batches/download/",
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
		MaxBatchSize:    cfg.Cards.MaxBatchSize,
	}
	worker := service.NewCardBatchWorker(batchRepo, studentRepo, cardSvc, pdf, files, signer, metrics, logr, batchCfg)
	queue := jobs.NewQueue(service.CardBatchJobType, worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Cards.WorkerConcurrency,
		MaxRetries: cfg.Cards.WorkerRetries,
		RetryDelay: cfg.Cards.RetryDelay,
		OnFailure:  worker.MarkFailed,
		Logger:     logr,
	})
	queue.Start(ctx)
	defer queue.Stop()

	batchSvc := service.NewCardBatchService(batchRepo, schoolRepo, settingsSvc, queue, files, signer, logr, batchCfg)
	batchSvc.RecoverPending(ctx)
	batchSvc.StartCleanup(ctx)

	engine := router.New(router.Options{
		Env:            cfg.Env,
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Logger:         logr,
		Tokens:         authSvc,
		Audit:          userRepo,
		Metrics:        metrics,
	}, router.Handlers{
		Auth:      handler.NewAuthHandler(authSvc),
		Settings:  handler.NewSettingsHandler(settingsSvc),
		School:    handler.NewSchoolHandler(schoolSvc),
		Student:   handler.NewStudentHandler(studentSvc),
		Card:      handler.NewCardHandler(cardSvc),
		CardBatch: handler.NewCardBatchHandler(batchSvc),
		Asset:     handler.NewAssetHandler(assetSvc),
		Export:    handler.NewExportHandler(exportSvc),
		Health:    handler.NewHealthHandler(metrics, checks),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", server.Addr, "env", cfg.Env)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		logr.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Error("could not stop server gracefully", zap.Error(err))
		if err := server.Close(); err != nil {
			return fmt.Errorf("force close server: %w", err)
		}
	}
	return nil
}

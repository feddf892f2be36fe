package bootstrap

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hvac-booking-core/config"
	deliveryHttp "hvac-booking-core/internal/delivery/http"
	"hvac-booking-core/internal/delivery/http/handler"
	domainRepo "hvac-booking-core/internal/domain/repository"
	"hvac-booking-core/internal/infrastructure/cache"
	"hvac-booking-core/internal/infrastructure/database"
	"hvac-booking-core/internal/infrastructure/twilio"
	"hvac-booking-core/internal/repository"
	"hvac-booking-core/internal/service"
	"hvac-booking-core/internal/usecase"
	"hvac-booking-core/pkg/crypto"
	"hvac-booking-core/pkg/validator"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const retryWorkerLockKey = "hvac:retry-worker:lock"

// App holds all dependencies for the application.
type App struct {
	Config      *config.Config
	DB          *gorm.DB
	RedisClient *redis.Client
	Server      *http.Server
	RetryWorker *service.RetryWorker
	HoldSweeper *service.HoldSweeper
}

// New initializes the application: storage (with migrations), the optional
// token re-encryption sweep, redis, and the HTTP stack. Any failure here
// aborts startup.
func New() (*App, error) {
	app := &App{}

	setupLogger()

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	app.Config = cfg
	logrus.Info("Configuration loaded successfully")

	db, err := database.Open(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	app.DB = db

	vault, err := buildVault(cfg)
	if err != nil {
		return nil, err
	}

	log := logrus.StandardLogger()
	tokenRepo := repository.NewTokenRepository()

	if cfg.Tokens.RunMigration {
		n, err := service.MigrateLegacyTokens(db, log, tokenRepo, vault)
		if err != nil {
			return nil, fmt.Errorf("token re-encryption sweep failed: %w", err)
		}
		logrus.Infof("Token re-encryption sweep migrated %d row(s)", n)
	}

	redisClient, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	app.RedisClient = redisClient

	app.wire(cfg, db, redisClient, vault, tokenRepo, log)
	return app, nil
}

func setupLogger() {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(logrus.InfoLevel)
}

// buildVault constructs the token vault. Outside production a missing key gets
// an ephemeral random one so the process still runs; tokens encrypted under it
// do not survive a restart.
func buildVault(cfg *config.Config) (*crypto.Vault, error) {
	keyHex := cfg.Tokens.EncKeyHex
	if keyHex == "" {
		raw := make([]byte, 32)
		if _, err := rand.Read(raw); err != nil {
			return nil, err
		}
		keyHex = hex.EncodeToString(raw)
		logrus.Warn("TOKENS_ENC_KEY not set; using an ephemeral key (dev only)")
	}
	vault, err := crypto.NewVault(keyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid TOKENS_ENC_KEY: %w", err)
	}
	return vault, nil
}

// wire builds repositories, usecases, handlers, background services, and the
// HTTP server.
func (app *App) wire(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, vault *crypto.Vault, tokenRepo domainRepo.TokenRepository, log *logrus.Logger) {
	businessRepo := repository.NewBusinessRepository()
	bookingRepo := repository.NewBookingRepository()
	flowRepo := repository.NewOAuthFlowRepository()
	smsLogRepo := repository.NewSmsLogRepository()
	callLogRepo := repository.NewCallLogRepository()
	emergencyLogRepo := repository.NewEmergencyLogRepository()
	retryRepo := repository.NewRetryTaskRepository()

	provider := twilio.NewClient(cfg.Twilio)
	calendars := service.NewCalendarFactory(db, log, cfg.Google, vault, tokenRepo)
	notifier := service.NewNotificationService(db, log, provider, smsLogRepo, callLogRepo, emergencyLogRepo, cfg.Twilio.EmergencyPhone)

	bookingUsecase := usecase.NewBookingUsecase(db, log, cfg.Booking, businessRepo, bookingRepo, retryRepo, smsLogRepo, calendars, notifier)
	availabilityUsecase := usecase.NewAvailabilityUsecase(db, log, businessRepo, bookingRepo, calendars)
	profileUsecase := usecase.NewProfileUsecase(db, log, businessRepo)
	oauthUsecase := usecase.NewOAuthUsecase(db, log, cfg.Google, cfg.OAuth, vault, flowRepo, tokenRepo, businessRepo)

	customValidator := validator.NewValidator()

	bookingHandler := handler.NewBookingHandler(bookingUsecase, customValidator, log)
	availabilityHandler := handler.NewAvailabilityHandler(availabilityUsecase, log)
	profileHandler := handler.NewProfileHandler(profileUsecase, customValidator, log)
	oauthHandler := handler.NewOAuthHandler(oauthUsecase, log)
	debugHandler := handler.NewDebugHandler(bookingUsecase, log, cfg.App.DebugKey)

	router := deliveryHttp.NewRouter(cfg, bookingHandler, availabilityHandler, profileHandler, oauthHandler, debugHandler)

	app.Server = &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.App.Port),
		Handler: router.Setup(),
	}

	if cfg.Retry.RunWorker {
		lock := cache.NewWorkerLock(redisClient, retryWorkerLockKey, cfg.Retry.LockTTL)
		app.RetryWorker = service.NewRetryWorker(db, log, retryRepo, bookingRepo, businessRepo, smsLogRepo,
			provider, calendars, lock, cfg.Retry.TickInterval, cfg.Retry.BatchSize)
	}

	// The sweeper runs regardless of the worker flag; expired holds must be
	// released even on instances that never drain the outbox.
	app.HoldSweeper = service.NewHoldSweeper(db, log, bookingRepo, time.Minute)
}

// Run starts the HTTP server and background services, then blocks until
// shutdown.
func (app *App) Run() {
	go func() {
		logrus.Infof("Server starting on port %s", app.Config.App.Port)
		logrus.Infof("Environment: %s", app.Config.App.Env)
		if err := app.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	if app.RetryWorker != nil {
		app.RetryWorker.Start()
	}
	if app.HoldSweeper != nil {
		app.HoldSweeper.Start()
	}

	app.waitForShutdown()
}

func (app *App) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.Server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	if app.RetryWorker != nil {
		app.RetryWorker.Stop()
	}
	if app.HoldSweeper != nil {
		app.HoldSweeper.Stop()
	}

	app.Close()

	logrus.Info("Server shutdown complete")
}

// Close closes database and redis connections.
func (app *App) Close() {
	if app.DB != nil {
		if sqlDB, err := app.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}
	if app.RedisClient != nil {
		app.RedisClient.Close()
	}
}

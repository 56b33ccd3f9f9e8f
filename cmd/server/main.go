package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fitai/fitness-tracker/internal/ai"
	"fitai/fitness-tracker/internal/api"
	"fitai/fitness-tracker/internal/config"
	"fitai/fitness-tracker/internal/repository/mongo"
	"fitai/fitness-tracker/internal/service"
	"fitai/fitness-tracker/internal/verify"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	zapLogger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer zapLogger.Sync()
	logger := zapLogger.Sugar()

	logger.Info("starting fitness tracker server")

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Fatalw("could not load config", "err", err)
	}
	if cfg.JWT.Secret == "" {
		logger.Fatal("jwt.secret is required")
	}

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		logger.Fatalw("could not connect to MongoDB", "err", err)
	}
	defer func() {
		if err := mongo.DisconnectDB(dbClient); err != nil {
			logger.Errorw("failed to disconnect MongoDB", "err", err)
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	logger.Info("database connection established")

	// --- Ensure Indexes ---
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		if err := mongo.EnsureAccountIndexes(ctx, appDB.Collection("accounts")); err != nil {
			logger.Warnw("failed to create account indexes", "err", err)
		}
		if err := mongo.EnsureCooldownIndexes(ctx, appDB.Collection("cooldowns")); err != nil {
			logger.Warnw("failed to create cooldown indexes", "err", err)
		}
	}()

	// --- External Collaborators ---
	model, err := ai.NewGeminiModel(context.Background(), cfg.AI.APIKey, cfg.AI.Model, cfg.AI.Timeout)
	if err != nil {
		logger.Fatalw("failed to initialize AI model client", "err", err)
	}
	provider, err := verify.NewHTTPProvider(cfg.Verification.BaseURL, cfg.Verification.APIKey, cfg.Verification.Timeout)
	if err != nil {
		logger.Fatalw("failed to initialize verification provider", "err", err)
	}

	// --- Repositories ---
	accountRepo := mongo.NewMongoAccountRepository(appDB)
	cooldownRepo := mongo.NewMongoCooldownRepository(appDB)

	// --- Services ---
	sessionService := service.NewSessionService(accountRepo, logger)
	moderationService := service.NewModerationService(accountRepo, cfg.Moderation.ViolationThreshold, cfg.Moderation.BanBaseline, logger)
	rateLimitService := service.NewRateLimitService(cooldownRepo, accountRepo, cfg.RateLimit.Window, logger)
	threadService := service.NewThreadService(accountRepo, moderationService, model, cfg.RateLimit.HistoryCap, logger)
	verificationService := service.NewVerificationService(accountRepo, rateLimitService, provider, logger)

	// --- HTTP Router ---
	router := gin.Default()
	api.SetupRoutes(router, cfg.JWT.Secret, sessionService, threadService, verificationService, logger)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	logger.Infow("server starting", "address", cfg.Server.Address)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("listen and serve error", "err", err)
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Fatalw("server forced to shutdown", "err", err)
	}

	logger.Info("server exiting")
}

// cmd/api/main.go
// Main entry point for the application
// This file bootstraps all components and starts the server

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"github.com/obimo/obimo-backend/internal/auth"
	"github.com/obimo/obimo-backend/internal/common/database"
	"github.com/obimo/obimo-backend/internal/common/logger"
	"github.com/obimo/obimo-backend/internal/config"
	"github.com/obimo/obimo-backend/internal/llm"
	"github.com/obimo/obimo-backend/internal/recommendation"
)

func main() {
	// 1. Load environment variables
	envErr := godotenv.Load()

	// 2. Load configuration
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if envErr != nil {
		log.Info("no .env file found, using environment variables")
	}

	// 3. Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatal("configuration validation failed", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 4. Connect to PostgreSQL
	db, err := database.NewPostgresDBFromURL(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to connect to PostgreSQL", "error", err)
	}
	defer db.Close()
	log.Info("connected to PostgreSQL")

	// 5. Connect to Redis (optional)
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.NewRedisClientFromURL(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn("continuing without Redis, generation lock disabled", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			log.Info("connected to Redis")
		}
	}

	// 6. Run database migrations
	if err := database.RunMigrations(ctx, db); err != nil {
		log.Fatal("failed to run migrations", "error", err)
	}
	log.Info("database migrations completed")

	// 7. External ranking model (optional)
	var model recommendation.Model
	if cfg.ModelEnabled() {
		m, err := llm.NewOpenAIModel(llm.Config{
			Provider:        cfg.LLMProvider,
			APIKey:          cfg.ModelAPIKey(),
			BaseURL:         cfg.LLMBaseURL,
			Model:           cfg.LLMModel,
			BreakerFailures: cfg.LLMBreakerFailures,
			BreakerCooldown: cfg.LLMBreakerCooldown,
		}, log)
		if err != nil {
			log.Warn("ranking model disabled", "error", err)
		} else {
			model = m
			log.Info("ranking model enabled", "provider", cfg.LLMProvider, "model", cfg.LLMModel)
		}
	} else {
		log.Info("ranking model not configured, scores are used as collected")
	}

	// 8. Initialize recommendation system
	repo := recommendation.NewPostgresRepository(db)
	engine := recommendation.NewEngine(repo, model, recommendation.EngineConfig{
		TopN:              cfg.RecommendationTopN,
		RecommendationTTL: cfg.RecommendationTTL,
		ModelTimeout:      cfg.LLMTimeout,
	}, log)

	guard := recommendation.NewNoopGuard()
	if redisClient != nil {
		guard = recommendation.NewRedisGuard(redisClient, cfg.GenerationLockTTL, log)
	}

	service := recommendation.NewService(repo, engine, guard, recommendation.ServiceConfig{
		DefaultLimit:     cfg.RecommendationTopN,
		ActiveUserWindow: cfg.ActiveUserWindow,
		RegenerateBatch:  cfg.RegenerationBatch,
	}, log)
	handler := recommendation.NewHandler(service)

	// 9. Set up routes
	router := newRouter(log, newHealthChecker(db, redisClient))
	recommendation.RegisterRoutes(router, handler, auth.NewMiddleware(cfg.JWTSecret))

	// 10. Start background jobs
	recommendation.NewScheduler(service, cfg.RegenerationInterval, log).Start(ctx)

	// 11. Create and start HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      corsMiddleware(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting", "addr", srv.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
		return
	}

	log.Info("server exited gracefully")
}

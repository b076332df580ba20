package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chrbailey/restaurant-scheduler-sub005/internal/cache"
	"github.com/chrbailey/restaurant-scheduler-sub005/internal/claims"
	"github.com/chrbailey/restaurant-scheduler-sub005/internal/config"
	"github.com/chrbailey/restaurant-scheduler-sub005/internal/events"
	"github.com/chrbailey/restaurant-scheduler-sub005/internal/httpapi"
	"github.com/chrbailey/restaurant-scheduler-sub005/internal/reputation"
	"github.com/chrbailey/restaurant-scheduler-sub005/internal/service"
	"github.com/chrbailey/restaurant-scheduler-sub005/internal/store"
	"github.com/chrbailey/restaurant-scheduler-sub005/internal/visibility"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Environment == "development" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting scheduler-core",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"store_type", cfg.StoreType,
	)

	// Initialize store and reputation cache
	var schedStore store.Store
	var repCache cache.Cache
	var mongoClient *mongo.Client

	switch cfg.StoreType {
	case "mongo":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		clientOpts := options.Client().ApplyURI(cfg.MongoURI)
		var mongoErr error
		mongoClient, mongoErr = mongo.Connect(ctx, clientOpts)
		if mongoErr != nil {
			slog.Error("failed to connect to mongodb", "error", mongoErr)
			os.Exit(1)
		}
		if err := mongoClient.Ping(ctx, nil); err != nil {
			slog.Error("failed to ping mongodb", "error", err)
			os.Exit(1)
		}

		mongoStore := store.NewMongoStore(mongoClient, cfg.MongoDB)
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			slog.Warn("failed to create store indexes", "error", err)
		}
		mongoCache := cache.NewMongoCache(mongoClient, cfg.MongoDB)
		if err := mongoCache.EnsureIndexes(ctx); err != nil {
			slog.Warn("failed to create cache indexes", "error", err)
		}
		schedStore = mongoStore
		repCache = mongoCache
		slog.Info("using mongodb store", "uri", cfg.MongoURI, "db", cfg.MongoDB)

	default:
		schedStore = store.NewMemoryStore()
		repCache = cache.NewMemoryCache()
		slog.Info("using in-memory store (development mode)")
	}
	defer func() { _ = schedStore.Close() }()
	defer func() { _ = repCache.Close() }()
	if mongoClient != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := mongoClient.Disconnect(ctx); err != nil {
				slog.Error("failed to disconnect mongodb", "error", err)
			}
		}()
	}

	// Wire the allocation core
	pub := events.NewPublisher("scheduler-core", cfg.EventsWebhookURL)
	engine := reputation.NewEngine(schedStore, repCache, time.Duration(cfg.ReputationCacheTTLSeconds)*time.Second)
	resolver := visibility.NewResolver(schedStore, engine, time.Duration(cfg.DefaultVisibilityDelayMinutes)*time.Minute)
	arbiter := claims.NewArbiter(schedStore, resolver, engine, pub, claims.Params{
		TierWeight:         cfg.TierWeight,
		ReputationWeight:   cfg.ReputationWeight,
		LockWait:           time.Duration(cfg.LockWaitMs) * time.Millisecond,
		DefaultClaimWindow: time.Duration(cfg.DefaultClaimWindowMinutes) * time.Minute,
	})
	svc := service.New(schedStore, engine, resolver, arbiter, pub)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpapi.NewRouter(svc),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Resolve expired claim windows in the background
	sweepStop := make(chan struct{})
	if cfg.SweepIntervalSeconds > 0 {
		go runSweep(svc, time.Duration(cfg.SweepIntervalSeconds)*time.Second, sweepStop)
		slog.Info("claim window sweep enabled", "interval_seconds", cfg.SweepIntervalSeconds)
	}

	// Start server in goroutine
	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	close(sweepStop)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}

func runSweep(svc *service.Service, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if _, err := svc.ResolveDueShifts(ctx, time.Now().UTC()); err != nil {
				slog.Error("claim window sweep failed", "error", err)
			}
			cancel()
		case <-stop:
			return
		}
	}
}

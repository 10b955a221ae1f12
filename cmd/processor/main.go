package main

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/surflamp/surf-lamp-processor/internal/api"
	"github.com/surflamp/surf-lamp-processor/internal/catalog"
	"github.com/surflamp/surf-lamp-processor/internal/config"
	"github.com/surflamp/surf-lamp-processor/internal/pushgate"
	"github.com/surflamp/surf-lamp-processor/internal/scheduler"
	"github.com/surflamp/surf-lamp-processor/internal/services"
	"github.com/surflamp/surf-lamp-processor/internal/store"
	"github.com/surflamp/surf-lamp-processor/pkg/client"
)

func main() {
	logger, _ := zap.NewProduction()
	zap.ReplaceGlobals(logger)
	logger.Info("Starting Surf Lamp Processor")

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger = buildLogger(cfg.Server.LogLevel)
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		logger.Fatal("Failed to load endpoint catalog", zap.Error(err))
	}
	logger.Info("Endpoint catalog loaded",
		zap.String("path", cfg.Catalog.Path),
		zap.Int("locations", cat.Len()))

	ctx := context.Background()
	db, err := store.New(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	fetcher := client.New(client.Config{
		DefaultTimeout: cfg.Fetch.TimeoutDefault,
		SlowTimeout:    cfg.Fetch.TimeoutSlow,
		MaxAttempts:    cfg.Fetch.MaxAttempts,
		RateLimitBase:  cfg.Fetch.RateLimitBase,
		TransientDelay: cfg.Fetch.TransientDelay,
		InterCallDelay: cfg.Fetch.InterCallDelay,
		UserAgent:      cfg.Fetch.UserAgent,
	}, logger)

	var pusher services.DevicePusher
	if cfg.Push.Enabled {
		gate := pushgate.NewGate(cfg.Push.Threshold, cfg.Push.Cooldown, logger)
		transport := pushgate.NewTransport(cfg.Push.Transport, cfg.Push.Timeout, logger)
		pusher = pushgate.NewPusher(gate, transport, logger)
		logger.Info("Device push enabled", zap.String("transport", cfg.Push.Transport))
	}

	resolver := services.NewResolver(db, cat, logger)
	orchestrator := services.NewOrchestrator(resolver, db, fetcher, pusher, logger)
	cycleScheduler := scheduler.NewScheduler(
		orchestrator,
		cfg.Scheduler.FetchInterval,
		cfg.Scheduler.CycleTimeout,
		logger,
	)

	// Diagnostic mode: one synchronous cycle, exit code reflects the outcome.
	if cfg.Scheduler.RunOnce {
		logger.Info("Single cycle mode, exiting after one run")

		runCtx, cancel := context.WithTimeout(ctx, cfg.Scheduler.CycleTimeout)
		result, err := cycleScheduler.RunOnce(runCtx)
		cancel()

		code := 0
		if err != nil {
			logger.Error("Diagnostic cycle failed", zap.Error(err))
			code = 1
		} else {
			persisted, skippedEmpty, failed := result.Counts()
			logger.Info("Diagnostic cycle finished",
				zap.Int("persisted", persisted),
				zap.Int("skipped_empty", skippedEmpty),
				zap.Int("failed", failed))
			if len(result.Locations) > 0 && persisted == 0 {
				code = 1
			}
		}

		db.Close()
		logger.Sync()
		os.Exit(code)
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ErrorHandler: errorHandler,
	})

	locations := make([]string, 0, cat.Len())
	for loc := range cat.Locations {
		locations = append(locations, loc)
	}
	sort.Strings(locations)

	handler := api.NewHandler(cycleScheduler, orchestrator, locations, logger)
	api.SetupRoutes(app, handler, logger)

	if err := cycleScheduler.Start(); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}

	// Start server in goroutine
	go func() {
		addr := ":" + cfg.Server.Port
		logger.Info("Starting server", zap.String("address", addr))

		if err := app.Listen(addr); err != nil {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Let an in-flight cycle finish before the process goes away.
	select {
	case <-cycleScheduler.Stop().Done():
		logger.Info("Scheduler stopped")
	case <-shutdownCtx.Done():
		logger.Warn("Shutdown timeout reached with a cycle still running")
	}

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}

	logger.Info("Processor stopped")
}

func buildLogger(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

func errorHandler(c *fiber.Ctx, err error) error {
	zap.L().Error("HTTP error",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Error(err))

	// Default to 500 status code
	code := fiber.StatusInternalServerError

	// Check if it's a Fiber error
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   err.Error(),
		"success": false,
	})
}

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"estate-backend/internal/admin"
	"estate-backend/internal/auth"
	"estate-backend/internal/config"
	"estate-backend/internal/engine"
	"estate-backend/internal/instrument"
	"estate-backend/internal/logging"
	"estate-backend/internal/metadata"
	"estate-backend/internal/store"
)

func main() {
	ctx := context.Background()

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync() //nolint:errcheck

	zl.Info("config loaded",
		zap.Int("port", cfg.Server.Port),
		zap.String("driver", cfg.Database.Driver),
		zap.String("database", cfg.Database.Name),
		zap.Strings("gated_statuses", cfg.Publication.GatedStatuses))

	// 2. Connect to the rule store
	db, err := store.New(ctx, cfg.Database)
	if err != nil {
		zl.Fatal("connect to database", zap.Error(err))
	}
	defer db.Close()

	// 3. Bootstrap system tables and optional seed data
	if err := db.Bootstrap(ctx, zl); err != nil {
		zl.Fatal("bootstrap system tables", zap.Error(err))
	}
	if cfg.Seed.Path != "" {
		reqs, err := store.ReadSeedFile(cfg.Seed.Path)
		if err != nil {
			zl.Fatal("read seed file", zap.String("path", cfg.Seed.Path), zap.Error(err))
		}
		if err := db.Seed(ctx, reqs); err != nil {
			zl.Fatal("apply seed file", zap.String("path", cfg.Seed.Path), zap.Error(err))
		}
		zl.Info("field requirements seeded", zap.String("path", cfg.Seed.Path), zap.Int("count", len(reqs)))
	}

	// 4. Requirement registry and publication gate
	reg := metadata.NewRegistry(db, cfg.Publication.CacheTTL, zl.Named("registry"))
	validator := engine.NewValidator(reg, engine.ValidatorConfig{
		GatedStatuses:         cfg.Publication.GatedStatuses,
		PropertyTypeAttribute: cfg.Publication.PropertyTypeAttribute,
	}, zl.Named("publication"))
	formatter := engine.NewFormatter(cfg.Publication.LabelSeparator)

	// 5. Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: engine.ErrorHandler(zl),
	})
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))
	app.Use(instrument.Middleware(instrument.NewLogInstrumenter(zl.Named("trace"))))

	// 6. Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// 7. Auth routes (no auth required)
	auth.RegisterAuthRoutes(app, auth.NewAuthHandler(db, cfg.JWTSecret, zl.Named("auth")))

	authMW := auth.AuthMiddleware(cfg.JWTSecret)
	adminMW := auth.RequireRuleEditor()

	// 8. Rule administration (auth + admin required)
	adminHandler := admin.NewHandler(db, reg, zl.Named("admin"))
	admin.RegisterAdminRoutes(app, adminHandler, authMW, adminMW)

	// 9. Publication gate (auth required)
	pubHandler := engine.NewHandler(validator, reg, formatter, zl.Named("publication"))
	engine.RegisterPublicationRoutes(app, pubHandler, authMW)

	// 10. Start server
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		zl.Info("shutting down")
		if err := app.Shutdown(); err != nil {
			zl.Error("shutdown", zap.Error(err))
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	zl.Info("starting server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		zl.Fatal("listen", zap.Error(err))
	}
}

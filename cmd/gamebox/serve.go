package main

import (
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gamdit/gamebox/internal/database"
	"github.com/gamdit/gamebox/internal/handlers"
	"github.com/gamdit/gamebox/internal/logging"
	"github.com/gamdit/gamebox/internal/middleware"
	"github.com/gamdit/gamebox/internal/routes"
	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/urfave/cli/v2"
)

func serve(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	if rt.cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}
	if err := database.Migrate(rt.db); err != nil {
		return err
	}

	// Log cleanup (30-day retention)
	cleanupDone := make(chan struct{})
	logging.StartCleanup(rt.db, cleanupDone)
	defer close(cleanupDone)

	if n, err := rt.games.RebuildIndex(ctx); err != nil {
		slog.Error("game index rebuild failed", "error", err)
	} else {
		slog.Info("game index built", "games", n)
	}

	if err := rt.startConsumer(ctx); err != nil {
		return err
	}

	// Sentry error tracking
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      rt.cfg.Env,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	app := newApp(rt)

	go func() {
		slog.Info("server starting", "port", rt.cfg.Port)
		if err := app.Listen(":" + rt.cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	slog.Info("server stopped")
	return nil
}

func newApp(rt *runtime) *fiber.App {
	cfg := rt.cfg
	app := fiber.New(fiber.Config{
		BodyLimit:    cfg.MaxUploadBytes + 1024*1024,
		ErrorHandler: handlers.ErrorHandler,
	})

	// Sentry middleware
	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		return c.Next()
	})

	announcer := handlers.NewAnnouncer(rt.bus)
	routes.Setup(app, cfg, rt.db, routes.Handlers{
		Auth:          handlers.NewAuthHandler(rt.auth),
		Health:        handlers.NewHealthHandler(database.Ping),
		Users:         handlers.NewUserHandler(rt.users, rt.library, rt.media),
		Social:        handlers.NewSocialHandler(rt.relationships, announcer),
		Likes:         handlers.NewLikeHandler(rt.likes, announcer),
		Feed:          handlers.NewFeedHandler(rt.feed, rt.users),
		Games:         handlers.NewGameHandler(rt.games, rt.users, rt.reviews, rt.library),
		Posts:         handlers.NewPostHandler(rt.posts, rt.media),
		Notifications: handlers.NewNotificationHandler(rt.notifications, rt.sidebar),
		Moderation:    handlers.NewModerationHandler(rt.moderation),
		Jobs:          handlers.NewJobHandler(rt.backfill, rt.games),
		Realtime:      handlers.NewRealtimeHandler(rt.bus),
	})
	return app
}


package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gamdit/gamebox/internal/broadcast"
	"github.com/gamdit/gamebox/internal/config"
	"github.com/gamdit/gamebox/internal/database"
	"github.com/gamdit/gamebox/internal/events"
	"github.com/gamdit/gamebox/internal/igdb"
	"github.com/gamdit/gamebox/internal/logging"
	"github.com/gamdit/gamebox/internal/search"
	"github.com/gamdit/gamebox/internal/services"
	"github.com/gamdit/gamebox/internal/storage"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm"
)

// runtime holds the process-wide dependencies shared by every command.
type runtime struct {
	cfg       *config.Config
	db        *gorm.DB
	pgLog     *logging.PGHandler
	bus       broadcast.Bus
	publisher events.Publisher
	consumer  *events.Consumer
	store     storage.Storage
	source    services.GameSource
	index     *search.GameIndex

	users         *services.UserService
	auth          *services.AuthService
	relationships *services.RelationshipService
	likes         *services.LikeService
	feed          *services.FeedService
	games         *services.GameService
	reviews       *services.ReviewService
	library       *services.LibraryService
	posts         *services.PostService
	notifications *services.NotificationService
	moderation    *services.ModerationService
	media         *services.MediaService
	sidebar       *services.SidebarService
	backfill      *services.BackfillService

	closers []func() error
}

func connect() (*config.Config, error) {
	cfg := config.Load()
	if cfg.DBPassword == "" {
		return nil, errors.New("DB_PASSWORD environment variable is required")
	}
	if err := database.Connect(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := connect()
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, db: database.DB}
	rt.closers = append(rt.closers, database.Close)

	// PostgreSQL log handler (ERROR+ async batch)
	rt.pgLog = logging.NewPGHandler(rt.db)
	rt.closers = append(rt.closers, func() error {
		slog.SetDefault(slog.New(logging.NewStdoutHandler()))
		rt.pgLog.Stop()
		return nil
	})
	slog.SetDefault(slog.New(logging.NewMultiHandler(logging.NewStdoutHandler(), rt.pgLog)))

	if err := rt.wireInfra(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	rt.wireServices()
	return rt, nil
}

// wireInfra picks an implementation for each optional backend. Anything left
// unconfigured falls back to its single-instance version.
func (rt *runtime) wireInfra(ctx context.Context) error {
	cfg := rt.cfg

	if cfg.RedisAddr != "" {
		client, err := broadcast.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		bus, err := broadcast.NewRedisBus(ctx, client)
		if err != nil {
			return err
		}
		rt.bus = bus
		slog.Info("broadcast bus", "backend", "redis", "addr", cfg.RedisAddr)
	} else {
		rt.bus = broadcast.NewLocal()
		slog.Info("broadcast bus", "backend", "local")
	}
	rt.closers = append(rt.closers, rt.bus.Close)

	if cfg.StorageEnabled() {
		store, err := storage.NewS3Storage(cfg)
		if err != nil {
			return err
		}
		rt.store = store
	} else {
		slog.Warn("object storage not configured, uploads are disabled")
		rt.store = storage.Disabled{}
	}

	if cfg.IGDBEnabled() {
		tokens := igdb.NewTokenCache(igdb.ClientCredentials(cfg.IGDBClientID, cfg.IGDBClientSecret, cfg.IGDBTokenURL))
		rt.source = igdb.NewClient(cfg.IGDBAPIURL, cfg.IGDBClientID, tokens, cfg.IGDBTimeout)
	} else {
		slog.Warn("IGDB credentials missing, game lookups are local only")
	}

	index, err := search.NewGameIndex()
	if err != nil {
		return err
	}
	rt.index = index
	rt.closers = append(rt.closers, index.Close)
	return nil
}

func (rt *runtime) wireServices() {
	cfg, db := rt.cfg, rt.db

	// Events go to Kafka when brokers are configured; otherwise they are
	// handled in-process right away.
	rt.publisher = events.NewDirectPublisher(func(ctx context.Context, e events.Event) error {
		return rt.notifications.Handle(ctx, e)
	})
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := events.NewKafkaPublisher(cfg.KafkaClientID, cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			slog.Error("kafka publisher unavailable, handling events in-process", "error", err)
		} else {
			rt.publisher = producer
			rt.closers = append(rt.closers, producer.Close)
		}
	}

	rt.relationships = services.NewRelationshipService(db, rt.publisher)
	rt.users = services.NewUserService(db, rt.relationships)
	rt.auth = services.NewAuthService(db, cfg, services.LogMailer{})
	rt.likes = services.NewLikeService(db, rt.publisher)
	rt.feed = services.NewFeedService(db, rt.relationships, rt.likes)
	rt.games = services.NewGameService(db, rt.source, rt.index)
	rt.moderation = services.NewModerationService(db)
	rt.reviews = services.NewReviewService(db, rt.games, rt.likes, rt.relationships, rt.moderation)
	rt.library = services.NewLibraryService(db, rt.games)
	rt.posts = services.NewPostService(db, rt.games, rt.relationships, rt.moderation, rt.publisher)
	rt.notifications = services.NewNotificationService(db, rt.relationships, rt.bus)
	rt.media = services.NewMediaService(db, rt.store, cfg.MaxUploadBytes)
	rt.sidebar = services.NewSidebarService(rt.users, rt.relationships, rt.notifications, rt.library)
	rt.backfill = services.NewBackfillService(db, rt.source, rt.games)
}

// startConsumer turns Kafka events into notifications until ctx ends.
func (rt *runtime) startConsumer(ctx context.Context) error {
	if len(rt.cfg.KafkaBrokers) == 0 {
		return nil
	}
	consumer, err := events.NewConsumer(rt.cfg.KafkaBrokers, rt.cfg.KafkaClientID+"-notifications", rt.cfg.KafkaTopic, rt.notifications.Handle)
	if err != nil {
		return fmt.Errorf("failed to start event consumer: %w", err)
	}
	rt.consumer = consumer
	rt.closers = append(rt.closers, consumer.Close)
	go func() {
		if err := consumer.Run(ctx); err != nil {
			slog.Error("event consumer stopped", "error", err)
		}
	}()
	return nil
}

// Close releases resources in reverse order of acquisition.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			slog.Error("close failed", "error", err)
		}
	}
}

func migrate(*cli.Context) error {
	if _, err := connect(); err != nil {
		return err
	}
	defer database.Close()
	if err := database.Migrate(database.DB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	slog.Info("migrations applied")
	return nil
}

package routes

import (
	"time"

	"github.com/gamdit/gamebox/internal/config"
	"github.com/gamdit/gamebox/internal/handlers"
	"github.com/gamdit/gamebox/internal/metrics"
	"github.com/gamdit/gamebox/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"gorm.io/gorm"
)

// Handlers bundles everything Setup mounts.
type Handlers struct {
	Auth          *handlers.AuthHandler
	Health        *handlers.HealthHandler
	Users         *handlers.UserHandler
	Social        *handlers.SocialHandler
	Likes         *handlers.LikeHandler
	Feed          *handlers.FeedHandler
	Games         *handlers.GameHandler
	Posts         *handlers.PostHandler
	Notifications *handlers.NotificationHandler
	Moderation    *handlers.ModerationHandler
	Jobs          *handlers.JobHandler
	Realtime      *handlers.RealtimeHandler
}

func Setup(app *fiber.App, cfg *config.Config, db *gorm.DB, h Handlers) {
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	api := app.Group("/api")
	api.Use(metrics.Middleware())

	// General API rate limiter: 120 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               120,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", h.Health.Check)

	// Auth-specific rate limit: 10 req/min per IP (stricter)
	auth := api.Group("/auth")
	auth.Use(limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))
	auth.Post("/magic-link", h.Auth.MagicLink)
	auth.Post("/verify", h.Auth.Verify)
	auth.Post("/refresh", h.Auth.Refresh)
	auth.Post("/logout", h.Auth.Logout)

	protected := middleware.JWTProtected(cfg)
	optional := middleware.OptionalJWT(cfg)

	api.Get("/realtime", middleware.RealtimeJWT(cfg), h.Realtime.Upgrade, h.Realtime.Stream())

	// Reads that personalise when a token is present
	api.Get("/feed", optional, h.Feed.Get)
	api.Post("/feed", optional, h.Feed.Post)
	api.Get("/search", h.Games.Search)
	api.Get("/games/browse", h.Games.Browse)
	api.Get("/games/:igdb_id", optional, h.Games.Detail)
	api.Get("/games/:igdb_id/reviews", optional, h.Games.Reviews)
	api.Get("/posts/:id", optional, h.Posts.Get)
	api.Get("/posts/:id/comments", h.Posts.Comments)
	api.Get("/users/:id", optional, h.Users.Profile)
	api.Get("/users/:id/feed", optional, h.Feed.UserFeed)
	api.Get("/users/:id/library", h.Users.Library)
	api.Post("/likes/hydrate", optional, h.Likes.Hydrate)

	// Me
	api.Get("/me", protected, h.Users.Me)
	api.Patch("/me", protected, h.Users.UpdateProfile)
	api.Put("/me/username", protected, h.Users.SetUsername)
	api.Post("/me/avatar", protected, h.Users.UploadAvatar)
	api.Get("/sidebar", protected, h.Notifications.Sidebar)

	// Relationships
	api.Get("/follows/ids", protected, h.Social.FollowingIDs)
	api.Post("/follows/:id", protected, h.Social.Follow)
	api.Delete("/follows/:id", protected, h.Social.Unfollow)
	api.Post("/blocks/:id", protected, h.Social.Block)
	api.Delete("/blocks/:id", protected, h.Social.Unblock)
	api.Post("/mutes/:id", protected, h.Social.Mute)
	api.Delete("/mutes/:id", protected, h.Social.Unmute)
	api.Get("/users/:id/relationship", protected, h.Social.Relationship)

	// Posts, comments, likes
	api.Post("/media", protected, h.Posts.UploadMedia)
	api.Post("/posts", protected, h.Posts.Create)
	api.Delete("/posts/:id", protected, h.Posts.Delete)
	api.Post("/posts/:id/comments", protected, h.Posts.AddComment)
	api.Delete("/comments/:id", protected, h.Posts.DeleteComment)
	api.Post("/posts/:id/like", protected, h.Likes.TogglePost)
	api.Post("/reviews/:id/like", protected, h.Likes.ToggleReview)

	// Reviews and library
	api.Put("/games/:igdb_id/review", protected, h.Games.PutReview)
	api.Delete("/games/:igdb_id/review", protected, h.Games.DeleteReview)
	api.Put("/games/:igdb_id/library", protected, h.Games.PutLibrary)
	api.Delete("/games/:igdb_id/library", protected, h.Games.DeleteLibrary)

	// Notifications
	api.Get("/notifications", protected, h.Notifications.List)
	api.Get("/notifications/unread-count", protected, h.Notifications.UnreadCount)
	api.Post("/notifications/read", protected, h.Notifications.MarkRead)

	// Moderation: user endpoints (protected)
	api.Post("/reports", protected, h.Moderation.CreateReport)

	// Admin (protected + admin required)
	admin := api.Group("/admin", protected, middleware.AdminRequired(db, cfg))
	admin.Get("/moderation/reports", h.Moderation.ListReports)
	admin.Put("/moderation/reports/:id", h.Moderation.ActionReport)
	admin.Post("/jobs/link-parents", h.Jobs.LinkParents)
	admin.Post("/jobs/enrich-summaries", h.Jobs.EnrichSummaries)
	admin.Post("/jobs/reindex", h.Jobs.RebuildIndex)
}

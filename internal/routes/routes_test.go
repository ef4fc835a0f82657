package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gamdit/gamebox/internal/broadcast"
	"github.com/gamdit/gamebox/internal/config"
	"github.com/gamdit/gamebox/internal/events"
	"github.com/gamdit/gamebox/internal/handlers"
	"github.com/gamdit/gamebox/internal/models"
	"github.com/gamdit/gamebox/internal/search"
	"github.com/gamdit/gamebox/internal/services"
	"github.com/gamdit/gamebox/internal/storage"
	"github.com/gamdit/gamebox/internal/testutil"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const secret = "routes-test-secret"

type testServer struct {
	app *fiber.App
	db  *gorm.DB
	bus *broadcast.Local
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := testutil.NewDB(t)
	cfg := &config.Config{
		JWTSecret:       secret,
		JWTAccessExpiry: 15 * time.Minute,
		AppURL:          "http://localhost:3000",
		MagicLinkExpiry: 15 * time.Minute,
		AdminToken:      "admin-token",
		CORSOrigins:     "*",
		MaxUploadBytes:  1 << 20,
	}
	bus := broadcast.NewLocal()
	t.Cleanup(func() { _ = bus.Close() })
	index, err := search.NewGameIndex()
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	var notifications *services.NotificationService
	publisher := events.NewDirectPublisher(func(ctx context.Context, e events.Event) error {
		return notifications.Handle(ctx, e)
	})
	relationships := services.NewRelationshipService(db, publisher)
	users := services.NewUserService(db, relationships)
	likes := services.NewLikeService(db, publisher)
	games := services.NewGameService(db, nil, index)
	moderation := services.NewModerationService(db)
	reviews := services.NewReviewService(db, games, likes, relationships, moderation)
	library := services.NewLibraryService(db, games)
	posts := services.NewPostService(db, games, relationships, moderation, publisher)
	notifications = services.NewNotificationService(db, relationships, bus)
	media := services.NewMediaService(db, storage.NewMemory("https://cdn.test"), cfg.MaxUploadBytes)
	sidebar := services.NewSidebarService(users, relationships, notifications, library)
	announcer := handlers.NewAnnouncer(bus)

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler})
	Setup(app, cfg, db, Handlers{
		Auth:          handlers.NewAuthHandler(services.NewAuthService(db, cfg, services.LogMailer{})),
		Health:        handlers.NewHealthHandler(func() error { return nil }),
		Users:         handlers.NewUserHandler(users, library, media),
		Social:        handlers.NewSocialHandler(relationships, announcer),
		Likes:         handlers.NewLikeHandler(likes, announcer),
		Feed:          handlers.NewFeedHandler(services.NewFeedService(db, relationships, likes), users),
		Games:         handlers.NewGameHandler(games, users, reviews, library),
		Posts:         handlers.NewPostHandler(posts, media),
		Notifications: handlers.NewNotificationHandler(notifications, sidebar),
		Moderation:    handlers.NewModerationHandler(moderation),
		Jobs:          handlers.NewJobHandler(services.NewBackfillService(db, nil, games), games),
		Realtime:      handlers.NewRealtimeHandler(bus),
	})
	return &testServer{app: app, db: db, bus: bus}
}

func token(t *testing.T, u *models.User) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   u.ID.String(),
		"email": u.Email,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

// call sends a JSON request and decodes the JSON answer into a generic map.
func (s *testServer) call(t *testing.T, method, path, tok string, body interface{}, headers ...string) (int, map[string]interface{}) {
	t.Helper()
	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, payload)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	status, body := s.call(t, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ok", body["db"])
}

func TestFeedIsFailSoft(t *testing.T) {
	s := newTestServer(t)
	alice := testutil.CreateUser(t, s.db, "alice")
	testutil.CreatePost(t, s.db, alice.ID, "first clip", time.Now().Add(-time.Minute))

	status, body := s.call(t, http.MethodGet, "/api/feed?tab=for-you&limit=1000", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["items"], 1)

	status, body = s.call(t, http.MethodGet, "/api/feed?cursor=bad!", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["items"], 1, "a bad cursor restarts from the newest item")
	require.Equal(t, false, body["has_more"])

	status, body = s.call(t, http.MethodGet, "/api/users/nobody/feed", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Empty(t, body["items"])

	status, body = s.call(t, http.MethodPost, "/api/feed", token(t, alice), map[string]interface{}{"tab": "following"})
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, body["items"])
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	s := newTestServer(t)
	status, body := s.call(t, http.MethodPost, "/api/posts", "", map[string]string{"body": "hi"})
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, true, body["error"])
}

func TestFollowBlockFlow(t *testing.T) {
	s := newTestServer(t)
	alice := testutil.CreateUser(t, s.db, "alice")
	bob := testutil.CreateUser(t, s.db, "bob")
	aliceTok, bobTok := token(t, alice), token(t, bob)

	status, body := s.call(t, http.MethodPost, "/api/follows/"+bob.ID.String(), aliceTok, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["ok"])

	status, body = s.call(t, http.MethodGet, "/api/follows/ids", aliceTok, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, []interface{}{bob.ID.String()}, body["data"])

	// bob was notified
	_, body = s.call(t, http.MethodGet, "/api/notifications/unread-count", bobTok, nil)
	require.EqualValues(t, 1, body["count"])

	status, _ = s.call(t, http.MethodPost, "/api/blocks/"+alice.ID.String(), bobTok, nil)
	require.Equal(t, http.StatusOK, status)

	// following again is rejected while the old row stays
	status, body = s.call(t, http.MethodPost, "/api/follows/"+bob.ID.String(), aliceTok, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, false, body["ok"])
	require.Equal(t, "blocked", body["reason"])

	_, body = s.call(t, http.MethodGet, "/api/users/"+bob.ID.String()+"/relationship", aliceTok, nil)
	require.Equal(t, true, body["following"])
	require.Equal(t, true, body["blocked_by"])

	status, body = s.call(t, http.MethodPost, "/api/follows/"+alice.ID.String(), aliceTok, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "self", body["reason"])

	status, _ = s.call(t, http.MethodPost, "/api/follows/not-a-uuid", aliceTok, nil)
	require.Equal(t, http.StatusBadRequest, status)
}

func TestLikeToggleBroadcastsToOtherSessions(t *testing.T) {
	s := newTestServer(t)
	alice := testutil.CreateUser(t, s.db, "alice")
	post := testutil.CreatePost(t, s.db, alice.ID, "gg", time.Now())
	tok := token(t, alice)

	origin := s.bus.Subscribe(alice.ID, "tab-a")
	other := s.bus.Subscribe(alice.ID, "tab-b")
	defer origin.Close()
	defer other.Close()

	status, body := s.call(t, http.MethodPost, "/api/posts/"+post.ID.String()+"/like", tok, nil, "X-Session-ID", "tab-a")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["state"])
	require.EqualValues(t, 1, body["like_count"])

	select {
	case msg := <-other.C:
		require.Equal(t, broadcast.LikePost, msg.Action)
		require.Equal(t, post.ID.String(), msg.TargetID)
		require.True(t, msg.State)
	case <-time.After(time.Second):
		t.Fatal("other session got no broadcast")
	}
	select {
	case msg := <-origin.C:
		t.Fatalf("origin session received its own change: %+v", msg)
	default:
	}

	_, body = s.call(t, http.MethodPost, "/api/posts/"+post.ID.String()+"/like", tok, nil, "X-Session-ID", "tab-a")
	require.Equal(t, false, body["state"])
	require.EqualValues(t, 0, body["like_count"])

	status, body = s.call(t, http.MethodPost, "/api/likes/hydrate", "", map[string]interface{}{
		"kind": "post",
		"ids":  []uuid.UUID{post.ID},
	})
	require.Equal(t, http.StatusOK, status)
	require.Empty(t, body["liked"])
}

func TestPostsAndComments(t *testing.T) {
	s := newTestServer(t)
	alice := testutil.CreateUser(t, s.db, "alice")
	bob := testutil.CreateUser(t, s.db, "bob")
	aliceTok, bobTok := token(t, alice), token(t, bob)

	status, body := s.call(t, http.MethodPost, "/api/posts", aliceTok, map[string]interface{}{"body": "what a scam this patch is"})
	require.Equal(t, http.StatusBadRequest, status)
	require.NotEmpty(t, body["message"])

	status, body = s.call(t, http.MethodPost, "/api/posts", aliceTok, map[string]interface{}{
		"body": "new speedrun PB",
		"tags": []string{"#Speedrun"},
	})
	require.Equal(t, http.StatusCreated, status)
	postID := body["id"].(string)

	status, _ = s.call(t, http.MethodPost, "/api/posts/"+postID+"/comments", bobTok, map[string]string{"body": "nice"})
	require.Equal(t, http.StatusCreated, status)

	status, body = s.call(t, http.MethodGet, "/api/posts/"+postID+"/comments", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["items"], 1)

	status, body = s.call(t, http.MethodGet, "/api/posts/"+postID, "", nil)
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 1, body["comment_count"])

	status, _ = s.call(t, http.MethodDelete, "/api/posts/"+postID, bobTok, nil)
	require.Equal(t, http.StatusForbidden, status)
	status, _ = s.call(t, http.MethodDelete, "/api/posts/"+postID, aliceTok, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = s.call(t, http.MethodGet, "/api/posts/"+postID, "", nil)
	require.Equal(t, http.StatusNotFound, status)
}

func TestGamesReviewsAndLibrary(t *testing.T) {
	s := newTestServer(t)
	alice := testutil.CreateUser(t, s.db, "alice")
	testutil.CreateGame(t, s.db, 1942, "The Witcher 3")
	tok := token(t, alice)

	status, _ := s.call(t, http.MethodPut, "/api/games/1942/review", tok, map[string]interface{}{"rating": 140})
	require.Equal(t, http.StatusBadRequest, status)

	status, body := s.call(t, http.MethodPut, "/api/games/1942/review", tok, map[string]interface{}{"rating": 90, "body": "masterpiece"})
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 4.5, body["stars"])

	status, _ = s.call(t, http.MethodPut, "/api/games/1942/library", tok, map[string]string{"status": "wishlisted"})
	require.Equal(t, http.StatusBadRequest, status)
	status, _ = s.call(t, http.MethodPut, "/api/games/1942/library", tok, map[string]string{"status": "playing"})
	require.Equal(t, http.StatusOK, status)

	status, body = s.call(t, http.MethodGet, "/api/games/1942", tok, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "playing", body["library_status"])
	require.EqualValues(t, 1, body["review_count"])

	status, body = s.call(t, http.MethodGet, "/api/games/1942/reviews", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["items"], 1)

	// unknown games cannot be fetched without IGDB credentials
	status, _ = s.call(t, http.MethodGet, "/api/games/7", "", nil)
	require.Equal(t, http.StatusNotFound, status)
	status, _ = s.call(t, http.MethodGet, "/api/games/abc", "", nil)
	require.Equal(t, http.StatusBadRequest, status)

	status, body = s.call(t, http.MethodGet, "/api/games/browse?section=bogus", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "popular", body["section"])

	status, body = s.call(t, http.MethodGet, "/api/search?q=", "", nil)
	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]interface{})
	require.Empty(t, data["games"])
	require.Empty(t, data["users"])

	status, body = s.call(t, http.MethodGet, "/api/search?q=ali&type=users", "", nil)
	require.Equal(t, http.StatusOK, status)
	data = body["data"].(map[string]interface{})
	require.Len(t, data["users"], 1)
	require.Empty(t, data["games"])
}

func TestFeedIgnoresUnusableCursors(t *testing.T) {
	s := newTestServer(t)
	alice := testutil.CreateUser(t, s.db, "alice")
	post := testutil.CreatePost(t, s.db, alice.ID, "only clip", time.Now().Add(-time.Minute))

	for name, body := range map[string]interface{}{
		"malformed object": map[string]interface{}{"cursor": map[string]string{"id": "nope", "created_at": "x"}, "limit": 5},
		"zero object":      map[string]interface{}{"cursor": map[string]string{}},
		"bad token":        map[string]interface{}{"cursor": "bad!"},
		"null":             map[string]interface{}{"cursor": nil},
	} {
		t.Run(name, func(t *testing.T) {
			status, resp := s.call(t, http.MethodPost, "/api/feed", "", body)
			require.Equal(t, http.StatusOK, status)
			items, ok := resp["items"].([]interface{})
			require.True(t, ok)
			require.Len(t, items, 1)
			require.Equal(t, post.ID.String(), items[0].(map[string]interface{})["id"])
		})
	}

	status, resp := s.call(t, http.MethodGet, "/api/users/"+alice.ID.String()+"/feed?cursor=bad!", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, resp["items"], 1)
}

func TestReadsDegradeWhenStoreIsDown(t *testing.T) {
	s := newTestServer(t)
	alice := testutil.CreateUser(t, s.db, "alice")
	testutil.CreatePost(t, s.db, alice.ID, "first clip", time.Now().Add(-time.Minute))
	tok := token(t, alice)

	sqlDB, err := s.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	status, body := s.call(t, http.MethodGet, "/api/feed", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, []interface{}{}, body["items"])
	require.Equal(t, false, body["has_more"])

	status, body = s.call(t, http.MethodGet, "/api/sidebar", tok, nil)
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, body["profile"])
	require.Equal(t, []interface{}{}, body["following_ids"])
	require.EqualValues(t, 0, body["unread_count"])

	status, body = s.call(t, http.MethodGet, "/api/follows/ids", tok, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, []interface{}{}, body["data"])
}

func TestSidebar(t *testing.T) {
	s := newTestServer(t)
	alice := testutil.CreateUser(t, s.db, "alice")

	status, body := s.call(t, http.MethodGet, "/api/sidebar", token(t, alice), nil)
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, body["profile"])
	require.EqualValues(t, 0, body["unread_count"])
}

func TestAdminJobs(t *testing.T) {
	s := newTestServer(t)
	alice := testutil.CreateUser(t, s.db, "alice")
	tok := token(t, alice)

	status, _ := s.call(t, http.MethodPost, "/api/admin/jobs/link-parents", tok, nil)
	require.Equal(t, http.StatusForbidden, status)

	// admitted, but there is no IGDB client to talk to
	status, _ = s.call(t, http.MethodPost, "/api/admin/jobs/link-parents", tok, nil, "X-Admin-Token", "admin-token")
	require.Equal(t, http.StatusServiceUnavailable, status)

	status, body := s.call(t, http.MethodPost, "/api/admin/jobs/reindex", tok, nil, "X-Admin-Token", "admin-token")
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 0, body["processed"])
}

func TestRealtimeRequiresUpgrade(t *testing.T) {
	s := newTestServer(t)
	alice := testutil.CreateUser(t, s.db, "alice")

	status, _ := s.call(t, http.MethodGet, "/api/realtime", "", nil)
	require.Equal(t, http.StatusUnauthorized, status)

	status, _ = s.call(t, http.MethodGet, "/api/realtime?access_token="+token(t, alice), "", nil)
	require.Equal(t, http.StatusUpgradeRequired, status)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.call(t, http.MethodGet, "/api/health", "", nil)

	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(raw), "gamebox_http_request_duration_seconds")
}

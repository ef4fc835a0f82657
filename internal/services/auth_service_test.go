package services

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gamdit/gamebox/internal/config"
	"github.com/gamdit/gamebox/internal/dto"
	"github.com/gamdit/gamebox/internal/models"
	"github.com/gamdit/gamebox/internal/testutil"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

type captureMailer struct {
	mu    sync.Mutex
	links map[string]string
}

func (m *captureMailer) SendMagicLink(_ context.Context, email, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.links == nil {
		m.links = map[string]string{}
	}
	m.links[email] = link
	return nil
}

func (m *captureMailer) token(t *testing.T, email string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := url.Parse(m.links[email])
	require.NoError(t, err)
	return u.Query().Get("token")
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:        "test-secret",
		JWTAccessExpiry:  15 * time.Minute,
		JWTRefreshExpiry: 24 * time.Hour,
		AppURL:           "https://gamebox.test",
		MagicLinkExpiry:  15 * time.Minute,
	}
}

func TestMagicLink_SignInCreatesUserOnce(t *testing.T) {
	db := testutil.NewDB(t)
	mailer := &captureMailer{}
	svc := NewAuthService(db, testConfig(), mailer)
	ctx := context.Background()

	require.NoError(t, svc.RequestMagicLink(ctx, "  Player@Example.com "))
	token := mailer.token(t, "player@example.com")
	require.NotEmpty(t, token)

	resp, err := svc.Verify(ctx, token)
	require.NoError(t, err)
	require.True(t, resp.NeedsUsername)
	require.Equal(t, "player@example.com", resp.User.Email)

	parsed, err := jwt.Parse(resp.AccessToken, func(*jwt.Token) (interface{}, error) { return []byte("test-secret"), nil })
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	require.Equal(t, resp.User.ID.String(), claims["sub"])

	_, err = svc.Verify(ctx, token)
	require.ErrorIs(t, err, ErrInvalidMagicLink, "links are single use")

	require.NoError(t, svc.RequestMagicLink(ctx, "player@example.com"))
	again, err := svc.Verify(ctx, mailer.token(t, "player@example.com"))
	require.NoError(t, err)
	require.Equal(t, resp.User.ID, again.User.ID)

	var n int64
	require.NoError(t, db.Model(&models.User{}).Count(&n).Error)
	require.EqualValues(t, 1, n)
}

func TestMagicLink_Expired(t *testing.T) {
	db := testutil.NewDB(t)
	mailer := &captureMailer{}
	svc := NewAuthService(db, testConfig(), mailer)
	ctx := context.Background()

	require.NoError(t, svc.RequestMagicLink(ctx, "late@example.com"))
	svc.now = func() time.Time { return time.Now().Add(time.Hour) }

	_, err := svc.Verify(ctx, mailer.token(t, "late@example.com"))
	require.ErrorIs(t, err, ErrInvalidMagicLink)
}

func TestMagicLink_InvalidEmail(t *testing.T) {
	svc := NewAuthService(testutil.NewDB(t), testConfig(), &captureMailer{})
	require.ErrorIs(t, svc.RequestMagicLink(context.Background(), "not-an-email"), ErrInvalidEmail)
}

func TestRefreshRotatesToken(t *testing.T) {
	db := testutil.NewDB(t)
	mailer := &captureMailer{}
	svc := NewAuthService(db, testConfig(), mailer)
	ctx := context.Background()

	require.NoError(t, svc.RequestMagicLink(ctx, "a@example.com"))
	first, err := svc.Verify(ctx, mailer.token(t, "a@example.com"))
	require.NoError(t, err)

	second, err := svc.Refresh(ctx, &dto.RefreshRequest{RefreshToken: first.RefreshToken})
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = svc.Refresh(ctx, &dto.RefreshRequest{RefreshToken: first.RefreshToken})
	require.ErrorIs(t, err, ErrInvalidToken)

	require.NoError(t, svc.Logout(ctx, &dto.LogoutRequest{RefreshToken: second.RefreshToken}))
	_, err = svc.Refresh(ctx, &dto.RefreshRequest{RefreshToken: second.RefreshToken})
	require.ErrorIs(t, err, ErrInvalidToken)
}

package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/gamdit/gamebox/internal/config"
	"github.com/gamdit/gamebox/internal/database"
	"github.com/gamdit/gamebox/internal/dto"
	"github.com/gamdit/gamebox/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

var (
	ErrInvalidEmail     = errors.New("a valid email address is required")
	ErrInvalidMagicLink = errors.New("sign-in link is invalid or has expired")
	ErrInvalidToken     = errors.New("invalid or expired refresh token")
)

// Mailer delivers sign-in links.
type Mailer interface {
	SendMagicLink(ctx context.Context, email, link string) error
}

// LogMailer writes links to the log instead of sending mail. It is the
// default when no mail provider is wired up.
type LogMailer struct{}

func (LogMailer) SendMagicLink(_ context.Context, email, link string) error {
	slog.Info("magic link issued", "email", email, "link", link)
	return nil
}

type AuthService struct {
	db     *gorm.DB
	cfg    *config.Config
	mailer Mailer
	now    func() time.Time
}

func NewAuthService(db *gorm.DB, cfg *config.Config, mailer Mailer) *AuthService {
	if mailer == nil {
		mailer = LogMailer{}
	}
	return &AuthService{db: db, cfg: cfg, mailer: mailer, now: time.Now}
}

func normalizeEmail(email string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Address == "" {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(addr.Address), nil
}

// RequestMagicLink stores a hashed single-use token and mails the link. It
// behaves the same whether or not an account exists for the address.
func (s *AuthService) RequestMagicLink(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	raw, err := randomToken()
	if err != nil {
		return err
	}

	link := models.MagicLink{
		Email:     email,
		TokenHash: hashToken(raw),
		ExpiresAt: s.now().Add(s.cfg.MagicLinkExpiry),
	}
	if err := s.db.WithContext(ctx).Create(&link).Error; err != nil {
		return fmt.Errorf("failed to store magic link: %w", err)
	}

	target := s.cfg.AppURL + "/auth/callback?token=" + url.QueryEscape(raw)
	if err := s.mailer.SendMagicLink(ctx, email, target); err != nil {
		return fmt.Errorf("failed to send magic link: %w", err)
	}
	return nil
}

// Verify consumes a magic link and signs the user in, creating the account on
// first use.
func (s *AuthService) Verify(ctx context.Context, token string) (*dto.AuthResponse, error) {
	if token == "" {
		return nil, ErrInvalidMagicLink
	}
	db := s.db.WithContext(ctx)
	now := s.now()

	var link models.MagicLink
	if err := db.Where("token_hash = ? AND used_at IS NULL", hashToken(token)).First(&link).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, ErrInvalidMagicLink
		}
		return nil, fmt.Errorf("failed to load magic link: %w", err)
	}
	if now.After(link.ExpiresAt) {
		return nil, ErrInvalidMagicLink
	}

	// the used_at guard keeps two concurrent verifications from both winning
	res := db.Model(&models.MagicLink{}).
		Where("id = ? AND used_at IS NULL", link.ID).
		Update("used_at", now)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to consume magic link: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrInvalidMagicLink
	}

	user, err := s.findOrCreateUser(ctx, link.Email)
	if err != nil {
		return nil, err
	}
	return s.generateTokenPair(ctx, user)
}

func (s *AuthService) findOrCreateUser(ctx context.Context, email string) (*models.User, error) {
	db := s.db.WithContext(ctx)

	var user models.User
	err := db.Where("email = ?", email).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !database.IsNotFound(err) {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	user = models.User{Email: email, DisplayName: strings.Split(email, "@")[0]}
	if err := db.Create(&user).Error; err != nil {
		if !database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		// created by a concurrent verification
		if err := db.Where("email = ?", email).First(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to load user: %w", err)
		}
	}
	return &user, nil
}

func (s *AuthService) Refresh(ctx context.Context, req *dto.RefreshRequest) (*dto.AuthResponse, error) {
	db := s.db.WithContext(ctx)
	tokenHash := hashToken(req.RefreshToken)

	var stored models.RefreshToken
	if err := db.Where("token_hash = ? AND revoked = ?", tokenHash, false).First(&stored).Error; err != nil {
		return nil, ErrInvalidToken
	}

	if s.now().After(stored.ExpiresAt) {
		db.Model(&stored).Update("revoked", true)
		return nil, ErrInvalidToken
	}

	db.Model(&stored).Update("revoked", true)

	var user models.User
	if err := db.First(&user, "id = ?", stored.UserID).Error; err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	return s.generateTokenPair(ctx, &user)
}

func (s *AuthService) Logout(ctx context.Context, req *dto.LogoutRequest) error {
	return s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token_hash = ?", hashToken(req.RefreshToken)).
		Update("revoked", true).Error
}

func (s *AuthService) generateTokenPair(ctx context.Context, user *models.User) (*dto.AuthResponse, error) {
	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.generateRefreshToken(ctx, user)
	if err != nil {
		return nil, err
	}

	return &dto.AuthResponse{
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		User:          userResponse(user),
		NeedsUsername: user.Username == nil,
	}, nil
}

func (s *AuthService) generateAccessToken(user *models.User) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":      user.ID.String(),
		"email":    user.Email,
		"username": user.Handle(),
		"iat":      now.Unix(),
		"exp":      now.Add(s.cfg.JWTAccessExpiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

func (s *AuthService) generateRefreshToken(ctx context.Context, user *models.User) (string, error) {
	rawToken, err := randomToken()
	if err != nil {
		return "", err
	}

	record := models.RefreshToken{
		UserID:    user.ID,
		TokenHash: hashToken(rawToken),
		ExpiresAt: s.now().Add(s.cfg.JWTRefreshExpiry),
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}

	return rawToken, nil
}

func randomToken() (string, error) {
	rawBytes := make([]byte, 32)
	if _, err := rand.Read(rawBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(rawBytes), nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", h)
}

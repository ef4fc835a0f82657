package igdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
)

// expirySkew refreshes tokens this long before Twitch says they expire.
const expirySkew = 60 * time.Second

// TokenFetcher obtains a fresh app access token.
type TokenFetcher func(ctx context.Context) (*oauth2.Token, error)

// ClientCredentials fetches tokens from the Twitch OAuth endpoint.
func ClientCredentials(clientID, clientSecret, tokenURL string) TokenFetcher {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	return cfg.Token
}

// TokenCache holds one app access token. Concurrent callers that find it
// missing or stale share a single refresh.
type TokenCache struct {
	fetch TokenFetcher
	now   func() time.Time
	group singleflight.Group

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewTokenCache(fetch TokenFetcher) *TokenCache {
	return &TokenCache{fetch: fetch, now: time.Now}
}

func (c *TokenCache) Token(ctx context.Context) (string, error) {
	if tok, ok := c.cached(); ok {
		return tok, nil
	}

	v, err, _ := c.group.Do("token", func() (interface{}, error) {
		if tok, ok := c.cached(); ok {
			return tok, nil
		}
		t, err := c.fetch(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch igdb token: %w", err)
		}
		if t.AccessToken == "" {
			return nil, fmt.Errorf("igdb token response had no access token")
		}

		expiresAt := t.Expiry
		if expiresAt.IsZero() {
			expiresAt = c.now().Add(time.Hour)
		}
		c.mu.Lock()
		c.token = t.AccessToken
		c.expiresAt = expiresAt.Add(-expirySkew)
		c.mu.Unlock()
		return t.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached token, e.g. after the API answered 401.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.expiresAt = time.Time{}
}

func (c *TokenCache) cached() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.expiresAt) {
		return c.token, true
	}
	return "", false
}

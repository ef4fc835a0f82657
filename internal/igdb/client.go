// Package igdb talks to the IGDB v4 API using a Twitch app access token.
package igdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// GameFields is requested for every game lookup.
var GameFields = []string{
	"name", "slug", "summary", "category", "first_release_date",
	"cover.image_id", "alternative_names.name", "genres.name", "platforms.name",
	"version_parent", "parent_game",
}

var ErrUnauthorized = errors.New("igdb rejected the access token")

type Named struct {
	Name string `json:"name"`
}

type Game struct {
	ID               int64   `json:"id"`
	Name             string  `json:"name"`
	Slug             string  `json:"slug"`
	Summary          string  `json:"summary"`
	Category         int     `json:"category"`
	FirstReleaseDate int64   `json:"first_release_date"`
	Cover            *Cover  `json:"cover"`
	AlternativeNames []Named `json:"alternative_names"`
	Genres           []Named `json:"genres"`
	Platforms        []Named `json:"platforms"`
	VersionParent    int64   `json:"version_parent"`
	ParentGame       int64   `json:"parent_game"`
}

type Cover struct {
	ImageID string `json:"image_id"`
}

// CoverURL is the t_cover_big rendition, or "" without a cover.
func (g *Game) CoverURL() string {
	if g.Cover == nil || g.Cover.ImageID == "" {
		return ""
	}
	return "https://images.igdb.com/igdb/image/upload/t_cover_big/" + g.Cover.ImageID + ".jpg"
}

func (g *Game) ReleaseYear() *int {
	if g.FirstReleaseDate <= 0 {
		return nil
	}
	y := time.Unix(g.FirstReleaseDate, 0).UTC().Year()
	return &y
}

// ParentID is the canonical game this row is an edition or variant of.
func (g *Game) ParentID() *int64 {
	switch {
	case g.VersionParent > 0:
		return &g.VersionParent
	case g.ParentGame > 0:
		return &g.ParentGame
	}
	return nil
}

func names(in []Named) []string {
	out := make([]string, 0, len(in))
	for _, n := range in {
		if n.Name != "" {
			out = append(out, n.Name)
		}
	}
	return out
}

func (g *Game) Aliases() []string {
	return names(g.AlternativeNames)
}

func (g *Game) GenreNames() []string {
	return names(g.Genres)
}

func (g *Game) PlatformNames() []string {
	return names(g.Platforms)
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
	tokens     *TokenCache
}

func NewClient(baseURL, clientID string, tokens *TokenCache, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		clientID:   clientID,
		tokens:     tokens,
	}
}

// Games runs q against the games endpoint. A 401 drops the cached token and
// retries once with a fresh one.
func (c *Client) Games(ctx context.Context, q *Query) ([]Game, error) {
	var games []Game
	err := c.post(ctx, "/games", q.String(), &games)
	if errors.Is(err, ErrUnauthorized) {
		c.tokens.Invalidate()
		err = c.post(ctx, "/games", q.String(), &games)
	}
	if err != nil {
		return nil, err
	}
	return games, nil
}

func (c *Client) Search(ctx context.Context, term string, limit int) ([]Game, error) {
	return c.Games(ctx, NewQuery(GameFields...).Search(term).Limit(limit))
}

// GetByIDs looks up games in batches of at most 500, the API's page cap.
func (c *Client) GetByIDs(ctx context.Context, ids []int64) ([]Game, error) {
	const batch = 500
	var out []Game
	for start := 0; start < len(ids); start += batch {
		end := start + batch
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]
		games, err := c.Games(ctx, NewQuery(GameFields...).WhereIDs(chunk).Limit(len(chunk)))
		if err != nil {
			return nil, err
		}
		out = append(out, games...)
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path, body string, dst interface{}) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build igdb request: %w", err)
	}
	req.Header.Set("Client-ID", c.clientID)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("igdb request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("igdb %s returned status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode igdb response: %w", err)
	}
	return nil
}

package igdb

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestQuery_String(t *testing.T) {
	q := NewQuery("name", "cover.image_id").
		Search(`zelda "breath"; drop`).
		Where("category = 0").
		WhereIDs([]int64{1, 2}).
		Limit(10)
	require.Equal(t,
		`fields name,cover.image_id; search "zelda breath drop"; where category = 0 & id = (1,2); limit 10;`,
		q.String())

	require.Equal(t, "fields *;", NewQuery().String())
}

func TestTokenCache_SingleFetchForConcurrentCallers(t *testing.T) {
	var fetches atomic.Int32
	release := make(chan struct{})
	cache := NewTokenCache(func(ctx context.Context) (*oauth2.Token, error) {
		fetches.Add(1)
		<-release
		return &oauth2.Token{AccessToken: "tok", Expiry: time.Now().Add(time.Hour)}, nil
	})

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := cache.Token(context.Background())
			require.NoError(t, err)
			results[i] = tok
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	require.EqualValues(t, 1, fetches.Load())
	for _, r := range results {
		require.Equal(t, "tok", r)
	}
}

func TestTokenCache_RefreshesAfterExpiry(t *testing.T) {
	var fetches atomic.Int32
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewTokenCache(func(ctx context.Context) (*oauth2.Token, error) {
		n := fetches.Add(1)
		return &oauth2.Token{AccessToken: string(rune('a' + n - 1)), Expiry: now.Add(10 * time.Minute)}, nil
	})
	cache.now = func() time.Time { return now }

	tok, err := cache.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "a", tok)

	// inside the early-expiry window
	cache.now = func() time.Time { return now.Add(9*time.Minute + 30*time.Second) }
	tok, err = cache.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "b", tok)

	cache.Invalidate()
	tok, err = cache.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "c", tok)
}

func newTestServer(t *testing.T, handler http.HandlerFunc) (*Client, *atomic.Int32) {
	t.Helper()
	var tokenFetches atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		require.Equal(t, "cid", r.Form.Get("client_id"))
		n := tokenFetches.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "token-" + string(rune('0'+n)),
			"expires_in":   3600,
			"token_type":   "bearer",
		})
	})
	mux.HandleFunc("/v4/games", handler)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	tokens := NewTokenCache(ClientCredentials("cid", "secret", srv.URL+"/oauth2/token"))
	return NewClient(srv.URL+"/v4", "cid", tokens, 5*time.Second), &tokenFetches
}

func TestClient_Search(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "cid", r.Header.Get("Client-ID"))
		require.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.Contains(t, string(body), `search "hades";`)
		w.Write([]byte(`[{"id":1020,"name":"Hades","slug":"hades","first_release_date":1600300800,
			"cover":{"image_id":"co1abc"},"alternative_names":[{"name":"Hades: Battle Out of Hell"}],
			"genres":[{"name":"Roguelike"}],"platforms":[{"name":"PC"}]},
			{"id":2000,"name":"Hades Deluxe","version_parent":1020}]`))
	})

	games, err := client.Search(context.Background(), "hades", 5)
	require.NoError(t, err)
	require.Len(t, games, 2)

	g := games[0]
	require.Equal(t, "https://images.igdb.com/igdb/image/upload/t_cover_big/co1abc.jpg", g.CoverURL())
	require.Equal(t, 2020, *g.ReleaseYear())
	require.Equal(t, []string{"Hades: Battle Out of Hell"}, g.Aliases())
	require.Equal(t, []string{"Roguelike"}, g.GenreNames())
	require.Nil(t, g.ParentID())
	require.EqualValues(t, 1020, *games[1].ParentID())
	require.Equal(t, "", games[1].CoverURL())
	require.Nil(t, games[1].ReleaseYear())
}

func TestClient_RetriesOnceAfterUnauthorized(t *testing.T) {
	var calls atomic.Int32
	client, tokenFetches := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		require.Equal(t, "Bearer token-2", r.Header.Get("Authorization"))
		w.Write([]byte(`[{"id":1,"name":"Tetris"}]`))
	})

	games, err := client.GetByIDs(context.Background(), []int64{1})
	require.NoError(t, err)
	require.Len(t, games, 1)
	require.EqualValues(t, 2, tokenFetches.Load())
}

func TestClient_ServerError(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := client.Search(context.Background(), "x", 1)
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 500")
}

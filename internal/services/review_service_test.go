package services

import (
	"context"
	"testing"
	"time"

	"github.com/gamdit/gamebox/internal/dto"
	"github.com/gamdit/gamebox/internal/models"
	"github.com/gamdit/gamebox/internal/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newReviewService(t *testing.T) (*ReviewService, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	rel := NewRelationshipService(db, nil)
	likes := NewLikeService(db, nil)
	return NewReviewService(db, NewGameService(db, nil, nil), likes, rel, NewModerationService(db)), db
}

func TestReviewUpsert(t *testing.T) {
	svc, db := newReviewService(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, db, "critic")
	testutil.CreateGame(t, db, 100, "Disco Elysium")

	_, err := svc.Upsert(ctx, u.ID, 100, &dto.ReviewRequest{Rating: 101})
	require.ErrorIs(t, err, ErrInvalidRating)
	_, err = svc.Upsert(ctx, u.ID, 100, &dto.ReviewRequest{Rating: -1})
	require.ErrorIs(t, err, ErrInvalidRating)

	first, err := svc.Upsert(ctx, u.ID, 100, &dto.ReviewRequest{Rating: 80, Body: "great writing"})
	require.NoError(t, err)
	require.InDelta(t, 4.0, first.Stars, 0.001)

	second, err := svc.Upsert(ctx, u.ID, 100, &dto.ReviewRequest{Rating: 100, Body: "a masterpiece"})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 100, second.Rating)
	require.Equal(t, "a masterpiece", second.Body)

	var n int64
	require.NoError(t, db.Model(&models.Review{}).Count(&n).Error)
	require.EqualValues(t, 1, n)

	require.NoError(t, svc.Delete(ctx, u.ID, 100))
	require.ErrorIs(t, svc.Delete(ctx, u.ID, 100), ErrReviewNotFound)
}

func TestReviewListForGame(t *testing.T) {
	svc, db := newReviewService(t)
	ctx := context.Background()
	g := testutil.CreateGame(t, db, 200, "Tetris")
	viewer := testutil.CreateUser(t, db, "viewer")
	blocked := testutil.CreateUser(t, db, "blocked")

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	var authors []*models.User
	for i := 0; i < 3; i++ {
		u := testutil.CreateUser(t, db, "fan"+string(rune('a'+i)))
		authors = append(authors, u)
		testutil.CreateReview(t, db, u.ID, g.ID, 60+i*10, base.Add(time.Duration(i)*time.Minute))
	}
	testutil.CreateReview(t, db, blocked.ID, g.ID, 0, base.Add(time.Hour))
	require.NoError(t, svc.rel.Block(ctx, viewer.ID, blocked.ID))

	newest := authors[2]
	var newestReview models.Review
	require.NoError(t, db.Where("user_id = ?", newest.ID).First(&newestReview).Error)
	_, err := svc.likes.Toggle(ctx, LikeReview, viewer.ID, newestReview.ID)
	require.NoError(t, err)

	page, err := svc.ListForGame(ctx, &viewer.ID, 200, nil, 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.True(t, page.HasMore)
	require.Equal(t, newestReview.ID, page.Items[0].ID)
	require.True(t, page.Items[0].Liked)
	require.EqualValues(t, 1, page.Items[0].LikeCount)

	rest, err := svc.ListForGame(ctx, &viewer.ID, 200, page.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, rest.Items, 1)
	require.False(t, rest.HasMore)

	anon, err := svc.ListForGame(ctx, nil, 200, nil, 10)
	require.NoError(t, err)
	require.Len(t, anon.Items, 4)

	unknown, err := svc.ListForGame(ctx, nil, 9999, nil, 10)
	require.NoError(t, err)
	require.Empty(t, unknown.Items)
}

func TestLibrary(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewLibraryService(db, NewGameService(db, nil, nil))
	ctx := context.Background()
	u := testutil.CreateUser(t, db, "player")
	testutil.CreateGame(t, db, 1, "Factorio")
	testutil.CreateGame(t, db, 2, "Rimworld")

	_, err := svc.Set(ctx, u.ID, 1, "wishlist")
	require.ErrorIs(t, err, ErrInvalidStatus)

	_, err = svc.Set(ctx, u.ID, 1, "backlog")
	require.NoError(t, err)
	entry, err := svc.Set(ctx, u.ID, 1, "playing")
	require.NoError(t, err)
	require.Equal(t, "Factorio", entry.Game.Name)
	_, err = svc.Set(ctx, u.ID, 2, "completed")
	require.NoError(t, err)

	all, err := svc.List(ctx, u.ID, "")
	require.NoError(t, err)
	require.Len(t, all, 2)

	playing, err := svc.List(ctx, u.ID, "playing")
	require.NoError(t, err)
	require.Len(t, playing, 1)
	require.Equal(t, int64(1), playing[0].Game.IGDBID)

	counts, err := svc.Counts(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, map[string]int64{"backlog": 0, "playing": 1, "completed": 1, "dropped": 0}, counts)

	require.NoError(t, svc.Remove(ctx, u.ID, 1))
	require.NoError(t, svc.Remove(ctx, u.ID, 1))
	all, err = svc.List(ctx, u.ID, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
}

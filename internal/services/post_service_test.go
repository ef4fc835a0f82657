package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gamdit/gamebox/internal/dto"
	"github.com/gamdit/gamebox/internal/events"
	"github.com/gamdit/gamebox/internal/models"
	"github.com/gamdit/gamebox/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newPostService(t *testing.T) (*PostService, *gorm.DB, *recordingPublisher) {
	t.Helper()
	db := testutil.NewDB(t)
	pub := &recordingPublisher{}
	games := NewGameService(db, nil, nil)
	svc := NewPostService(db, games, NewRelationshipService(db, nil), NewModerationService(db), pub)
	return svc, db, pub
}

func TestNormalizeTags(t *testing.T) {
	tags, err := NormalizeTags([]string{" #FPS", "fps", "", "Speedrun", "#speedrun"})
	require.NoError(t, err)
	require.Equal(t, []string{"fps", "speedrun"}, tags)

	long := strings.Repeat("a", MaxTagLength)
	tags, err = NormalizeTags([]string{long + "-one", long + "-two", long})
	require.NoError(t, err)
	require.Equal(t, []string{long}, tags)

	many := make([]string, MaxPostTags+1)
	for i := range many {
		many[i] = strings.Repeat("x", i+1)
	}
	_, err = NormalizeTags(many)
	require.ErrorIs(t, err, ErrTooManyTags)
}

func TestCreatePost_Validation(t *testing.T) {
	svc, db, _ := newPostService(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, db, "poster")

	cases := []struct {
		name string
		req  dto.CreatePostRequest
		want error
	}{
		{"empty", dto.CreatePostRequest{Body: "   "}, ErrEmptyPost},
		{"too long", dto.CreatePostRequest{Body: strings.Repeat("a b ", MaxPostBody)}, ErrPostTooLong},
		{"too many media", dto.CreatePostRequest{MediaURLs: []string{"https://a/1.png", "https://a/2.png", "https://a/3.png", "https://a/4.png", "https://a/5.png"}}, ErrTooManyMedia},
		{"bad media url", dto.CreatePostRequest{MediaURLs: []string{"javascript:alert(1)"}}, ErrInvalidMediaURL},
		{"unknown game", dto.CreatePostRequest{Body: "gg", GameIGDBID: ptr(int64(99))}, ErrGameNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, u.ID, &tc.req)
			require.ErrorIs(t, err, tc.want)
		})
	}

	_, err := svc.Create(ctx, u.ID, &dto.CreatePostRequest{Body: "dm me at someone@example.com"})
	var rejected *ContentRejectedError
	require.ErrorAs(t, err, &rejected)
	require.Equal(t, "contact_info_not_allowed", rejected.Reason)

	var n int64
	require.NoError(t, db.Model(&models.Post{}).Count(&n).Error)
	require.Zero(t, n)
}

func TestCreatePost_Stored(t *testing.T) {
	svc, db, _ := newPostService(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, db, "clipper")
	testutil.CreateGame(t, db, 500, "Apex Legends")

	item, err := svc.Create(ctx, u.ID, &dto.CreatePostRequest{
		Body:       "  clutch 1v3  ",
		Tags:       []string{"Apex", "apex", "Clutch"},
		MediaURLs:  []string{"https://cdn.gamebox.gg/media/x/clip.mp4"},
		GameIGDBID: ptr(int64(500)),
	})
	require.NoError(t, err)
	require.Equal(t, "clutch 1v3", item.Body)
	require.Equal(t, []string{"apex", "clutch"}, item.Tags)
	require.Equal(t, string(models.MediaVideo), item.MediaKind)
	require.NotNil(t, item.Game)
	require.Equal(t, "Apex Legends", item.Game.Name)
	require.Equal(t, "clipper", *item.Author.Username)

	got, err := svc.Get(ctx, &u.ID, item.ID)
	require.NoError(t, err)
	require.Equal(t, item.ID, got.ID)
	require.False(t, got.LikedByViewer)
}

func TestDeletePost_OwnerOnly(t *testing.T) {
	svc, db, _ := newPostService(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, "owner")
	other := testutil.CreateUser(t, db, "other")
	post := testutil.CreatePost(t, db, owner.ID, "mine", time.Now())
	_, err := svc.AddComment(ctx, other.ID, post.ID, "nice")
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(ctx, other.ID, post.ID), ErrForbidden)
	require.NoError(t, svc.Delete(ctx, owner.ID, post.ID))
	require.ErrorIs(t, svc.Delete(ctx, owner.ID, post.ID), ErrPostNotFound)

	var comments int64
	require.NoError(t, db.Model(&models.Comment{}).Count(&comments).Error)
	require.Zero(t, comments)
}

func TestComments_CountsAndEvents(t *testing.T) {
	svc, db, pub := newPostService(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, "owner")
	fan := testutil.CreateUser(t, db, "fan")
	post := testutil.CreatePost(t, db, owner.ID, "first", time.Now())

	c1, err := svc.AddComment(ctx, fan.ID, post.ID, "wow")
	require.NoError(t, err)
	_, err = svc.AddComment(ctx, owner.ID, post.ID, "thanks")
	require.NoError(t, err)

	var stored models.Post
	require.NoError(t, db.First(&stored, "id = ?", post.ID).Error)
	require.Equal(t, 2, stored.CommentCount)
	// the owner replying to themselves is not an event
	require.Equal(t, []events.Type{events.Comment}, pub.Types())

	page, err := svc.ListComments(ctx, post.ID, nil, 1)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.True(t, page.HasMore)
	next, err := svc.ListComments(ctx, post.ID, page.NextCursor, 1)
	require.NoError(t, err)
	require.Len(t, next.Items, 1)
	require.False(t, next.HasMore)
	require.NotEqual(t, page.Items[0].ID, next.Items[0].ID)

	require.ErrorIs(t, svc.DeleteComment(ctx, uuid.New(), c1.ID), ErrForbidden)
	// post owners may remove comments on their post
	require.NoError(t, svc.DeleteComment(ctx, owner.ID, c1.ID))
	require.NoError(t, db.First(&stored, "id = ?", post.ID).Error)
	require.Equal(t, 1, stored.CommentCount)

	_, err = svc.AddComment(ctx, fan.ID, uuid.New(), "hello?")
	require.ErrorIs(t, err, ErrPostNotFound)
	_, err = svc.AddComment(ctx, fan.ID, post.ID, "  ")
	require.ErrorIs(t, err, ErrEmptyComment)
}

func TestComments_BlockedCommenter(t *testing.T) {
	svc, db, _ := newPostService(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, "owner")
	troll := testutil.CreateUser(t, db, "troll")
	post := testutil.CreatePost(t, db, owner.ID, "post", time.Now())
	require.NoError(t, svc.rel.Block(ctx, owner.ID, troll.ID))

	_, err := svc.AddComment(ctx, troll.ID, post.ID, "hi")
	require.ErrorIs(t, err, ErrBlocked)

	_, err = svc.Get(ctx, &troll.ID, post.ID)
	require.ErrorIs(t, err, ErrPostNotFound)
}

func ptr[T any](v T) *T {
	return &v
}

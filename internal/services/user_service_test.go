package services

import (
	"context"
	"testing"

	"github.com/gamdit/gamebox/internal/dto"
	"github.com/gamdit/gamebox/internal/models"
	"github.com/gamdit/gamebox/internal/testutil"
	"github.com/stretchr/testify/require"
)

func TestNormalizeUsername(t *testing.T) {
	name, err := NormalizeUsername("  Speed_Runner42 ")
	require.NoError(t, err)
	require.Equal(t, "speed_runner42", name)

	for _, bad := range []string{"ab", "has space", "dash-name", "waytoolongusername_abcdef", "admin"} {
		_, err := NormalizeUsername(bad)
		require.ErrorIs(t, err, ErrInvalidUsername, bad)
	}
}

func TestSetUsername(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewUserService(db, NewRelationshipService(db, nil))
	ctx := context.Background()

	fresh := &models.User{Email: "new@example.com"}
	require.NoError(t, db.Create(fresh).Error)
	testutil.CreateUser(t, db, "taken")

	_, err := svc.SetUsername(ctx, fresh.ID, "TAKEN")
	require.ErrorIs(t, err, ErrUsernameTaken)

	me, err := svc.SetUsername(ctx, fresh.ID, "Newbie")
	require.NoError(t, err)
	require.Equal(t, "newbie", *me.Username)
}

func TestUpdateProfile(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewUserService(db, NewRelationshipService(db, nil))
	ctx := context.Background()
	u := testutil.CreateUser(t, db, "alice")

	name := "Alice W."
	me, err := svc.UpdateProfile(ctx, u.ID, &dto.UpdateProfileRequest{DisplayName: &name})
	require.NoError(t, err)
	require.Equal(t, "Alice W.", me.DisplayName)

	bad := "javascript:alert(1)"
	_, err = svc.UpdateProfile(ctx, u.ID, &dto.UpdateProfileRequest{AvatarURL: &bad})
	require.ErrorIs(t, err, ErrInvalidAvatarURL)
}

func TestProfileAndSearch(t *testing.T) {
	db := testutil.NewDB(t)
	rel := NewRelationshipService(db, nil)
	svc := NewUserService(db, rel)
	ctx := context.Background()
	a := testutil.CreateUser(t, db, "mario")
	b := testutil.CreateUser(t, db, "supermario")
	testutil.CreateUser(t, db, "luigi")

	_, err := rel.Follow(ctx, b.ID, a.ID)
	require.NoError(t, err)

	p, err := svc.Profile(ctx, &b.ID, "Mario")
	require.NoError(t, err)
	require.EqualValues(t, 1, p.FollowerCount)
	require.True(t, p.Relationship.Following)

	_, err = svc.Profile(ctx, nil, "nobody")
	require.ErrorIs(t, err, ErrUserNotFound)

	users, err := svc.SearchUsers(ctx, "MARIO", 10)
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, "mario", *users[0].Username)

	none, err := svc.SearchUsers(ctx, "%", 10)
	require.NoError(t, err)
	require.Empty(t, none)
}

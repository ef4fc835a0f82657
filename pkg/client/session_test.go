package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gamdit/gamebox/internal/dto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// fakeAPI keeps server-side truth in memory.
type fakeAPI struct {
	mu        sync.Mutex
	liked     map[uuid.UUID]bool
	counts    map[uuid.UUID]int64
	following map[uuid.UUID]bool
	muted     map[uuid.UUID]bool
	blockedBy map[uuid.UUID]bool
	fail      error
	calls     int
	// gate, when set, holds ToggleLike until a value arrives.
	gate chan struct{}
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		liked:     map[uuid.UUID]bool{},
		counts:    map[uuid.UUID]int64{},
		following: map[uuid.UUID]bool{},
		muted:     map[uuid.UUID]bool{},
		blockedBy: map[uuid.UUID]bool{},
	}
}

func (f *fakeAPI) ToggleLike(_ context.Context, _ string, _ Kind, id uuid.UUID) (*dto.ToggleResponse, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail != nil {
		return nil, f.fail
	}
	f.liked[id] = !f.liked[id]
	if f.liked[id] {
		f.counts[id]++
	} else {
		f.counts[id]--
	}
	return &dto.ToggleResponse{OK: true, State: f.liked[id], LikeCount: f.counts[id]}, nil
}

func (f *fakeAPI) Follow(_ context.Context, _ string, id uuid.UUID) (*dto.FollowResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail != nil {
		return nil, f.fail
	}
	if f.blockedBy[id] {
		return &dto.FollowResponse{OK: false, Reason: "blocked"}, nil
	}
	f.following[id] = true
	return &dto.FollowResponse{OK: true, Following: true}, nil
}

func (f *fakeAPI) Unfollow(_ context.Context, _ string, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail != nil {
		return f.fail
	}
	delete(f.following, id)
	return nil
}

func (f *fakeAPI) SetMute(_ context.Context, _ string, id uuid.UUID, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail != nil {
		return f.fail
	}
	f.muted[id] = on
	return nil
}

func (f *fakeAPI) SetBlock(_ context.Context, _ string, _ uuid.UUID, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.fail
}

func (f *fakeAPI) Relationship(_ context.Context, id uuid.UUID) (*dto.RelationshipState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dto.RelationshipState{Following: f.following[id], Muted: f.muted[id], BlockedBy: f.blockedBy[id]}, nil
}

func (f *fakeAPI) Hydrate(_ context.Context, _ Kind, ids []uuid.UUID) (*dto.HydrateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res := &dto.HydrateResponse{Liked: map[uuid.UUID]bool{}, Counts: map[uuid.UUID]dto.Counts{}}
	for _, id := range ids {
		res.Liked[id] = f.liked[id]
		res.Counts[id] = dto.Counts{Likes: f.counts[id]}
	}
	return res, nil
}

func (f *fakeAPI) setFail(err error) {
	f.mu.Lock()
	f.fail = err
	f.mu.Unlock()
}

func newProfile(t *testing.T, api API) *Profile {
	t.Helper()
	p := NewProfile(api)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestToggleLikeCommitsAndBroadcasts(t *testing.T) {
	api := newFakeAPI()
	p := newProfile(t, api)
	a, b := p.NewSession(), p.NewSession()
	post := uuid.New()

	got, err := a.ToggleLike(context.Background(), KindPost, post)
	require.NoError(t, err)
	require.Equal(t, LikeState{Liked: true, Count: 1}, got)
	require.Equal(t, got, a.State().Like(KindPost, post))

	require.Eventually(t, func() bool {
		return b.State().Like(KindPost, post) == LikeState{Liked: true, Count: 1}
	}, time.Second, 5*time.Millisecond)

	// toggling twice restores the original state
	got, err = a.ToggleLike(context.Background(), KindPost, post)
	require.NoError(t, err)
	require.Equal(t, LikeState{}, got)
	require.Eventually(t, func() bool {
		return b.State().Like(KindPost, post) == LikeState{}
	}, time.Second, 5*time.Millisecond)
}

func TestToggleLikeRollsBackWithoutBroadcast(t *testing.T) {
	api := newFakeAPI()
	p := newProfile(t, api)
	a, b := p.NewSession(), p.NewSession()
	post := uuid.New()

	api.setFail(errors.New("network down"))
	got, err := a.ToggleLike(context.Background(), KindReview, post)
	require.Error(t, err)
	require.Equal(t, LikeState{}, got)
	require.Equal(t, LikeState{}, a.State().Like(KindReview, post))
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, LikeState{}, b.State().Like(KindReview, post))

	// a later successful change is the first thing b hears about
	api.setFail(nil)
	_, err = a.ToggleLike(context.Background(), KindReview, post)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return b.State().Like(KindReview, post).Liked
	}, time.Second, 5*time.Millisecond)
}

func TestToggleLikeShowsTentativeState(t *testing.T) {
	api := newFakeAPI()
	api.gate = make(chan struct{})
	p := newProfile(t, api)
	a := p.NewSession()
	post := uuid.New()

	done := make(chan error, 1)
	go func() {
		_, err := a.ToggleLike(context.Background(), KindPost, post)
		done <- err
	}()

	require.Eventually(t, func() bool {
		return a.State().Like(KindPost, post).Liked
	}, time.Second, 5*time.Millisecond)

	close(api.gate)
	require.NoError(t, <-done)
	require.Equal(t, LikeState{Liked: true, Count: 1}, a.State().Like(KindPost, post))
}

func TestToggleFollowRejected(t *testing.T) {
	api := newFakeAPI()
	target := uuid.New()
	api.blockedBy[target] = true
	p := newProfile(t, api)
	a := p.NewSession()

	following, err := a.ToggleFollow(context.Background(), target)
	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	require.Equal(t, "blocked", rejected.Reason)
	require.False(t, following)
	require.False(t, a.State().Relationship(target).Following)
}

func TestToggleFollowSyncsSessions(t *testing.T) {
	api := newFakeAPI()
	target := uuid.New()
	p := newProfile(t, api)
	a, b := p.NewSession(), p.NewSession()

	following, err := a.ToggleFollow(context.Background(), target)
	require.NoError(t, err)
	require.True(t, following)
	require.Eventually(t, func() bool {
		return b.State().Relationship(target).Following
	}, time.Second, 5*time.Millisecond)

	following, err = b.ToggleFollow(context.Background(), target)
	require.NoError(t, err)
	require.False(t, following)
	require.Eventually(t, func() bool {
		return !a.State().Relationship(target).Following
	}, time.Second, 5*time.Millisecond)
}

func TestSetMuteAndBlock(t *testing.T) {
	api := newFakeAPI()
	target := uuid.New()
	p := newProfile(t, api)
	a, b := p.NewSession(), p.NewSession()

	require.NoError(t, a.SetMute(context.Background(), target, true))
	require.True(t, a.State().Relationship(target).Muted)
	require.Eventually(t, func() bool {
		return b.State().Relationship(target).Muted
	}, time.Second, 5*time.Millisecond)

	api.setFail(errors.New("boom"))
	require.Error(t, a.SetBlock(context.Background(), target, true))
	require.False(t, a.State().Relationship(target).IBlocked)
	require.True(t, a.State().Relationship(target).Muted)
}

func TestSessionsOfOtherProfilesAreIsolated(t *testing.T) {
	api := newFakeAPI()
	a := newProfile(t, api).NewSession()
	other := newProfile(t, api).NewSession()
	post := uuid.New()

	_, err := a.ToggleLike(context.Background(), KindPost, post)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, LikeState{}, other.State().Like(KindPost, post))
}

func TestRefetch(t *testing.T) {
	api := newFakeAPI()
	user, post := uuid.New(), uuid.New()
	api.following[user] = true
	api.liked[post] = true
	api.counts[post] = 7
	a := newProfile(t, api).NewSession()

	require.NoError(t, a.Refetch(context.Background(), []uuid.UUID{user}, []uuid.UUID{post}, nil))
	require.True(t, a.State().Relationship(user).Following)
	require.Equal(t, LikeState{Liked: true, Count: 7}, a.State().Like(KindPost, post))
}

func TestSessionClose(t *testing.T) {
	p := newProfile(t, newFakeAPI())
	s := p.NewSession()
	s.Close()
	require.Equal(t, 0, p.bus.Sessions(p.key))
}

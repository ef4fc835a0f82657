package client

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gamdit/gamebox/internal/broadcast"
	"github.com/gamdit/gamebox/internal/dto"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// RejectedError is a follow the server refused ("self" or "blocked").
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return "follow rejected: " + e.Reason
}

// Profile is one browser profile: sessions created from it share a local bus
// and see each other's committed changes.
type Profile struct {
	key uuid.UUID
	api API
	bus *broadcast.Local
}

func NewProfile(api API) *Profile {
	return &Profile{key: uuid.New(), api: api, bus: broadcast.NewLocal()}
}

// Close ends every session of the profile.
func (p *Profile) Close() error {
	return p.bus.Close()
}

// Session is one tab.
type Session struct {
	ID string

	profile *Profile
	state   *State
	gen     Generation
	sub     *broadcast.Subscription
	done    chan struct{}
}

func (p *Profile) NewSession() *Session {
	s := &Session{
		ID:      uuid.NewString(),
		profile: p,
		state:   newState(),
		done:    make(chan struct{}),
	}
	s.sub = p.bus.Subscribe(p.key, s.ID)
	go s.receive()
	return s
}

func (s *Session) State() *State {
	return s.state
}

func (s *Session) Close() {
	s.sub.Close()
	<-s.done
}

func (s *Session) receive() {
	defer close(s.done)
	for msg := range s.sub.C {
		s.apply(msg)
	}
}

// announce tells the profile's other sessions about a committed change. The
// local bus skips this session by its id.
func (s *Session) announce(action broadcast.Action, target uuid.UUID, state bool, count *int64) {
	msg := broadcast.Message{
		UserID:   s.profile.key,
		Origin:   s.ID,
		Action:   action,
		TargetID: target.String(),
		State:    state,
		Count:    count,
	}
	_ = s.profile.bus.Publish(context.Background(), msg)
}

// apply folds a change made elsewhere into this session's state.
func (s *Session) apply(msg broadcast.Message) {
	if msg.Action == broadcast.Notification {
		if msg.Count != nil {
			s.state.setUnread(*msg.Count)
		}
		return
	}
	id, err := uuid.Parse(msg.TargetID)
	if err != nil {
		slog.Debug("ignoring broadcast with bad target", "action", string(msg.Action), "target", msg.TargetID)
		return
	}

	switch msg.Action {
	case broadcast.LikePost, broadcast.LikeReview:
		k := likeKey{KindPost, id}
		if msg.Action == broadcast.LikeReview {
			k.kind = KindReview
		}
		next := s.state.Like(k.kind, id)
		next.Liked = msg.State
		if msg.Count != nil {
			next.Count = *msg.Count
		}
		s.state.setLike(k, next)
	case broadcast.Follow:
		s.state.updateRel(id, func(r *dto.RelationshipState) { r.Following = msg.State })
	case broadcast.Mute:
		s.state.updateRel(id, func(r *dto.RelationshipState) { r.Muted = msg.State })
	case broadcast.Block:
		s.state.updateRel(id, func(r *dto.RelationshipState) { r.IBlocked = msg.State })
	}
}

func flipLike(prev LikeState) LikeState {
	if prev.Liked {
		return LikeState{Liked: false, Count: max(prev.Count-1, 0)}
	}
	return LikeState{Liked: true, Count: prev.Count + 1}
}

func likeAction(kind Kind) broadcast.Action {
	if kind == KindReview {
		return broadcast.LikeReview
	}
	return broadcast.LikePost
}

// ToggleLike flips the like at once, then settles on the server's answer. On
// failure the previous state comes back and nothing is announced.
func (s *Session) ToggleLike(ctx context.Context, kind Kind, id uuid.UUID) (LikeState, error) {
	k := likeKey{kind, id}
	n := s.gen.Next(k.String())

	prev := s.state.updateLike(k, flipLike)

	res, err := s.profile.api.ToggleLike(ctx, s.ID, kind, id)
	if err == nil && !res.OK {
		err = errors.New("like toggle was not applied")
	}
	if err != nil {
		if s.gen.Current(k.String(), n) {
			s.state.setLike(k, prev)
		}
		return prev, err
	}

	final := LikeState{Liked: res.State, Count: res.LikeCount}
	if s.gen.Current(k.String(), n) {
		s.state.setLike(k, final)
	}
	s.announce(likeAction(kind), id, final.Liked, &final.Count)
	return final, nil
}

// ToggleFollow follows or unfollows depending on what the session shows now.
// A follow the server rejects rolls back and returns a *RejectedError.
func (s *Session) ToggleFollow(ctx context.Context, id uuid.UUID) (bool, error) {
	key := relKey(id)
	n := s.gen.Next(key)
	prev := s.state.updateRel(id, func(r *dto.RelationshipState) { r.Following = !r.Following })
	want := !prev.Following

	var err error
	if want {
		var res *dto.FollowResponse
		res, err = s.profile.api.Follow(ctx, s.ID, id)
		if err == nil && !res.OK {
			err = &RejectedError{Reason: res.Reason}
		}
	} else {
		err = s.profile.api.Unfollow(ctx, s.ID, id)
	}
	if err != nil {
		if s.gen.Current(key, n) {
			s.state.updateRel(id, func(r *dto.RelationshipState) { r.Following = prev.Following })
		}
		return prev.Following, err
	}

	s.announce(broadcast.Follow, id, want, nil)
	return want, nil
}

func (s *Session) SetMute(ctx context.Context, id uuid.UUID, on bool) error {
	return s.setFlag(ctx, id, on, broadcast.Mute,
		func(r *dto.RelationshipState) *bool { return &r.Muted },
		s.profile.api.SetMute)
}

func (s *Session) SetBlock(ctx context.Context, id uuid.UUID, on bool) error {
	return s.setFlag(ctx, id, on, broadcast.Block,
		func(r *dto.RelationshipState) *bool { return &r.IBlocked },
		s.profile.api.SetBlock)
}

type flagCall func(ctx context.Context, session string, id uuid.UUID, on bool) error

func (s *Session) setFlag(ctx context.Context, id uuid.UUID, on bool, action broadcast.Action, field func(*dto.RelationshipState) *bool, call flagCall) error {
	key := relKey(id)
	n := s.gen.Next(key)
	prev := s.state.updateRel(id, func(r *dto.RelationshipState) { *field(r) = on })

	if err := call(ctx, s.ID, id, on); err != nil {
		if s.gen.Current(key, n) {
			old := *field(&prev)
			s.state.updateRel(id, func(r *dto.RelationshipState) { *field(r) = old })
		}
		return err
	}
	s.announce(action, id, on, nil)
	return nil
}

// Refetch reloads relationships and like state from the server, the backstop
// for anything a broadcast missed (tab focus, visibility change). Results for
// keys that saw a newer request meanwhile are dropped.
func (s *Session) Refetch(ctx context.Context, users, posts, reviews []uuid.UUID) error {
	var g errgroup.Group

	for _, id := range users {
		id := id
		n := s.gen.Next(relKey(id))
		g.Go(func() error {
			rel, err := s.profile.api.Relationship(ctx, id)
			if err != nil {
				return err
			}
			if s.gen.Current(relKey(id), n) {
				s.state.setRel(id, *rel)
			}
			return nil
		})
	}
	for kind, ids := range map[Kind][]uuid.UUID{KindPost: posts, KindReview: reviews} {
		if len(ids) == 0 {
			continue
		}
		kind, ids := kind, ids
		gens := make(map[uuid.UUID]uint64, len(ids))
		for _, id := range ids {
			gens[id] = s.gen.Next(likeKey{kind, id}.String())
		}
		g.Go(func() error {
			res, err := s.profile.api.Hydrate(ctx, kind, ids)
			if err != nil {
				return err
			}
			for _, id := range ids {
				k := likeKey{kind, id}
				if !s.gen.Current(k.String(), gens[id]) {
					continue
				}
				s.state.setLike(k, LikeState{Liked: res.Liked[id], Count: res.Counts[id].Likes})
			}
			return nil
		})
	}
	return g.Wait()
}

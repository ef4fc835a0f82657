package client

import (
	"sync"

	"github.com/gamdit/gamebox/internal/dto"
	"github.com/google/uuid"
)

type LikeState struct {
	Liked bool
	Count int64
}

type likeKey struct {
	kind Kind
	id   uuid.UUID
}

func (k likeKey) String() string {
	return string(k.kind) + ":" + k.id.String()
}

func relKey(id uuid.UUID) string {
	return "rel:" + id.String()
}

// State is what one session currently shows.
type State struct {
	mu     sync.RWMutex
	likes  map[likeKey]LikeState
	rels   map[uuid.UUID]dto.RelationshipState
	unread int64
}

func newState() *State {
	return &State{
		likes: make(map[likeKey]LikeState),
		rels:  make(map[uuid.UUID]dto.RelationshipState),
	}
}

func (s *State) Like(kind Kind, id uuid.UUID) LikeState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.likes[likeKey{kind, id}]
}

func (s *State) Relationship(id uuid.UUID) dto.RelationshipState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rels[id]
}

func (s *State) Unread() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread
}

func (s *State) setLike(k likeKey, v LikeState) {
	s.mu.Lock()
	s.likes[k] = v
	s.mu.Unlock()
}

// updateLike replaces the stored like with fn(old) and returns the old value.
func (s *State) updateLike(k likeKey, fn func(LikeState) LikeState) LikeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.likes[k]
	s.likes[k] = fn(prev)
	return prev
}

func (s *State) setRel(id uuid.UUID, v dto.RelationshipState) {
	s.mu.Lock()
	s.rels[id] = v
	s.mu.Unlock()
}

// updateRel applies fn to the stored relationship and returns the old value.
func (s *State) updateRel(id uuid.UUID, fn func(*dto.RelationshipState)) dto.RelationshipState {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.rels[id]
	next := prev
	fn(&next)
	s.rels[id] = next
	return prev
}

func (s *State) setUnread(n int64) {
	s.mu.Lock()
	s.unread = n
	s.mu.Unlock()
}

package broadcast

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync"
)

const subscriptionBuffer = 32

type Subscription struct {
	C <-chan Message

	ch      chan Message
	session string
	owner   *userSessions
	hub     *Local
	key     string
	once    sync.Once
}

// Close unsubscribes and closes C. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
	})
}

type userSessions struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
	dead bool
}

// Local delivers messages to subscriptions held by this process.
type Local struct {
	users *xsync.MapOf[string, *userSessions]
}

func NewLocal() *Local {
	return &Local{users: xsync.NewMapOf[*userSessions]()}
}

func (l *Local) Publish(_ context.Context, msg Message) error {
	l.Deliver(msg)
	return nil
}

func (l *Local) Subscribe(userID uuid.UUID, sessionID string) *Subscription {
	key := userID.String()
	ch := make(chan Message, subscriptionBuffer)
	sub := &Subscription{C: ch, ch: ch, session: sessionID, hub: l, key: key}

	for {
		u, _ := l.users.LoadOrStore(key, &userSessions{subs: make(map[*Subscription]struct{})})
		u.mu.Lock()
		if u.dead {
			// lost a race with the last session leaving; retry on a fresh entry
			u.mu.Unlock()
			continue
		}
		u.subs[sub] = struct{}{}
		sub.owner = u
		u.mu.Unlock()
		return sub
	}
}

// Deliver hands msg to every session of msg.UserID except the origin. Slow
// sessions drop messages rather than block the publisher.
func (l *Local) Deliver(msg Message) {
	u, ok := l.users.Load(msg.UserID.String())
	if !ok {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	for sub := range u.subs {
		if msg.Origin != "" && sub.session == msg.Origin {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			slog.Warn("dropping broadcast for slow session", "user_id", sub.key, "action", string(msg.Action))
		}
	}
}

func (l *Local) remove(sub *Subscription) {
	u := sub.owner
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.subs, sub)
	close(sub.ch)
	if len(u.subs) == 0 {
		u.dead = true
		l.users.Delete(sub.key)
	}
}

// Sessions counts open subscriptions for a user.
func (l *Local) Sessions(userID uuid.UUID) int {
	u, ok := l.users.Load(userID.String())
	if !ok {
		return 0
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.subs)
}

func (l *Local) Close() error {
	l.users.Range(func(key string, u *userSessions) bool {
		u.mu.Lock()
		subs := make([]*Subscription, 0, len(u.subs))
		for s := range u.subs {
			subs = append(subs, s)
		}
		u.mu.Unlock()
		for _, s := range subs {
			s.Close()
		}
		return true
	})
	return nil
}

package services

import (
	"context"
	"errors"
	"sync"

	"github.com/gamdit/gamebox/internal/dto"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type SidebarService struct {
	users         *UserService
	relationships *RelationshipService
	notifications *NotificationService
	library       *LibraryService
}

func NewSidebarService(users *UserService, relationships *RelationshipService, notifications *NotificationService, library *LibraryService) *SidebarService {
	return &SidebarService{users: users, relationships: relationships, notifications: notifications, library: library}
}

// Preload gathers everything the app shell renders on first paint. Each part
// fails on its own: the response always has usable zero values, and the
// joined error only reports what was left out.
func (s *SidebarService) Preload(ctx context.Context, userID uuid.UUID) (*dto.SidebarResponse, error) {
	resp := &dto.SidebarResponse{
		FollowingIDs: []uuid.UUID{},
		Library:      map[string]int64{},
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	fail := func(err error) error {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
		return nil
	}

	var g errgroup.Group
	g.Go(func() error {
		me, err := s.users.Me(ctx, userID)
		if err != nil {
			return fail(err)
		}
		resp.Profile = me
		return nil
	})
	g.Go(func() error {
		ids, err := s.relationships.FollowingIDs(ctx, userID)
		if err != nil {
			return fail(err)
		}
		resp.FollowingIDs = ids
		return nil
	})
	g.Go(func() error {
		n, err := s.notifications.UnreadCount(ctx, userID)
		if err != nil {
			return fail(err)
		}
		resp.UnreadCount = n
		return nil
	})
	g.Go(func() error {
		counts, err := s.library.Counts(ctx, userID)
		if err != nil {
			return fail(err)
		}
		resp.Library = counts
		return nil
	})
	_ = g.Wait()

	return resp, errors.Join(errs...)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gamdit/gamebox/internal/dto"
	"github.com/gamdit/gamebox/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrInvalidStatus = errors.New("status must be one of backlog, playing, completed, dropped")

type LibraryService struct {
	db    *gorm.DB
	games *GameService
}

func NewLibraryService(db *gorm.DB, games *GameService) *LibraryService {
	return &LibraryService{db: db, games: games}
}

func (s *LibraryService) Set(ctx context.Context, userID uuid.UUID, igdbID int64, status string) (*dto.LibraryEntryView, error) {
	st := models.LibraryStatus(status)
	if !st.Valid() {
		return nil, ErrInvalidStatus
	}
	game, err := s.games.Resolve(ctx, igdbID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	entry := models.LibraryEntry{UserID: userID, GameID: game.ID, Status: st, UpdatedAt: now}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "game_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"status": st, "updated_at": now}),
	}).Omit("Game").Create(&entry).Error
	if err != nil {
		return nil, fmt.Errorf("failed to save library entry: %w", err)
	}

	return &dto.LibraryEntryView{Status: status, UpdatedAt: now, Game: gameSummary(game)}, nil
}

// Remove is a no-op when the game is not in the library.
func (s *LibraryService) Remove(ctx context.Context, userID uuid.UUID, igdbID int64) error {
	sub := s.db.Model(&models.Game{}).Select("id").Where("igdb_id = ?", igdbID)
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND game_id IN (?)", userID, sub).
		Delete(&models.LibraryEntry{}).Error
	if err != nil {
		return fmt.Errorf("failed to remove library entry: %w", err)
	}
	return nil
}

// List returns a user's entries, most recently changed first. An empty status
// lists every shelf.
func (s *LibraryService) List(ctx context.Context, userID uuid.UUID, status string) ([]dto.LibraryEntryView, error) {
	q := s.db.WithContext(ctx).Preload("Game").Where("user_id = ?", userID)
	if status != "" {
		if !models.LibraryStatus(status).Valid() {
			return nil, ErrInvalidStatus
		}
		q = q.Where("status = ?", status)
	}

	var entries []models.LibraryEntry
	if err := q.Order("updated_at DESC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list library: %w", err)
	}
	out := make([]dto.LibraryEntryView, 0, len(entries))
	for i := range entries {
		out = append(out, dto.LibraryEntryView{
			Status:    string(entries[i].Status),
			UpdatedAt: entries[i].UpdatedAt,
			Game:      gameSummary(&entries[i].Game),
		})
	}
	return out, nil
}

// Counts returns the number of entries per status, with every status present.
func (s *LibraryService) Counts(ctx context.Context, userID uuid.UUID) (map[string]int64, error) {
	var rows []struct {
		Status string
		Total  int64
	}
	err := s.db.WithContext(ctx).Model(&models.LibraryEntry{}).
		Select("status, COUNT(*) AS total").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count library: %w", err)
	}

	counts := make(map[string]int64, len(models.LibraryStatuses))
	for _, st := range models.LibraryStatuses {
		counts[string(st)] = 0
	}
	for _, r := range rows {
		counts[r.Status] = r.Total
	}
	return counts, nil
}

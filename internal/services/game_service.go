package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/gamdit/gamebox/internal/database"
	"github.com/gamdit/gamebox/internal/dto"
	"github.com/gamdit/gamebox/internal/igdb"
	"github.com/gamdit/gamebox/internal/metrics"
	"github.com/gamdit/gamebox/internal/models"
	"github.com/gamdit/gamebox/internal/search"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrGameNotFound  = errors.New("game not found")
	ErrIGDBDisabled  = errors.New("igdb is not configured")
	ErrInvalidSearch = errors.New("search query is required")
)

const (
	SectionPopular  = "popular"
	SectionTopRated = "top_rated"
	SectionRecent   = "recent"
	SectionNew      = "new"
)

// GameSource is the subset of the IGDB client the services use.
type GameSource interface {
	Search(ctx context.Context, term string, limit int) ([]igdb.Game, error)
	GetByIDs(ctx context.Context, ids []int64) ([]igdb.Game, error)
}

type GameService struct {
	db    *gorm.DB
	igdb  GameSource
	index *search.GameIndex
}

// NewGameService accepts a nil source, in which case only local rows are used.
func NewGameService(db *gorm.DB, source GameSource, index *search.GameIndex) *GameService {
	return &GameService{db: db, igdb: source, index: index}
}

func fromIGDB(g *igdb.Game, checkedAt time.Time) models.Game {
	return models.Game{
		IGDBID:          g.ID,
		Name:            g.Name,
		Slug:            g.Slug,
		CoverURL:        g.CoverURL(),
		ReleaseYear:     g.ReleaseYear(),
		Summary:         g.Summary,
		Aliases:         g.Aliases(),
		Genres:          g.GenreNames(),
		Platforms:       g.PlatformNames(),
		Category:        g.Category,
		ParentIGDBID:    g.ParentID(),
		ParentCheckedAt: &checkedAt,
	}
}

// UpsertFromIGDB inserts or refreshes games keyed by igdb_id and returns the
// stored rows.
func (s *GameService) UpsertFromIGDB(ctx context.Context, rows []igdb.Game) ([]models.Game, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	seen := make(map[int64]bool, len(rows))
	games := make([]models.Game, 0, len(rows))
	ids := make([]int64, 0, len(rows))
	for i := range rows {
		if rows[i].ID == 0 || rows[i].Name == "" || seen[rows[i].ID] {
			continue
		}
		seen[rows[i].ID] = true
		games = append(games, fromIGDB(&rows[i], now))
		ids = append(ids, rows[i].ID)
	}
	if len(games) == 0 {
		return nil, nil
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "igdb_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "slug", "cover_url", "release_year", "summary", "aliases", "genres",
			"platforms", "category", "parent_igdb_id", "parent_checked_at", "updated_at",
		}),
	}).Create(&games).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert games: %w", err)
	}

	var stored []models.Game
	if err := s.db.WithContext(ctx).Where("igdb_id IN ?", ids).Find(&stored).Error; err != nil {
		return nil, fmt.Errorf("failed to reload games: %w", err)
	}
	if s.index != nil {
		if err := s.index.Index(stored...); err != nil {
			slog.Error("failed to index games", "error", err)
		}
	}
	return stored, nil
}

// Resolve finds a game by IGDB id, fetching and storing it on a local miss.
func (s *GameService) Resolve(ctx context.Context, igdbID int64) (*models.Game, error) {
	var game models.Game
	err := s.db.WithContext(ctx).Where("igdb_id = ?", igdbID).First(&game).Error
	if err == nil {
		return &game, nil
	}
	if !database.IsNotFound(err) {
		return nil, fmt.Errorf("failed to load game: %w", err)
	}
	if s.igdb == nil {
		return nil, ErrGameNotFound
	}

	rows, err := s.igdb.GetByIDs(ctx, []int64{igdbID})
	metrics.IGDBRequests.WithLabelValues("lookup", metrics.Outcome(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("igdb lookup failed: %w", err)
	}
	stored, err := s.UpsertFromIGDB(ctx, rows)
	if err != nil {
		return nil, err
	}
	for i := range stored {
		if stored[i].IGDBID == igdbID {
			return &stored[i], nil
		}
	}
	return nil, ErrGameNotFound
}

func NormalizeSection(section string) string {
	switch section {
	case SectionPopular, SectionTopRated, SectionRecent, SectionNew:
		return section
	}
	return SectionPopular
}

// Browse lists canonical games for a browse section. Unknown sections fall
// back to popular.
func (s *GameService) Browse(ctx context.Context, section string, limit int) (*dto.BrowseResponse, error) {
	section = NormalizeSection(section)
	limit = ClampLimit(limit)

	var games []models.Game
	q := s.db.WithContext(ctx).Model(&models.Game{}).Where("games.parent_igdb_id IS NULL")
	switch section {
	case SectionPopular:
		q = q.Select("games.*").
			Joins("JOIN library_entries ON library_entries.game_id = games.id").
			Group("games.id").
			Order("COUNT(library_entries.id) DESC").Order("games.name")
	case SectionTopRated:
		q = q.Select("games.*").
			Joins("JOIN reviews ON reviews.game_id = games.id").
			Group("games.id").
			Order("AVG(reviews.rating) DESC").Order("COUNT(reviews.id) DESC").Order("games.name")
	case SectionRecent:
		q = q.Where("games.release_year IS NOT NULL").Order("games.release_year DESC").Order("games.name")
	case SectionNew:
		q = q.Order("games.created_at DESC").Order("games.id DESC")
	}
	if err := q.Limit(limit).Find(&games).Error; err != nil {
		return nil, fmt.Errorf("failed to browse %s: %w", section, err)
	}

	resp := &dto.BrowseResponse{Section: section, Games: make([]dto.GameSummary, 0, len(games))}
	for i := range games {
		resp.Games = append(resp.Games, gameSummary(&games[i]))
	}
	return resp, nil
}

// SearchGames searches the local index first and tops up from IGDB when it
// has too few hits. IGDB failures degrade to local results.
func (s *GameService) SearchGames(ctx context.Context, q string, limit int) ([]dto.GameSummary, error) {
	limit = ClampLimit(limit)
	out := []dto.GameSummary{}
	if s.index == nil {
		return out, nil
	}

	ids, err := s.index.Search(q, limit)
	if err != nil {
		return nil, err
	}
	if len(ids) < limit && s.igdb != nil && q != "" {
		rows, err := s.igdb.Search(ctx, q, limit)
		metrics.IGDBRequests.WithLabelValues("search", metrics.Outcome(err)).Inc()
		if err != nil {
			slog.Warn("igdb search failed, using local results", "error", err)
		} else if _, err := s.UpsertFromIGDB(ctx, rows); err != nil {
			slog.Error("failed to store igdb results", "error", err)
		} else if ids, err = s.index.Search(q, limit); err != nil {
			return nil, err
		}
	}
	if len(ids) == 0 {
		return out, nil
	}

	var games []models.Game
	if err := s.db.WithContext(ctx).Where("igdb_id IN ?", ids).Find(&games).Error; err != nil {
		return nil, fmt.Errorf("failed to load games: %w", err)
	}
	rank := make(map[int64]int, len(ids))
	for i, id := range ids {
		rank[id] = i
	}
	// relevance order, with base games ahead of their editions
	sort.SliceStable(games, func(i, j int) bool {
		ci, cj := games[i].IsCanonical(), games[j].IsCanonical()
		if ci != cj {
			return ci
		}
		return rank[games[i].IGDBID] < rank[games[j].IGDBID]
	})
	for i := range games {
		out = append(out, gameSummary(&games[i]))
	}
	return out, nil
}

// RebuildIndex loads every stored game into the search index.
func (s *GameService) RebuildIndex(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, nil
	}
	var batch []models.Game
	total := 0
	res := s.db.WithContext(ctx).FindInBatches(&batch, 500, func(tx *gorm.DB, _ int) error {
		total += len(batch)
		return s.index.Index(batch...)
	})
	return total, res.Error
}

func (s *GameService) Detail(ctx context.Context, igdbID int64, viewerID *uuid.UUID) (*dto.GameDetail, error) {
	game, err := s.Resolve(ctx, igdbID)
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)

	detail := &dto.GameDetail{
		GameSummary: gameSummary(game),
		Summary:     game.Summary,
		Aliases:     game.Aliases,
		Genres:      game.Genres,
		Platforms:   game.Platforms,
	}

	var agg struct {
		Avg   *float64
		Total int64
	}
	if err := db.Model(&models.Review{}).Select("AVG(rating) AS avg, COUNT(*) AS total").
		Where("game_id = ?", game.ID).Scan(&agg).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate reviews: %w", err)
	}
	detail.ReviewCount = agg.Total
	if agg.Total > 0 {
		detail.AverageRating = agg.Avg
	}

	if viewerID == nil {
		return detail, nil
	}

	var review models.Review
	err = db.Preload("User").Where("user_id = ? AND game_id = ?", *viewerID, game.ID).First(&review).Error
	if err == nil {
		v := reviewView(&review, false)
		detail.ViewerReview = &v
	} else if !database.IsNotFound(err) {
		return nil, fmt.Errorf("failed to load review: %w", err)
	}

	var entry models.LibraryEntry
	err = db.Where("user_id = ? AND game_id = ?", *viewerID, game.ID).First(&entry).Error
	if err == nil {
		status := string(entry.Status)
		detail.LibraryStatus = &status
	} else if !database.IsNotFound(err) {
		return nil, fmt.Errorf("failed to load library entry: %w", err)
	}
	return detail, nil
}

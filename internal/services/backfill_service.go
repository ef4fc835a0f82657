package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gamdit/gamebox/internal/dto"
	"github.com/gamdit/gamebox/internal/metrics"
	"github.com/gamdit/gamebox/internal/models"
	"gorm.io/gorm"
)

// BackfillBatchSize is how many games go into one IGDB lookup.
const BackfillBatchSize = 50

const maxBackfillLimit = 5000

// BackfillService repairs game rows that were stored before IGDB data was
// complete: missing parent links and empty summaries.
type BackfillService struct {
	db    *gorm.DB
	igdb  GameSource
	games *GameService
}

func NewBackfillService(db *gorm.DB, source GameSource, games *GameService) *BackfillService {
	return &BackfillService{db: db, igdb: source, games: games}
}

func backfillLimit(n int) int {
	if n <= 0 {
		return 500
	}
	if n > maxBackfillLimit {
		return maxBackfillLimit
	}
	return n
}

// LinkParents looks up games whose parent link was never checked and records
// version_parent or parent_game. Parents missing locally are fetched too.
func (s *BackfillService) LinkParents(ctx context.Context, limit int) (*dto.JobResult, error) {
	if s.igdb == nil {
		return nil, ErrIGDBDisabled
	}
	var games []models.Game
	err := s.db.WithContext(ctx).
		Where("parent_checked_at IS NULL").
		Order("created_at").
		Limit(backfillLimit(limit)).
		Find(&games).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load unchecked games: %w", err)
	}

	result := &dto.JobResult{}
	for start := 0; start < len(games); start += BackfillBatchSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		batch := games[start:min(start+BackfillBatchSize, len(games))]
		updated, err := s.linkBatch(ctx, batch)
		if err != nil {
			return result, err
		}
		result.Processed += len(batch)
		result.Updated += updated
	}
	slog.Info("parent backfill finished", "processed", result.Processed, "updated", result.Updated)
	return result, nil
}

func (s *BackfillService) linkBatch(ctx context.Context, batch []models.Game) (int, error) {
	ids := make([]int64, len(batch))
	for i := range batch {
		ids[i] = batch[i].IGDBID
	}
	rows, err := s.igdb.GetByIDs(ctx, ids)
	metrics.IGDBRequests.WithLabelValues("backfill", metrics.Outcome(err)).Inc()
	if err != nil {
		return 0, fmt.Errorf("igdb lookup failed: %w", err)
	}

	parents := make(map[int64]int64, len(rows))
	for i := range rows {
		if p := rows[i].ParentID(); p != nil {
			parents[rows[i].ID] = *p
		}
	}

	if err := s.fetchMissing(ctx, parents); err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	db := s.db.WithContext(ctx)
	updated := 0
	for i := range batch {
		updates := map[string]interface{}{"parent_checked_at": now}
		if p, ok := parents[batch[i].IGDBID]; ok {
			updates["parent_igdb_id"] = p
			updated++
		}
		if err := db.Model(&models.Game{}).Where("id = ?", batch[i].ID).Updates(updates).Error; err != nil {
			return updated, fmt.Errorf("failed to link game %d: %w", batch[i].IGDBID, err)
		}
	}
	return updated, nil
}

func (s *BackfillService) fetchMissing(ctx context.Context, parents map[int64]int64) error {
	if len(parents) == 0 {
		return nil
	}
	want := make([]int64, 0, len(parents))
	for _, p := range parents {
		want = append(want, p)
	}
	var have []int64
	if err := s.db.WithContext(ctx).Model(&models.Game{}).Where("igdb_id IN ?", want).Pluck("igdb_id", &have).Error; err != nil {
		return fmt.Errorf("failed to load parents: %w", err)
	}
	known := make(map[int64]bool, len(have))
	for _, id := range have {
		known[id] = true
	}
	var missing []int64
	for _, id := range want {
		if !known[id] {
			missing = append(missing, id)
			known[id] = true
		}
	}
	if len(missing) == 0 {
		return nil
	}

	rows, err := s.igdb.GetByIDs(ctx, missing)
	metrics.IGDBRequests.WithLabelValues("backfill", metrics.Outcome(err)).Inc()
	if err != nil {
		return fmt.Errorf("igdb parent lookup failed: %w", err)
	}
	_, err = s.games.UpsertFromIGDB(ctx, rows)
	return err
}

// EnrichSummaries fills empty summaries from IGDB. Games IGDB has no summary
// for stay empty and are picked up again on the next run.
func (s *BackfillService) EnrichSummaries(ctx context.Context, limit int) (*dto.JobResult, error) {
	if s.igdb == nil {
		return nil, ErrIGDBDisabled
	}
	var games []models.Game
	err := s.db.WithContext(ctx).
		Where("summary = '' OR summary IS NULL").
		Order("created_at").
		Limit(backfillLimit(limit)).
		Find(&games).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load games: %w", err)
	}

	result := &dto.JobResult{}
	db := s.db.WithContext(ctx)
	for start := 0; start < len(games); start += BackfillBatchSize {
		batch := games[start:min(start+BackfillBatchSize, len(games))]
		ids := make([]int64, len(batch))
		for i := range batch {
			ids[i] = batch[i].IGDBID
		}
		rows, err := s.igdb.GetByIDs(ctx, ids)
		metrics.IGDBRequests.WithLabelValues("backfill", metrics.Outcome(err)).Inc()
		if err != nil {
			return result, fmt.Errorf("igdb lookup failed: %w", err)
		}
		result.Processed += len(batch)
		for i := range rows {
			if rows[i].Summary == "" {
				continue
			}
			res := db.Model(&models.Game{}).Where("igdb_id = ?", rows[i].ID).Update("summary", rows[i].Summary)
			if res.Error != nil {
				return result, fmt.Errorf("failed to store summary: %w", res.Error)
			}
			result.Updated += int(res.RowsAffected)
		}
	}
	slog.Info("summary backfill finished", "processed", result.Processed, "updated", result.Updated)
	return result, nil
}

package logging

import (
	"log/slog"
	"time"

	"github.com/gamdit/gamebox/internal/models"
	"gorm.io/gorm"
)

const logRetention = 30 * 24 * time.Hour

// StartCleanup runs a daily goroutine that deletes system_logs older than 30
// days and sign-in material that can no longer be used.
func StartCleanup(db *gorm.DB, done chan struct{}) {
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				RunCleanup(db, time.Now())
			case <-done:
				return
			}
		}
	}()
}

func RunCleanup(db *gorm.DB, now time.Time) {
	result := db.Where("timestamp < ?", now.Add(-logRetention)).Delete(&models.SystemLog{})
	if result.Error != nil {
		slog.Error("log cleanup failed", "error", result.Error)
	} else if result.RowsAffected > 0 {
		slog.Info("log cleanup completed", "deleted", result.RowsAffected)
	}

	result = db.Where("expires_at < ?", now).Delete(&models.MagicLink{})
	if result.Error != nil {
		slog.Error("magic link cleanup failed", "error", result.Error)
	}

	result = db.Where("expires_at < ? OR revoked = ?", now, true).Delete(&models.RefreshToken{})
	if result.Error != nil {
		slog.Error("refresh token cleanup failed", "error", result.Error)
	}
}

package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gamdit/gamebox/internal/database"
	"github.com/gamdit/gamebox/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbCounter atomic.Int64

// NewDB opens a private in-memory SQLite database with every model migrated.
// The pool is pinned to one connection so the whole test sees one database.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := fmt.Sprintf("file:gamebox_test_%d?mode=memory&cache=shared", dbCounter.Add(1))
	db, err := gorm.Open(sqlite.Open(name), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// SimulateUniqueViolation makes every insert into table fail the way a
// concurrent duplicate would.
func SimulateUniqueViolation(t *testing.T, db *gorm.DB, table string) {
	t.Helper()
	err := db.Callback().Create().Before("gorm:create").Register("testutil:unique_violation_"+table, func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			tx.AddError(fmt.Errorf("UNIQUE constraint failed: %s", table))
		}
	})
	require.NoError(t, err)
}

func CreateUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	handle := strings.ToLower(username)
	u := &models.User{
		Email:       handle + "@example.com",
		Username:    &handle,
		DisplayName: username,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func CreateGame(t *testing.T, db *gorm.DB, igdbID int64, name string) *models.Game {
	t.Helper()
	g := &models.Game{IGDBID: igdbID, Name: name}
	require.NoError(t, db.Create(g).Error)
	return g
}

func CreatePost(t *testing.T, db *gorm.DB, userID uuid.UUID, body string, createdAt time.Time, media ...string) *models.Post {
	t.Helper()
	p := &models.Post{
		UserID:    userID,
		Body:      body,
		MediaURLs: media,
		MediaKind: models.MediaKindOf(media),
		CreatedAt: createdAt.UTC(),
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func CreateReview(t *testing.T, db *gorm.DB, userID, gameID uuid.UUID, rating int, createdAt time.Time) *models.Review {
	t.Helper()
	r := &models.Review{UserID: userID, GameID: gameID, Rating: rating, CreatedAt: createdAt.UTC()}
	require.NoError(t, db.Create(r).Error)
	return r
}

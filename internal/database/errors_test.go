package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestIsUniqueViolation(t *testing.T) {
	require.False(t, IsUniqueViolation(nil))
	require.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))
	require.True(t, IsUniqueViolation(fmt.Errorf("insert follow: %w", &pgconn.PgError{Code: "23505"})))
	require.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	require.True(t, IsUniqueViolation(errors.New("UNIQUE constraint failed: follows.follower_id, follows.followee_id")))
	require.False(t, IsUniqueViolation(errors.New("connection reset")))
}

func TestIsNotFound(t *testing.T) {
	require.True(t, IsNotFound(fmt.Errorf("get user: %w", gorm.ErrRecordNotFound)))
	require.False(t, IsNotFound(errors.New("boom")))
}

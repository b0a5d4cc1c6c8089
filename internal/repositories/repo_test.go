package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"conversation-service/internal/db"
)

func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()
	database, err := db.Connect(ctx, db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx, database, zerolog.Nop()))
	t.Cleanup(func() { database.Close() })
	return database
}

var baseTime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func at(offset int) time.Time {
	return baseTime.Add(time.Duration(offset) * time.Second)
}

func strPtr(s string) *string { return &s }

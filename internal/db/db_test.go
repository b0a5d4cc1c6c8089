package db

import (
	"context"
	"testing"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateSQLite(t *testing.T) {
	ctx := context.Background()
	database, err := Connect(ctx, DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer database.Close()

	require.NoError(t, Migrate(ctx, database, zerolog.Nop()))
	// idempotent
	require.NoError(t, Migrate(ctx, database, zerolog.Nop()))

	var tables []string
	require.NoError(t, database.SelectContext(ctx, &tables, `SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name`))
	assert.Equal(t, []string{"conversation_participants", "conversations", "deleted_messages", "messages"}, tables)
}

func TestConnectUnsupportedDriver(t *testing.T) {
	_, err := Connect(context.Background(), "mysql", "dsn")
	require.Error(t, err)
}

func TestIsUniqueViolation(t *testing.T) {
	ctx := context.Background()
	database, err := Connect(ctx, DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer database.Close()
	require.NoError(t, Migrate(ctx, database, zerolog.Nop()))

	insert := `INSERT INTO conversations (participant_key, created_at, updated_at) VALUES ('d:1,2', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`
	_, err = database.ExecContext(ctx, insert)
	require.NoError(t, err)
	_, err = database.ExecContext(ctx, insert)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))

	assert.True(t, IsUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, IsUniqueViolation(assert.AnError))
	assert.False(t, IsUniqueViolation(nil))
}

package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMigrations_Idempotent(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, RunMigrations(db.Writer), "second run is a no-op")

	var version int
	var dirty bool
	err := db.Reader.QueryRowContext(context.Background(), "SELECT version, dirty FROM schema_migrations").Scan(&version, &dirty)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
	assert.False(t, dirty)
}

func TestRunMigrations_Tables(t *testing.T) {
	db := setupTestDB(t)

	for _, table := range []string{"users", "credentials", "repositories", "jobs"} {
		var name string
		err := db.Reader.QueryRowContext(context.Background(),
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		require.NoError(t, err, "table %s", table)
		assert.Equal(t, table, name)
	}
}

func TestRunMigrations_DirtyRefused(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.Writer.ExecContext(context.Background(), "UPDATE schema_migrations SET dirty = 1")
	require.NoError(t, err)

	err = RunMigrations(db.Writer)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dirty")
}

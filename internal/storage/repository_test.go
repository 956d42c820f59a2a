package storage_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"splitsmart/internal/storage"
	"splitsmart/internal/storage/storetest"
)

func newSQLite(t *testing.T) storage.Store {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepository(t *testing.T) {
	storetest.Run(t, newSQLite)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "migrate.db")

	require.NoError(t, storage.RunMigrations(path))
	require.NoError(t, storage.RunMigrations(path))

	version, dirty, err := storage.SchemaVersion(path)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(1), version)
}

func TestSchemaVersion_Fresh(t *testing.T) {
	version, dirty, err := storage.SchemaVersion(filepath.Join(t.TempDir(), "fresh.db"))
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Zero(t, version)
}

package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationManager_SQLite(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, DriverSQLite, ":memory:", PoolConfig{})
	require.NoError(t, err)
	defer db.Close()

	m := NewMigrationManager(db, DriverSQLite)

	status, err := m.CheckMigrations(ctx)
	require.NoError(t, err)
	assert.False(t, status.UpToDate)
	assert.Equal(t, []string{"0001_products_sqlite.sql"}, status.Pending)

	require.NoError(t, m.RunMigrations(ctx, status))

	status, err = m.CheckMigrations(ctx)
	require.NoError(t, err)
	assert.True(t, status.UpToDate)
	assert.Equal(t, []string{"0001_products_sqlite.sql"}, status.Applied)

	var n int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM produtos_vectors_ean").Scan(&n))
	assert.Zero(t, n)
}

func TestMigrationManager_PostgresFileSelection(t *testing.T) {
	m := &MigrationManager{driver: DriverPostgres}
	sub := NewMigrationManager(nil, DriverPostgres)
	m.fsys = sub.fsys

	files, err := m.listMigrationFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_products.sql"}, files)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "x", PoolConfig{})
	assert.Error(t, err)
}

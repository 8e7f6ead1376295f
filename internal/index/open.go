package index

import (
	"context"
	"fmt"

	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/storage"
)

// Open connects to the configured database, applies pending migrations and
// returns the matching index implementation.
func Open(ctx context.Context, driver, dsn string, pool storage.PoolConfig) (Index, error) {
	db, err := storage.Open(ctx, driver, dsn, pool)
	if err != nil {
		return nil, err
	}

	if _, err := storage.NewMigrationManager(db, driver).Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	if driver == storage.DriverPostgres {
		return NewPostgresIndex(db), nil
	}
	return NewSQLiteIndex(db), nil
}

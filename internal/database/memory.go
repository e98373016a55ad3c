package database

import (
	"context"
	"fmt"

	"example.com/backstage/services/analytics/config"
)

// OpenMemory opens a bootstrapped in-memory sqlite store named name.
// Stores opened with the same name share data.
func OpenMemory(ctx context.Context, name string) (*Store, error) {
	store, err := Connect(config.DatabaseConfig{
		Driver: DriverSQLite,
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	})
	if err != nil {
		return nil, err
	}

	if err := store.Bootstrap(ctx); err != nil {
		store.Close()
		return nil, err
	}

	return store, nil
}

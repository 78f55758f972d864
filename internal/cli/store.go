package cli

import (
	"context"
	"fmt"
	"log/slog"

	"cicd-demo/internal/config"
	"cicd-demo/internal/db"
	"cicd-demo/pkg/task"
)

// openStore opens the store selected by cfg and makes sure its schema
// exists. The returned close func releases the backing resources.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (task.Store, func(), error) {
	var (
		store   task.Store
		closeFn = func() {}
	)
	switch cfg.Store.Driver {
	case config.DriverMemory:
		store = task.NewMemStore()
	case config.DriverFile:
		fs, err := task.OpenFileStore(cfg.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		store = fs
	case config.DriverPostgres:
		pool, err := db.Connect(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect: %w", err)
		}
		store = task.NewPgStore(pool)
		closeFn = pool.Close
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	if err := store.EnsureTable(ctx); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("ensure tasks table: %w", err)
	}
	logger.Debug("store ready", "driver", cfg.Store.Driver)
	return store, closeFn, nil
}

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/p-n-ai/pai-curator/internal/pipeline"
	"github.com/p-n-ai/pai-curator/internal/platform/cache"
	"github.com/p-n-ai/pai-curator/internal/platform/config"
	"github.com/p-n-ai/pai-curator/internal/platform/database"
	"github.com/p-n-ai/pai-curator/internal/runlog"
)

// openStore returns the run history store: PostgreSQL when a database is
// configured, memory otherwise. The returned func releases it.
func openStore(ctx context.Context, cfg *config.Config) (runlog.Store, func(), error) {
	if !cfg.HasDatabase() {
		return runlog.NewMemoryStore(), func() {}, nil
	}

	db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	store, err := runlog.NewPostgresStore(ctx, db.Pool)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	slog.Info("run history in postgres")
	return store, db.Close, nil
}

// openLocker returns the run lock source, or nil when no cache is configured.
func openLocker(ctx context.Context, cfg *config.Config) (pipeline.Locker, func(), error) {
	if !cfg.HasCache() {
		return nil, func() {}, nil
	}

	c, err := cache.New(ctx, cfg.Cache.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to cache: %w", err)
	}
	closeFn := func() {
		if err := c.Close(); err != nil {
			slog.Warn("failed to close cache", "error", err)
		}
	}
	return c.Locker(time.Duration(cfg.Cache.LockTTLSec) * time.Second), closeFn, nil
}

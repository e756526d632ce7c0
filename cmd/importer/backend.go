package main

import (
	"context"

	"github.com/JonMunkholm/customer-import/internal/config"
	"github.com/JonMunkholm/customer-import/internal/core"
	"github.com/JonMunkholm/customer-import/internal/database"
	"github.com/jackc/pgx/v5/pgxpool"
)

// backend is the storage a command runs against.
type backend struct {
	store core.Store
	sink  core.AuditSink
	cfg   core.ServiceConfig
	close func()
}

func (b *backend) service() *core.Service {
	return core.NewService(b.store, b.sink, b.cfg)
}

// offlineBackend validates against empty storage, so only rules that do
// not depend on existing records can fail.
func offlineBackend() *backend {
	return &backend{
		store: core.NewMemoryStore(),
		sink:  core.NewMemoryAuditSink(),
		close: func() {},
	}
}

// openBackend connects to PostgreSQL using the server's configuration.
// Tests replace it with an in-memory backend.
var openBackend = func(ctx context.Context) (*backend, error) {
	cfg, pool, err := connect(ctx)
	if err != nil {
		return nil, err
	}
	return &backend{
		store: database.NewStore(pool),
		sink:  database.NewAuditLog(pool),
		cfg: core.ServiceConfig{
			MaxFileSize:      cfg.Import.MaxFileSize,
			ImportTimeout:    cfg.Import.Timeout,
			OperationTimeout: cfg.Import.OperationTimeout,
			MaxImportWait:    cfg.Import.MaxWaitTime,
		},
		close: pool.Close,
	}, nil
}

func connect(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, withCode(exitUsage, err)
	}
	pool, err := database.Open(ctx, database.PoolConfig{
		URL:             cfg.Database.URL,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

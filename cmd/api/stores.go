package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"hr-platform/internal/accounts"
	"hr-platform/internal/audit"
	"hr-platform/internal/config"
	"hr-platform/internal/hr"
	"hr-platform/pkg/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// stores are the repositories for the configured backend.
type stores struct {
	accounts accounts.Repository
	hr       hr.Repository
	audit    audit.Repository
	// ping reports backend health for /healthz. Nil means always healthy.
	ping  func(ctx context.Context) error
	close func()
}

func memoryStores() stores {
	return stores{
		accounts: accounts.NewMemoryRepo(),
		hr:       hr.NewMemoryRepo(),
		audit:    audit.NewMemoryRepo(),
		close:    func() {},
	}
}

// openStores connects the configured backend and creates its schema or
// indexes.
func openStores(ctx context.Context, cfg config.Config, log *slog.Logger) (stores, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		log.Warn("using in-memory store; data is lost on restart")
		return memoryStores(), nil

	case config.DriverMongo:
		client, err := utils.OpenMongo(ctx, cfg.Mongo.URI, 5*time.Second)
		if err != nil {
			return stores{}, err
		}
		db := client.Database(cfg.Mongo.Database)
		acc := accounts.NewMongoRepo(client, db)
		people := hr.NewMongoRepo(client, db)
		logs := audit.NewMongoRepo(db)
		for name, ensure := range map[string]func(context.Context) error{
			"accounts": acc.EnsureIndexes,
			"hr":       people.EnsureIndexes,
			"audit":    logs.EnsureIndexes,
		} {
			if err := ensure(ctx); err != nil {
				_ = client.Disconnect(context.Background())
				return stores{}, fmt.Errorf("%s indexes: %w", name, err)
			}
		}
		return stores{
			accounts: acc,
			hr:       people,
			audit:    logs,
			ping:     func(ctx context.Context) error { return client.Ping(ctx, nil) },
			close:    func() { _ = client.Disconnect(context.Background()) },
		}, nil

	default:
		db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			return stores{}, err
		}
		acc := accounts.NewPostgresRepo(db)
		people := hr.NewPostgresRepo(db)
		logs := audit.NewPostgresRepo(db)
		for _, ensure := range []func(context.Context) error{acc.EnsureSchema, people.EnsureSchema, logs.EnsureSchema} {
			if err := ensure(ctx); err != nil {
				_ = db.Close()
				return stores{}, fmt.Errorf("postgres schema: %w", err)
			}
		}
		return stores{
			accounts: acc,
			hr:       people,
			audit:    logs,
			ping:     func(ctx context.Context) error { return utils.HealthCheck(ctx, db, 2*time.Second) },
			close:    func() { _ = db.Close() },
		}, nil
	}
}

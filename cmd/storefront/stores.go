package main

import (
	"context"
	"fmt"

	"github.com/fjod/mongomart/internal/config"
	"github.com/fjod/mongomart/internal/repository"
	"github.com/fjod/mongomart/internal/repository/memory"
	"github.com/fjod/mongomart/internal/repository/mongodb"
	"github.com/fjod/mongomart/internal/repository/sqldb"
)

type stores struct {
	items repository.ItemRepository
	carts repository.CartRepository
	close func(ctx context.Context) error
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		db, err := mongodb.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, err
		}
		if err := mongodb.EnsureIndexes(ctx, db); err != nil {
			_ = db.Client().Disconnect(ctx)
			return nil, err
		}
		return &stores{
			items: mongodb.NewItemRepository(db),
			carts: mongodb.NewCartRepository(db),
			close: func(ctx context.Context) error { return db.Client().Disconnect(ctx) },
		}, nil

	case config.DriverPostgres, config.DriverSQLite:
		dialect, dsn := sqldb.Postgres, cfg.PostgresDSN
		if cfg.StoreDriver == config.DriverSQLite {
			dialect, dsn = sqldb.SQLite, cfg.SQLitePath
		}
		db, err := sqldb.Open(ctx, dialect, dsn)
		if err != nil {
			return nil, err
		}
		if err := db.RunMigrations(); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &stores{
			items: sqldb.NewItemRepository(db),
			carts: sqldb.NewCartRepository(db),
			close: func(context.Context) error { return db.Close() },
		}, nil

	case config.DriverMemory:
		return &stores{
			items: memory.NewItemStore(),
			carts: memory.NewCartStore(),
			close: func(context.Context) error { return nil },
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

package docstore

import (
	"context"
	"fmt"

	"github.com/Syntia28/nikos/pkg/config"
	"github.com/Syntia28/nikos/pkg/db"
	"github.com/Syntia28/nikos/pkg/logger"
	"github.com/Syntia28/nikos/pkg/migrate"
)

// Open builds the backend selected by NIKOS_DOCSTORE_DRIVER. rdb is only needed
// when the redis change feed is configured.
func Open(ctx context.Context, cfg *config.Config, rdb RedisPubSub, logg *logger.Logger) (Backend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	ctx = logg.WithField(ctx, "docstore_driver", cfg.DocStore.Driver)

	switch cfg.DocStore.Driver {
	case config.DocStoreFirestore:
		store, err := NewFirestoreStore(ctx, cfg.GCP, cfg.Firestore)
		if err != nil {
			return nil, err
		}
		logg.Info(ctx, "firestore document store ready")
		return store, nil

	case config.DocStoreMongo:
		store, err := NewMongoStore(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		logg.Info(ctx, "mongo document store ready")
		return store, nil

	case config.DocStorePostgres, config.DocStoreSQLite:
		feed, err := newFeed(cfg.DocStore, rdb, logg)
		if err != nil {
			return nil, err
		}
		client, err := db.New(ctx, cfg.DocStore.Driver, cfg.DB, logg)
		if err != nil {
			return nil, err
		}
		if err := migrate.MaybeRun(ctx, cfg, logg, client); err != nil {
			_ = client.Close()
			return nil, err
		}
		store, err := NewSQLStore(client, feed)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		logg.Info(ctx, "sql document store ready")
		return store, nil

	case config.DocStoreMemory:
		feed, err := newFeed(cfg.DocStore, rdb, logg)
		if err != nil {
			return nil, err
		}
		logg.Warn(ctx, "memory document store in use; data is lost on restart")
		return NewMemoryStore(feed), nil
	}
	return nil, fmt.Errorf("unsupported document store driver %q", cfg.DocStore.Driver)
}

func newFeed(cfg config.DocStoreConfig, rdb RedisPubSub, logg *logger.Logger) (ChangeFeed, error) {
	if cfg.ChangeFeed != config.ChangeFeedRedis {
		return NewLocalFeed(), nil
	}
	if rdb == nil {
		return nil, fmt.Errorf("redis change feed requires a redis client")
	}
	return NewRedisFeed(rdb, logg), nil
}

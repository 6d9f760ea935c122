package docstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Syntia28/nikos/pkg/config"
	"github.com/Syntia28/nikos/pkg/db"
	"github.com/Syntia28/nikos/pkg/migrate"
)

type storeFactory func(t *testing.T) Store

func newSQLiteStore(t *testing.T) Store {
	t.Helper()
	dsn := "file:docstore_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	if err := migrate.Run(context.Background(), sqlDB, "sqlite3", "up"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store, err := NewSQLStore(db.FromGorm(conn, config.DocStoreSQLite), NewLocalFeed())
	if err != nil {
		t.Fatalf("new sql store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newMemoryStore(t *testing.T) Store {
	t.Helper()
	return NewMemoryStore(nil)
}

func backends() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": newMemoryStore,
		"sqlite": newSQLiteStore,
	}
}

func TestStoreCRUD(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)

			created, err := store.Create(ctx, CollectionProducts, Document{
				"nombre": "Pizza Americana",
				"precio": 32.5,
				"stock":  4,
			})
			require.NoError(t, err)
			id := created.ID()
			require.NotEmpty(t, id)

			got, err := store.GetByID(ctx, CollectionProducts, id)
			require.NoError(t, err)
			require.Equal(t, "Pizza Americana", got["nombre"])
			require.EqualValues(t, 4, got["stock"])
			require.Equal(t, id, got[IDField])

			require.NoError(t, store.Update(ctx, CollectionProducts, id, Document{"stock": 2, IDField: "ignored"}))
			got, err = store.GetByID(ctx, CollectionProducts, id)
			require.NoError(t, err)
			require.EqualValues(t, 2, got["stock"])
			require.Equal(t, "Pizza Americana", got["nombre"], "update must merge top-level fields")
			require.Equal(t, id, got.ID())

			require.ErrorIs(t, store.Update(ctx, CollectionProducts, "missing", Document{"stock": 1}), ErrNotFound)

			require.NoError(t, store.Delete(ctx, CollectionProducts, id))
			_, err = store.GetByID(ctx, CollectionProducts, id)
			require.ErrorIs(t, err, ErrNotFound)
			require.NoError(t, store.Delete(ctx, CollectionProducts, id), "deleting twice is a no-op")
		})
	}
}

func TestStoreQueryByField(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)

			for _, doc := range []Document{
				{"user_id": "u1", "total": 10},
				{"user_id": "u2", "total": 20},
				{"user_id": "u1", "total": 30},
			} {
				_, err := store.Create(ctx, CollectionHistory, doc)
				require.NoError(t, err)
			}

			docs, err := store.QueryByField(ctx, CollectionHistory, "user_id", "u1")
			require.NoError(t, err)
			require.Len(t, docs, 2)

			docs, err = store.QueryByField(ctx, CollectionHistory, "total", 20)
			require.NoError(t, err)
			require.Len(t, docs, 1)
			require.Equal(t, "u2", docs[0]["user_id"])

			docs, err = store.QueryByField(ctx, CollectionHistory, "user_id", "nobody")
			require.NoError(t, err)
			require.Empty(t, docs)

			all, err := store.GetAll(ctx, CollectionHistory)
			require.NoError(t, err)
			require.Len(t, all, 3)
		})
	}
}

func TestStoreWatchDeliversInitialAndChanges(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)

			var (
				mu        sync.Mutex
				snapshots [][]Document
			)
			stop, err := store.Watch(ctx, CollectionHistory, "user_id", "u1", func(docs []Document, err error) {
				require.NoError(t, err)
				mu.Lock()
				snapshots = append(snapshots, docs)
				mu.Unlock()
			})
			require.NoError(t, err)

			_, err = store.Create(ctx, CollectionHistory, Document{"user_id": "u1", "estado": "pendiente"})
			require.NoError(t, err)

			mu.Lock()
			require.Len(t, snapshots, 2)
			require.Empty(t, snapshots[0])
			require.Len(t, snapshots[1], 1)
			mu.Unlock()

			stop()
			_, err = store.Create(ctx, CollectionHistory, Document{"user_id": "u1"})
			require.NoError(t, err)

			mu.Lock()
			require.Len(t, snapshots, 2, "no deliveries after unsubscribe")
			mu.Unlock()
		})
	}
}

func TestStoreRunInTxRollsBack(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)
			txStore, ok := store.(Transactional)
			require.True(t, ok)

			created, err := store.Create(ctx, CollectionProducts, Document{"stock": 5})
			require.NoError(t, err)

			boom := errors.New("boom")
			err = txStore.RunInTx(ctx, func(tx Store) error {
				if err := tx.Update(ctx, CollectionProducts, created.ID(), Document{"stock": 1}); err != nil {
					return err
				}
				return boom
			})
			require.ErrorIs(t, err, boom)

			got, err := store.GetByID(ctx, CollectionProducts, created.ID())
			require.NoError(t, err)
			require.EqualValues(t, 5, got["stock"])

			require.NoError(t, txStore.RunInTx(ctx, func(tx Store) error {
				return tx.Update(ctx, CollectionProducts, created.ID(), Document{"stock": 3})
			}))
			got, err = store.GetByID(ctx, CollectionProducts, created.ID())
			require.NoError(t, err)
			require.EqualValues(t, 3, got["stock"])
		})
	}
}

func TestDecodeIntoStruct(t *testing.T) {
	type order struct {
		ID    string    `json:"id"`
		Total float64   `json:"total"`
		Fecha time.Time `json:"fecha"`
	}
	when := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	var out order
	require.NoError(t, Decode(Document{"id": "o1", "total": 12.5, "fecha": when}, &out))
	require.Equal(t, "o1", out.ID)
	require.Equal(t, 12.5, out.Total)
	require.True(t, when.Equal(out.Fecha))
}

func TestValuesEqualNormalizesNumbers(t *testing.T) {
	require.True(t, valuesEqual(3, 3.0))
	require.True(t, valuesEqual(int64(3), float64(3)))
	require.False(t, valuesEqual("3", 3))
	require.True(t, matchesField(Document{}, "missing", nil))
}

func TestLocalFeedUnsubscribe(t *testing.T) {
	feed := NewLocalFeed()
	calls := 0
	unsubscribe := feed.Subscribe("carritos", func() { calls++ })
	feed.Publish(context.Background(), "carritos")
	feed.Publish(context.Background(), "productos")
	unsubscribe()
	unsubscribe()
	feed.Publish(context.Background(), "carritos")
	require.Equal(t, 1, calls)
}

func TestTransactionalBackends(t *testing.T) {
	var (
		_ Transactional = (*MemoryStore)(nil)
		_ Transactional = (*SQLStore)(nil)
		_ Transactional = (*MongoStore)(nil)
	)
	_, ok := any((*FirestoreStore)(nil)).(Transactional)
	require.False(t, ok, "firestore backend runs checkout sequentially")
}

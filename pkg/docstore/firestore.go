package docstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Syntia28/nikos/pkg/config"
)

const firestoreEmulatorEnv = "FIRESTORE_EMULATOR_HOST"

// FirestoreStore is the production backend; Watch rides native query snapshots.
// It does not implement Transactional because checkout interleaves reads and writes.
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(ctx context.Context, gcp config.GCPConfig, cfg config.FirestoreConfig) (*FirestoreStore, error) {
	if strings.TrimSpace(gcp.ProjectID) == "" {
		return nil, errors.New("gcp project id is required")
	}
	if host := strings.TrimSpace(cfg.EmulatorHost); host != "" {
		if err := os.Setenv(firestoreEmulatorEnv, host); err != nil {
			return nil, fmt.Errorf("set %s: %w", firestoreEmulatorEnv, err)
		}
	}

	databaseID := cfg.DatabaseID
	if databaseID == "" {
		databaseID = "(default)"
	}
	client, err := firestore.NewClientWithDatabase(ctx, gcp.ProjectID, databaseID, gcp.ClientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}
	return &FirestoreStore{client: client}, nil
}

func (f *FirestoreStore) Create(ctx context.Context, collection string, doc Document) (Document, error) {
	ref := f.client.Collection(collection).NewDoc()
	body := map[string]any(stripID(doc))
	if _, err := ref.Create(ctx, body); err != nil {
		return nil, fmt.Errorf("create %s: %w", collection, err)
	}
	return withID(Document(body), ref.ID), nil
}

func (f *FirestoreStore) GetAll(ctx context.Context, collection string) ([]Document, error) {
	return readAll(f.client.Collection(collection).Documents(ctx))
}

func (f *FirestoreStore) GetByID(ctx context.Context, collection, id string) (Document, error) {
	snap, err := f.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return snapshotToDocument(snap), nil
}

func (f *FirestoreStore) Update(ctx context.Context, collection, id string, fields Document) error {
	patch := stripID(fields)
	updates := make([]firestore.Update, 0, len(patch))
	for k, v := range patch {
		updates = append(updates, firestore.Update{FieldPath: firestore.FieldPath{k}, Value: v})
	}
	if len(updates) == 0 {
		_, err := f.GetByID(ctx, collection, id)
		return err
	}
	if _, err := f.client.Collection(collection).Doc(id).Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		}
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return nil
}

func (f *FirestoreStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := f.client.Collection(collection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (f *FirestoreStore) QueryByField(ctx context.Context, collection, field string, value any) ([]Document, error) {
	return readAll(f.client.Collection(collection).Where(field, "==", value).Documents(ctx))
}

func (f *FirestoreStore) Watch(ctx context.Context, collection, field string, value any, fn WatchFunc) (func(), error) {
	if fn == nil {
		return nil, errNilWatchFunc
	}
	ctx, cancel := context.WithCancel(ctx)
	it := f.client.Collection(collection).Where(field, "==", value).Snapshots(ctx)

	go func() {
		defer it.Stop()
		for {
			snap, err := it.Next()
			if ctx.Err() != nil || status.Code(err) == codes.Canceled {
				return
			}
			if err != nil {
				fn(nil, fmt.Errorf("watch %s: %w", collection, err))
				return
			}
			fn(readAll(snap.Documents))
		}
	}()

	return cancel, nil
}

func (f *FirestoreStore) Ping(ctx context.Context) error {
	it := f.client.Collection(CollectionProducts).Limit(1).Documents(ctx)
	defer it.Stop()
	if _, err := it.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return err
	}
	return nil
}

func (f *FirestoreStore) Close() error {
	return f.client.Close()
}

func readAll(it *firestore.DocumentIterator) ([]Document, error) {
	defer it.Stop()
	var out []Document
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, snapshotToDocument(snap))
	}
	return out, nil
}

func snapshotToDocument(snap *firestore.DocumentSnapshot) Document {
	return withID(Document(snap.Data()), snap.Ref.ID)
}

package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/Syntia28/nikos/pkg/docstore"
	pkgerrors "github.com/Syntia28/nikos/pkg/errors"
)

// Repository persists carritos documents.
type Repository struct {
	store docstore.Store
}

func NewRepository(store docstore.Store) (*Repository, error) {
	if store == nil {
		return nil, fmt.Errorf("document store required")
	}
	return &Repository{store: store}, nil
}

// WithStore returns a repository bound to store, typically a transaction handle.
func (r *Repository) WithStore(store docstore.Store) *Repository {
	return &Repository{store: store}
}

// FindByUser returns the user's cart, or nil when none exists. Only the first match is used.
func (r *Repository) FindByUser(ctx context.Context, userID string) (*Record, error) {
	docs, err := r.store.QueryByField(ctx, docstore.CollectionCarts, "user_id", userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "query cart")
	}
	if len(docs) == 0 {
		return nil, nil
	}
	var rec Record
	if err := docstore.Decode(docs[0], &rec); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode cart")
	}
	if rec.Items == nil {
		rec.Items = []Line{}
	}
	return &rec, nil
}

func (r *Repository) Create(ctx context.Context, userID string, now time.Time) (*Record, error) {
	doc, err := r.store.Create(ctx, docstore.CollectionCarts, docstore.Document{
		"user_id": userID,
		"items":   []any{},
		"fecha":   now,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return &Record{ID: doc.ID(), UserID: userID, Items: []Line{}}, nil
}

// SaveItems overwrites the item list and bumps fecha.
func (r *Repository) SaveItems(ctx context.Context, cartID string, items []Line, now time.Time) error {
	err := r.store.Update(ctx, docstore.CollectionCarts, cartID, docstore.Document{
		"items": linesDocument(items),
		"fecha": now,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	return nil
}

package product

import (
	"context"
	"errors"
	"fmt"

	"github.com/Syntia28/nikos/pkg/docstore"
	pkgerrors "github.com/Syntia28/nikos/pkg/errors"
	"github.com/Syntia28/nikos/pkg/logger"
)

// Repository reads and writes the productos collection.
type Repository struct {
	store docstore.Store
	logg  *logger.Logger
}

func NewRepository(store docstore.Store) (*Repository, error) {
	if store == nil {
		return nil, fmt.Errorf("document store required")
	}
	return &Repository{store: store, logg: logger.Nop()}, nil
}

// WithStore returns a repository bound to store, typically a transaction handle.
func (r *Repository) WithStore(store docstore.Store) *Repository {
	return &Repository{store: store, logg: r.logg}
}

func (r *Repository) withLogger(logg *logger.Logger) *Repository {
	return &Repository{store: r.store, logg: logg}
}

// List skips catalog documents that do not decode; they are logged, not surfaced.
func (r *Repository) List(ctx context.Context) ([]Product, error) {
	docs, err := r.store.GetAll(ctx, docstore.CollectionProducts)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	out := make([]Product, 0, len(docs))
	for _, doc := range docs {
		p, err := decodeProduct(doc)
		if err != nil {
			r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
				"product_id": doc.ID(),
				"error":      err.Error(),
			}), "skipping undecodable product")
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

// FindByID returns a NOT_FOUND error wrapping docstore.ErrNotFound when the id does not resolve.
func (r *Repository) FindByID(ctx context.Context, id string) (*Product, error) {
	doc, err := r.store.GetByID(ctx, docstore.CollectionProducts, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, pkgerrors.NotFound("producto", err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "get product")
	}
	p, err := decodeProduct(doc)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode product")
	}
	return p, nil
}

func (r *Repository) UpdateStock(ctx context.Context, id string, stock int) error {
	if err := r.store.Update(ctx, docstore.CollectionProducts, id, docstore.Document{"stock": stock}); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return pkgerrors.NotFound("producto", err)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product stock")
	}
	return nil
}

// SaveRatings rewrites the calificaciones array together with its derived aggregates.
func (r *Repository) SaveRatings(ctx context.Context, id string, ratings []Rating) (float64, int, error) {
	entries := make([]any, 0, len(ratings))
	for _, rating := range ratings {
		entries = append(entries, rating.Document())
	}
	avg, total := Aggregate(ratings)
	err := r.store.Update(ctx, docstore.CollectionProducts, id, docstore.Document{
		"calificaciones":      entries,
		"ratingPromedio":      avg,
		"totalCalificaciones": total,
	})
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return 0, 0, pkgerrors.NotFound("producto", err)
		}
		return 0, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product ratings")
	}
	return avg, total, nil
}

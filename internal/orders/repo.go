package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Syntia28/nikos/pkg/docstore"
	pkgerrors "github.com/Syntia28/nikos/pkg/errors"
	"github.com/Syntia28/nikos/pkg/logger"
)

// Repository reads and writes the historial collection.
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

func (r *Repository) Create(ctx context.Context, order NewOrder, now time.Time) (*Record, error) {
	items := make([]any, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, map[string]any{"idProducto": item.IDProducto, "cantidad": item.Cantidad})
	}
	doc, err := r.store.Create(ctx, docstore.CollectionHistory, docstore.Document{
		"user_id":      order.UserID,
		"items":        items,
		"total":        order.Total,
		"fecha":        now,
		"estado":       order.Estado.String(),
		"datosEntrega": order.DatosEntrega.Document(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	return decodeRecord(doc)
}

func (r *Repository) FindByID(ctx context.Context, id string) (*Record, error) {
	doc, err := r.store.GetByID(ctx, docstore.CollectionHistory, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, pkgerrors.NotFound("pedido", err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "get order")
	}
	return decodeRecord(doc)
}

func (r *Repository) ListByUser(ctx context.Context, userID string) ([]Record, error) {
	docs, err := r.store.QueryByField(ctx, docstore.CollectionHistory, "user_id", userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return r.decodeRecords(ctx, docs), nil
}

// WatchByUser streams the user's full order set on every change until the returned stop is called.
func (r *Repository) WatchByUser(ctx context.Context, userID string, fn func([]Record, error)) (func(), error) {
	stop, err := r.store.Watch(ctx, docstore.CollectionHistory, "user_id", userID, func(docs []docstore.Document, err error) {
		if err != nil {
			fn(nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "watch orders"))
			return
		}
		fn(r.decodeRecords(ctx, docs), nil)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "watch orders")
	}
	return stop, nil
}

// SetRating writes the calificacion field; callers gate on IsRated.
func (r *Repository) SetRating(ctx context.Context, id string, rating Calificacion) error {
	err := r.store.Update(ctx, docstore.CollectionHistory, id, docstore.Document{
		"calificacion": map[string]any{
			"score":   rating.Score,
			"comment": rating.Comment,
			"fecha":   rating.Fecha.Time,
			"userId":  rating.UserID,
		},
	})
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return pkgerrors.NotFound("pedido", err)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save order rating")
	}
	return nil
}

func decodeRecord(doc docstore.Document) (*Record, error) {
	var rec Record
	if err := docstore.Decode(doc, &rec); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode order")
	}
	if rec.Items == nil {
		rec.Items = []LineRef{}
	}
	return &rec, nil
}

// decodeRecords skips documents that do not decode so one bad record cannot hide
// the rest of a user's history.
func (r *Repository) decodeRecords(ctx context.Context, docs []docstore.Document) []Record {
	out := make([]Record, 0, len(docs))
	for _, doc := range docs {
		rec, err := decodeRecord(doc)
		if err != nil {
			r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
				"order_id": doc.ID(),
				"error":    err.Error(),
			}), "skipping undecodable order")
			continue
		}
		out = append(out, *rec)
	}
	return out
}

package docstore

import (
	"context"
	"errors"
)

// IDField is the key every returned document carries its identifier under.
const IDField = "id"

// Collections used by the storefront.
const (
	CollectionProducts = "productos"
	CollectionCarts    = "carritos"
	CollectionHistory  = "historial"
	CollectionUsers    = "usuarios"
)

// ErrNotFound is returned when a document id does not resolve.
var ErrNotFound = errors.New("document not found")

var errNilWatchFunc = errors.New("watch callback is required")

// Document is a schemaless record keyed by top-level field name.
type Document map[string]any

// ID returns the identifier stamped on the document, if any.
func (d Document) ID() string {
	id, _ := d[IDField].(string)
	return id
}

// WatchFunc receives the full result set of a watched query each time it changes.
type WatchFunc func(docs []Document, err error)

// Store is the document persistence contract shared by every backend.
type Store interface {
	// Create stores doc under a generated id and returns it with IDField set.
	Create(ctx context.Context, collection string, doc Document) (Document, error)
	GetAll(ctx context.Context, collection string) ([]Document, error)
	GetByID(ctx context.Context, collection, id string) (Document, error)
	// Update merges fields into the stored document at the top level.
	Update(ctx context.Context, collection, id string, fields Document) error
	// Delete removes the document; deleting a missing id is not an error.
	Delete(ctx context.Context, collection, id string) error
	QueryByField(ctx context.Context, collection, field string, value any) ([]Document, error)
	// Watch delivers the current result of the equality query and every subsequent change
	// until the returned func is called or ctx ends.
	Watch(ctx context.Context, collection, field string, value any, fn WatchFunc) (func(), error)
}

// Transactional is implemented by backends able to run several writes as one unit.
type Transactional interface {
	RunInTx(ctx context.Context, fn func(tx Store) error) error
}

// Backend is a Store with lifecycle hooks used by the process wiring.
type Backend interface {
	Store
	Ping(ctx context.Context) error
	Close() error
}

package users

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Syntia28/nikos/pkg/docstore"
	pkgerrors "github.com/Syntia28/nikos/pkg/errors"
)

// Repository exposes usuarios persistence operations.
type Repository struct {
	store docstore.Store
}

// NewRepository constructs a users repo bound to the provided document store.
func NewRepository(store docstore.Store) (*Repository, error) {
	if store == nil {
		return nil, fmt.Errorf("document store required")
	}
	return &Repository{store: store}, nil
}

// Create inserts a new user with a fresh uid and emailVerified=false.
func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*Account, error) {
	doc, err := r.store.Create(ctx, docstore.CollectionUsers, docstore.Document{
		"uid":           uuid.NewString(),
		"nombre":        dto.Nombre,
		"apellido":      dto.Apellido,
		"email":         dto.Email,
		"telefono":      dto.Telefono,
		"direccion":     dto.Direccion,
		"fechaRegistro": dto.RegisteredAt,
		"emailVerified": false,
		"passwordHash":  dto.PasswordHash,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}
	return decodeAccount(doc)
}

// FindByUID returns a NOT_FOUND error when no profile carries the uid.
func (r *Repository) FindByUID(ctx context.Context, uid string) (*Account, error) {
	return r.findOne(ctx, "uid", uid)
}

// FindByEmail expects a lower-cased email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return r.findOne(ctx, "email", email)
}

// UpdateLastLogin refreshes the user's lastLoginAt timestamp.
func (r *Repository) UpdateLastLogin(ctx context.Context, docID string, at time.Time) error {
	if err := r.store.Update(ctx, docstore.CollectionUsers, docID, docstore.Document{"lastLoginAt": at}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update last login")
	}
	return nil
}

// UpdatePasswordHash replaces the stored Argon2id hash.
func (r *Repository) UpdatePasswordHash(ctx context.Context, docID, hash string) error {
	if err := r.store.Update(ctx, docstore.CollectionUsers, docID, docstore.Document{"passwordHash": hash}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update password hash")
	}
	return nil
}

func (r *Repository) findOne(ctx context.Context, field, value string) (*Account, error) {
	docs, err := r.store.QueryByField(ctx, docstore.CollectionUsers, field, value)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "query user")
	}
	if len(docs) == 0 {
		return nil, pkgerrors.NotFound("usuario", docstore.ErrNotFound)
	}
	return decodeAccount(docs[0])
}

func decodeAccount(doc docstore.Document) (*Account, error) {
	var acc Account
	if err := docstore.Decode(doc, &acc); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode user")
	}
	return &acc, nil
}

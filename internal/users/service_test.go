package users

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Syntia28/nikos/pkg/docstore"
	pkgerrors "github.com/Syntia28/nikos/pkg/errors"
)

func TestCreateAndProfile(t *testing.T) {
	ctx := context.Background()
	repo, err := NewRepository(docstore.NewMemoryStore(nil))
	require.NoError(t, err)
	svc, err := NewService(repo)
	require.NoError(t, err)

	registered := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	acc, err := repo.Create(ctx, CreateUserDTO{
		Nombre:       "Ana",
		Apellido:     "Quispe",
		Email:        "ana@example.com",
		Telefono:     "987654321",
		PasswordHash: "hash",
		RegisteredAt: registered,
	})
	require.NoError(t, err)
	require.NotEmpty(t, acc.UID)
	require.NotEmpty(t, acc.DocID)
	require.Equal(t, "hash", acc.PasswordHash)
	require.False(t, acc.EmailVerified)

	profile, err := svc.Profile(ctx, acc.UID)
	require.NoError(t, err)
	require.Equal(t, "Ana", profile.Nombre)
	require.True(t, profile.FechaRegistro.Equal(registered))

	body, err := json.Marshal(profile)
	require.NoError(t, err)
	require.NotContains(t, string(body), "hash")

	byEmail, err := repo.FindByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	require.Equal(t, acc.UID, byEmail.UID)

	_, err = svc.Profile(ctx, "unknown")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.Profile(ctx, "")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

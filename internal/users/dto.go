package users

import (
	"time"

	"github.com/Syntia28/nikos/pkg/types"
)

// Profile is the transport shape of a usuarios document; credentials are never included.
type Profile struct {
	UID           string          `json:"uid"`
	Nombre        string          `json:"nombre"`
	Apellido      string          `json:"apellido"`
	Email         string          `json:"email"`
	Telefono      string          `json:"telefono"`
	Direccion     string          `json:"direccion"`
	FechaRegistro types.Timestamp `json:"fechaRegistro"`
	EmailVerified bool            `json:"emailVerified"`
}

// Account is the stored user including the password hash.
type Account struct {
	DocID        string          `json:"id"`
	PasswordHash string          `json:"passwordHash"`
	LastLoginAt  types.Timestamp `json:"lastLoginAt"`
	Profile
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Nombre       string
	Apellido     string
	Email        string
	Telefono     string
	Direccion    string
	PasswordHash string
	RegisteredAt time.Time
}

// ToProfile strips credentials.
func (a *Account) ToProfile() *Profile {
	if a == nil {
		return nil
	}
	p := a.Profile
	return &p
}

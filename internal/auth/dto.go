package auth

import "github.com/Syntia28/nikos/internal/users"

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest is the sign-up form.
type RegisterRequest struct {
	Nombre    string `json:"nombre" validate:"required"`
	Apellido  string `json:"apellido" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	Telefono  string `json:"telefono" validate:"omitempty,telefono"`
	Direccion string `json:"direccion"`
}

// RefreshRequest carries the possibly expired access token and its refresh token. The HTTP
// layer fills AccessToken from the Authorization header when the body omits it.
type RefreshRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LoginResponse contains the tokens and profile produced by a successful login or registration.
type LoginResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	User         *users.Profile `json:"user"`
}

// RefreshResponse carries the rotated token pair.
type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Identity is the authenticated user broadcast on auth state changes; nil means signed out.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Syntia28/nikos/internal/users"
	pkgAuth "github.com/Syntia28/nikos/pkg/auth"
	"github.com/Syntia28/nikos/pkg/auth/session"
	"github.com/Syntia28/nikos/pkg/config"
	pkgerrors "github.com/Syntia28/nikos/pkg/errors"
	"github.com/Syntia28/nikos/pkg/eventbus"
	"github.com/Syntia28/nikos/pkg/logger"
	"github.com/Syntia28/nikos/pkg/security"
)

const (
	invalidCredentialsMessage = "invalid credentials"
	emailTakenMessage         = "El correo ya está registrado"
)

// Service is the authentication collaborator: register, login, logout, refresh and auth
// state listeners.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*LoginResponse, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Logout(ctx context.Context, accessID string) error
	Refresh(ctx context.Context, req RefreshRequest) (*RefreshResponse, error)
	OnAuthStateChange(fn func(ctx context.Context, identity *Identity)) func()
}

type userRepository interface {
	Create(ctx context.Context, dto users.CreateUserDTO) (*users.Account, error)
	FindByEmail(ctx context.Context, email string) (*users.Account, error)
	UpdateLastLogin(ctx context.Context, docID string, at time.Time) error
	UpdatePasswordHash(ctx context.Context, docID, hash string) error
}

type sessionManager interface {
	Generate(ctx context.Context, accessID, userID string) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

type eventBus interface {
	Emit(ctx context.Context, name string, payload any)
	Subscribe(name string, h eventbus.Handler) func()
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	UserRepo       userRepository
	SessionManager sessionManager
	Bus            eventBus
	Logger         *logger.Logger
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
}

type service struct {
	users       userRepository
	session     sessionManager
	bus         eventBus
	logg        *logger.Logger
	jwtCfg      config.JWTConfig
	passwordCfg config.PasswordConfig
	now         func() time.Time
}

// NewService constructs an auth service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.SessionManager == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if params.Bus == nil {
		return nil, fmt.Errorf("event bus is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{
		users:       params.UserRepo,
		session:     params.SessionManager,
		bus:         params.Bus,
		logg:        params.Logger,
		jwtCfg:      params.JWTConfig,
		passwordCfg: params.PasswordConfig,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if err := security.CheckPasswordPolicy(req.Password); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, emailTakenMessage)
	} else if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return nil, err
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	now := s.now()
	account, err := s.users.Create(ctx, users.CreateUserDTO{
		Nombre:       strings.TrimSpace(req.Nombre),
		Apellido:     strings.TrimSpace(req.Apellido),
		Email:        email,
		Telefono:     strings.TrimSpace(req.Telefono),
		Direccion:    strings.TrimSpace(req.Direccion),
		PasswordHash: passwordHash,
		RegisteredAt: now,
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithUserID(ctx, account.UID), "user registered")
	return s.issue(ctx, account, now)
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	account, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.users.UpdateLastLogin(ctx, account.DocID, now); err != nil {
		return nil, err
	}
	s.upgradeHash(ctx, account, req.Password)
	return s.issue(ctx, account, now)
}

// upgradeHash re-encodes the password when the Argon2 settings changed since
// it was stored. Failures leave the old hash in place.
func (s *service) upgradeHash(ctx context.Context, account *users.Account, password string) {
	if !security.NeedsRehash(account.PasswordHash, s.passwordCfg) {
		return
	}
	ctx = s.logg.WithUserID(ctx, account.UID)
	hash, err := security.HashPassword(password, s.passwordCfg)
	if err == nil {
		err = s.users.UpdatePasswordHash(ctx, account.DocID, hash)
	}
	if err != nil {
		s.logg.Error(ctx, "password rehash failed", err)
		return
	}
	account.PasswordHash = hash
	s.logg.Info(ctx, "password hash upgraded")
}

// Logout revokes the refresh session bound to the access token id.
func (s *service) Logout(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return pkgerrors.SignInRequired()
	}
	if err := s.session.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	s.bus.Emit(ctx, eventbus.AuthStateChanged, (*Identity)(nil))
	return nil
}

func (s *service) Refresh(ctx context.Context, req RefreshRequest) (*RefreshResponse, error) {
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(s.jwtCfg, req.AccessToken)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid access token")
	}

	newAccessID, refreshToken, err := s.session.Rotate(ctx, claims.ID, req.RefreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session")
	}

	accessToken, err := pkgAuth.MintAccessToken(s.jwtCfg, s.now(), pkgAuth.AccessTokenPayload{
		UserID: claims.UserID,
		Email:  claims.Email,
		JTI:    newAccessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return &RefreshResponse{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// OnAuthStateChange registers fn for sign-in and sign-out notifications.
func (s *service) OnAuthStateChange(fn func(ctx context.Context, identity *Identity)) func() {
	if fn == nil {
		return func() {}
	}
	return s.bus.Subscribe(eventbus.AuthStateChanged, func(ctx context.Context, evt eventbus.Event) error {
		identity, ok := evt.Payload.(*Identity)
		if !ok {
			return fmt.Errorf("unexpected auth payload %T", evt.Payload)
		}
		fn(ctx, identity)
		return nil
	})
}

func (s *service) issue(ctx context.Context, account *users.Account, now time.Time) (*LoginResponse, error) {
	accessID := session.NewAccessID()
	accessToken, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		UserID: account.UID,
		Email:  account.Email,
		JTI:    accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	refreshToken, err := s.session.Generate(ctx, accessID, account.UID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store refresh token")
	}

	s.bus.Emit(ctx, eventbus.AuthStateChanged, &Identity{UserID: account.UID, Email: account.Email})
	return &LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         account.ToProfile(),
	}, nil
}

func (s *service) authenticate(ctx context.Context, email, password string) (*users.Account, error) {
	input := strings.ToLower(strings.TrimSpace(email))
	if input == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	account, err := s.users.FindByEmail(ctx, input)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, err
	}

	valid, err := security.VerifyPassword(password, account.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	return account, nil
}

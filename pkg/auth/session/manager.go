package session

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Syntia28/nikos/pkg/config"
	redisclient "github.com/Syntia28/nikos/pkg/redis"
	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
)

const refreshTokenBytes = 32

var (
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	errMissingAccessID     = errors.New("access id is required")
)

type sessionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	GetDel(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	AccessSessionKey(accessID string) string
}

// record is stored under the access token's jti for the refresh TTL.
type record struct {
	UserID       string `json:"user_id"`
	RefreshToken string `json:"refresh_token"`
}

// Manager keeps one refresh session per access token id in Redis.
type Manager struct {
	store sessionStore
	ttl   time.Duration
}

// AccessSessionChecker is what the auth middleware needs to reject logged-out tokens.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

// NewManager requires the refresh TTL to outlive the access token.
func NewManager(client *redisclient.Client, cfg config.JWTConfig) (*Manager, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	ttl := cfg.RefreshTokenTTL()
	if ttl <= 0 {
		return nil, errors.New("refresh token ttl must be positive")
	}
	if accessTTL := time.Duration(cfg.ExpirationMinutes) * time.Minute; ttl <= accessTTL {
		return nil, fmt.Errorf("refresh token ttl (%s) must exceed access token ttl (%s)", ttl, accessTTL)
	}
	return &Manager{store: client, ttl: ttl}, nil
}

// Generate stores a fresh refresh token for userID under accessID.
func (m *Manager) Generate(ctx context.Context, accessID, userID string) (string, error) {
	if blank(accessID) {
		return "", errMissingAccessID
	}
	if blank(userID) {
		return "", errors.New("user id is required")
	}
	return m.issue(ctx, accessID, userID)
}

// Rotate trades the refresh token bound to oldAccessID for a new access id and
// refresh token. Only one of several concurrent rotations of the same session
// succeeds; the rest get ErrInvalidRefreshToken.
func (m *Manager) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	if blank(oldAccessID) || blank(provided) {
		return "", "", ErrInvalidRefreshToken
	}
	current, err := m.load(ctx, m.store.Get, oldAccessID)
	if err != nil {
		return "", "", err
	}
	if subtle.ConstantTimeCompare([]byte(current.RefreshToken), []byte(provided)) != 1 {
		return "", "", ErrInvalidRefreshToken
	}

	// A wrong token above leaves the session in place; only the holder of the
	// right one may consume it.
	if _, err := m.load(ctx, m.store.GetDel, oldAccessID); err != nil {
		return "", "", err
	}

	newAccessID := NewAccessID()
	token, err := m.issue(ctx, newAccessID, current.UserID)
	if err != nil {
		return "", "", err
	}
	return newAccessID, token, nil
}

// Revoke ends the session on logout.
func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if blank(accessID) {
		return errMissingAccessID
	}
	return m.store.Del(ctx, m.store.AccessSessionKey(accessID))
}

// HasSession is false once the session was revoked, rotated or expired.
func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	_, err := m.UserFor(ctx, accessID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrInvalidRefreshToken):
		return false, nil
	default:
		return false, err
	}
}

// UserFor returns the uid bound to an active access id.
func (m *Manager) UserFor(ctx context.Context, accessID string) (string, error) {
	if blank(accessID) {
		return "", errMissingAccessID
	}
	rec, err := m.load(ctx, m.store.Get, accessID)
	if err != nil {
		return "", err
	}
	return rec.UserID, nil
}

func (m *Manager) issue(ctx context.Context, accessID, userID string) (string, error) {
	token, err := generateRefreshToken()
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(record{UserID: userID, RefreshToken: token})
	if err != nil {
		return "", fmt.Errorf("encoding session: %w", err)
	}
	if err := m.store.Set(ctx, m.store.AccessSessionKey(accessID), string(payload), m.ttl); err != nil {
		return "", err
	}
	return token, nil
}

// load reads a session with read (Get or GetDel). A missing key is ErrInvalidRefreshToken.
func (m *Manager) load(ctx context.Context, read func(context.Context, string) (string, error), accessID string) (record, error) {
	raw, err := read(ctx, m.store.AccessSessionKey(accessID))
	if errors.Is(err, redislib.Nil) {
		return record{}, ErrInvalidRefreshToken
	}
	if err != nil {
		return record{}, err
	}
	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return record{}, fmt.Errorf("decoding session: %w", err)
	}
	return rec, nil
}

// NewAccessID is used as both the JWT jti and the session key.
func NewAccessID() string {
	return uuid.NewString()
}

func generateRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

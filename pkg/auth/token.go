package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Syntia28/nikos/pkg/config"
)

// Audience is stamped on every storefront access token and required when parsing.
const Audience = "nikos-app"

// ErrSessionlessToken is returned for tokens without a user or an access session id.
// Every storefront token is bound to a redis access session through its jti.
var ErrSessionlessToken = errors.New("token is not bound to a session")

var signingMethod = jwt.SigningMethodHS256

// MintAccessToken signs a session-bound token for payload. A blank JTI gets a fresh id;
// the email is stored lower-cased like the usuarios profile.
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	if err := checkConfig(cfg); err != nil {
		return "", err
	}
	if cfg.ExpirationMinutes <= 0 {
		return "", fmt.Errorf("jwt expiration minutes must be positive")
	}
	uid := strings.TrimSpace(payload.UserID)
	if uid == "" {
		return "", fmt.Errorf("user id is required")
	}
	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}

	ttl := time.Duration(cfg.ExpirationMinutes) * time.Minute
	claims := AccessTokenClaims{
		UserID: uid,
		Email:  strings.ToLower(strings.TrimSpace(payload.Email)),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    cfg.Issuer,
			Subject:   uid,
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies signature, issuer, audience and expiry.
func ParseAccessToken(cfg config.JWTConfig, tokenString string) (*AccessTokenClaims, error) {
	return parse(cfg, tokenString, false)
}

// ParseAccessTokenAllowExpired skips the time checks so logout and refresh can still read
// the session id of an expired token. The signature is always verified.
func ParseAccessTokenAllowExpired(cfg config.JWTConfig, tokenString string) (*AccessTokenClaims, error) {
	return parse(cfg, tokenString, true)
}

func parse(cfg config.JWTConfig, tokenString string, allowExpired bool) (*AccessTokenClaims, error) {
	if err := checkConfig(cfg); err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithAudience(Audience),
	}
	if allowExpired {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	claims := &AccessTokenClaims{}
	_, err := jwt.NewParser(opts...).ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	})
	if err != nil {
		return nil, err
	}
	// WithoutClaimsValidation drops the issuer and audience checks along with expiry.
	if allowExpired && (claims.Issuer != cfg.Issuer || !hasAudience(claims.Audience)) {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.UserID == "" || claims.ID == "" {
		return nil, ErrSessionlessToken
	}
	return claims, nil
}

func hasAudience(aud jwt.ClaimStrings) bool {
	for _, a := range aud {
		if a == Audience {
			return true
		}
	}
	return false
}

func checkConfig(cfg config.JWTConfig) error {
	if cfg.Secret == "" {
		return fmt.Errorf("jwt secret is required")
	}
	if cfg.Issuer == "" {
		return fmt.Errorf("jwt issuer is required")
	}
	return nil
}

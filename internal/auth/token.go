// Package auth implements the stateless signed-token scheme used to
// authenticate API callers. Tokens are HS256 JWTs minted by the identity
// service at login and verified here without a database round trip.
package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/KabirBatra18/valoquick-sub001/internal/types"
)

// tokenClaims is the signed payload carried inside an access token.
type tokenClaims struct {
	UserID string         `json:"uid"`
	FirmID string         `json:"fid,omitempty"`
	Role   types.UserRole `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenAuthenticator verifies HS256-signed access tokens. Implements
// core.Authenticator.
type TokenAuthenticator struct {
	secret types.SecretString
	clock  types.Clock
	parser *jwt.Parser
}

// NewTokenAuthenticator creates a TokenAuthenticator over the signing
// secret.
func NewTokenAuthenticator(secret types.SecretString, clock types.Clock) *TokenAuthenticator {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &TokenAuthenticator{
		secret: secret,
		clock:  clock,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithTimeFunc(clock.Now),
		),
	}
}

// Authenticate resolves a bearer token into an Actor.
func (a *TokenAuthenticator) Authenticate(r *http.Request, token string) (types.Actor, error) {
	claims := &tokenClaims{}
	parsed, err := a.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(a.secret.Unmask()), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return types.Actor{}, types.NewAppError(types.ErrCodeAuthTokenExpired, "access token has expired", err)
		}
		return types.Actor{}, types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid access token", err)
	}
	if !parsed.Valid {
		return types.Actor{}, types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid access token", nil)
	}
	if claims.UserID == "" {
		return types.Actor{}, types.NewAppError(types.ErrCodeAuthTokenInvalid, "token carries no identity", nil)
	}

	return types.Actor{
		ID:     claims.UserID,
		Type:   types.ActorTypeUser,
		FirmID: claims.FirmID,
		Role:   claims.Role,
	}, nil
}

// Mint issues a signed token for the given identity. Used by the identity
// service and by tests. A non-positive ttl yields a token without an
// expiry claim.
func (a *TokenAuthenticator) Mint(userID, firmID string, role types.UserRole, ttl time.Duration) (string, error) {
	now := a.clock.Now()
	claims := &tokenClaims{
		UserID: userID,
		FirmID: firmID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte(a.secret.Unmask()))
}

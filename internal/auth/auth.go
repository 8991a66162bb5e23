// Package auth verifies caller tokens and carries the resulting identity
// through the request context.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"servizephyr/internal/model"

	"github.com/dgrijalva/jwt-go"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims is the token payload issued by the identity provider.
type Claims struct {
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
	Name     string `json:"name"`
	jwt.StandardClaims
}

var knownRoles = map[model.Role]bool{
	model.RoleCustomer: true,
	model.RoleOwner:    true,
	model.RoleOperator: true,
	model.RoleRider:    true,
	model.RoleAdmin:    true,
}

// Verifier checks HS256 tokens signed with a shared secret.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier for secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses token and maps its claims to an Identity.
func (v *Verifier) Verify(token string) (model.Identity, error) {
	if token == "" {
		return model.Identity{}, ErrMissingToken
	}
	if len(v.secret) == 0 {
		return model.Identity{}, fmt.Errorf("%w: verifier has no secret", ErrInvalidToken)
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return model.Identity{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return model.Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	role := model.Role(claims.Role)
	if !knownRoles[role] {
		return model.Identity{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}

	return model.Identity{
		UserID:   claims.Subject,
		TenantID: claims.TenantID,
		Role:     role,
		Name:     claims.Name,
	}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// IssueToken signs an identity. Used by tests and local tooling only.
func IssueToken(secret string, id model.Identity, ttl time.Duration) (string, error) {
	claims := Claims{
		TenantID: id.TenantID,
		Role:     string(id.Role),
		Name:     id.Name,
		StandardClaims: jwt.StandardClaims{
			Subject:   id.UserID,
			IssuedAt:  time.Now().Unix(),
			ExpiresAt: time.Now().Add(ttl).Unix(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

type identityKey struct{}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity stored by WithIdentity.
func IdentityFrom(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(model.Identity)
	return id, ok
}

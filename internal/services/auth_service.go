package services

import (
	"context"
	"strings"

	seha_errors "seha-backend/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the resolved caller of a request or socket connection.
// Authentication itself lives outside this service; tokens are only verified
// and read here.
type Identity struct {
	UserID string
	Name   string
	Email  string
	Role   string
}

// IsAdmin reports whether the identity carries the admin capability.
func (i Identity) IsAdmin() bool {
	switch strings.ToLower(i.Role) {
	case "admin", "superadmin":
		return true
	}
	return false
}

type AccessClaims struct {
	UserID string `json:"sub"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type AuthService struct {
	jwtSecret []byte
}

func NewAuthService(jwtSecret string) *AuthService {
	return &AuthService{jwtSecret: []byte(jwtSecret)}
}

// ParseAccessToken verifies an HMAC-signed access token and returns its
// claims.
func (s *AuthService) ParseAccessToken(tokenString string) (AccessClaims, error) {
	if tokenString == "" {
		return AccessClaims{}, seha_errors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, seha_errors.ErrUnauthorized
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return AccessClaims{}, seha_errors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid {
		return AccessClaims{}, seha_errors.ErrUnauthorized
	}

	return *claims, nil
}

// ResolveIdentity turns a presented token into an Identity.
func (s *AuthService) ResolveIdentity(tokenString string) (Identity, error) {
	claims, err := s.ParseAccessToken(tokenString)
	if err != nil {
		return Identity{}, err
	}
	if strings.TrimSpace(claims.UserID) == "" {
		return Identity{}, seha_errors.ErrUnauthorized
	}
	return Identity{
		UserID: strings.TrimSpace(claims.UserID),
		Name:   claims.Name,
		Email:  claims.Email,
		Role:   claims.Role,
	}, nil
}

type ctxKey string

const identityKey ctxKey = "identity"

func WithIdentityContext(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	value := ctx.Value(identityKey)
	if value == nil {
		return Identity{}, false
	}
	identity, ok := value.(Identity)
	return identity, ok
}

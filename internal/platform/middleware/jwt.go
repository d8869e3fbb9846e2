package middleware

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

type adminKey struct{}

func withAdmin(ctx context.Context) context.Context {
	return context.WithValue(ctx, adminKey{}, true)
}

// IsAdmin reports whether the authenticated caller carries the admin claim.
func IsAdmin(ctx context.Context) bool {
	admin, _ := ctx.Value(adminKey{}).(bool)
	return admin
}

// serviceClaims is the JWT claim set issued to service callers.
type serviceClaims struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	Admin    bool   `json:"admin"`
	jwt.RegisteredClaims
}

// HS256Validator validates HMAC-signed service tokens.
type HS256Validator struct {
	signingKey []byte
}

// NewHS256Validator creates a validator for the shared signing key.
func NewHS256Validator(signingKey string) *HS256Validator {
	return &HS256Validator{signingKey: []byte(signingKey)}
}

// ValidateToken parses and verifies a token, returning its claims.
func (v *HS256Validator) ValidateToken(tokenString string) (*JWTClaims, error) {
	var claims serviceClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return v.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return &JWTClaims{
		UserID:   claims.UserID,
		TenantID: claims.TenantID,
		Admin:    claims.Admin,
	}, nil
}

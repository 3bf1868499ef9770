package middleware

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// Context key type to avoid collisions
type contextKey string

// ClaimsKey is the context key for validated token claims
const ClaimsKey contextKey = "claims"

// Claims are the admin token claims the API relies on
type Claims struct {
	Sub    string   `json:"sub"`
	Role   string   `json:"role"`
	Groups []string `json:"groups,omitempty"`
	Iss    string   `json:"iss"`
	Exp    int64    `json:"exp"`
	Iat    int64    `json:"iat"`
}

// HasRole reports whether the claims carry role, either as the primary role
// or as a group.
func (c *Claims) HasRole(role string) bool {
	if c.Role == role {
		return true
	}
	for _, g := range c.Groups {
		if g == role {
			return true
		}
	}
	return false
}

// GetRequestIDFromContext retrieves the request ID set by chi's RequestID
// middleware
func GetRequestIDFromContext(ctx context.Context) string {
	return chimw.GetReqID(ctx)
}

// GetClaimsFromContext retrieves token claims from context
func GetClaimsFromContext(ctx context.Context) *Claims {
	if val := ctx.Value(ClaimsKey); val != nil {
		if claims, ok := val.(*Claims); ok {
			return claims
		}
	}
	return nil
}

// WithClaims adds token claims to the context
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

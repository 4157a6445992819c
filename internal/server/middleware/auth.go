// Package middleware provides HTTP middleware for authentication.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

// operatorIDKey is the context key for storing the authenticated operator id.
const operatorIDKey ContextKey = "operatorID"

// TokenValidator validates bearer tokens.
// This allows the middleware to work with any JWT service implementation.
type TokenValidator interface {
	ValidateToken(tokenString string) (OperatorIDGetter, error)
}

// OperatorIDGetter extracts the operator id from token claims.
type OperatorIDGetter interface {
	GetOperatorID() string
}

// AuthMiddleware creates middleware that validates bearer tokens and adds
// the operator id to the request context.
func AuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				unauthorized(w)
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				unauthorized(w)
				return
			}
			operatorID := claims.GetOperatorID()
			if operatorID == "" {
				unauthorized(w)
				return
			}

			ctx := WithOperatorID(r.Context(), operatorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken parses a case-insensitive "Bearer <token>" header.
func bearerToken(r *http.Request) (string, bool) {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], parts[1] != ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}` + "\n"))
}

// WithOperatorID returns a context carrying the operator id.
func WithOperatorID(ctx context.Context, operatorID string) context.Context {
	return context.WithValue(ctx, operatorIDKey, operatorID)
}

// GetOperatorID extracts the authenticated operator id from the request context.
func GetOperatorID(r *http.Request) (string, error) {
	operatorID, ok := r.Context().Value(operatorIDKey).(string)
	if !ok || operatorID == "" {
		return "", fmt.Errorf("operator ID not found in request context")
	}
	return operatorID, nil
}

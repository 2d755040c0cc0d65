// Package middleware provides HTTP middleware for the API: bearer token
// authentication. Token issuance belongs to the external identity
// service; this middleware only verifies signatures and scopes requests
// to the authenticated user.
package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/veilmoth/arcana-api/internal/api/shared"
)

// AuthMiddleware validates bearer JWTs on protected routes.
type AuthMiddleware struct {
	secret []byte
}

// NewAuthMiddleware creates an AuthMiddleware verifying HS256 tokens
// signed with the given secret.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{secret: []byte(secret)}
}

// Authenticate validates the Authorization header and adds the user ID
// from the token's subject claim to the request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization header required")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid authorization format")
			return
		}

		userID, err := m.validateToken(parts[1])
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Token expired")
				return
			}
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(shared.WithUserID(r.Context(), userID)))
	})
}

func (m *AuthMiddleware) validateToken(tokenString string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return uuid.Nil, err
	}

	subject, err := token.Claims.GetSubject()
	if err != nil {
		return uuid.Nil, fmt.Errorf("token missing subject claim: %w", err)
	}

	userID, err := uuid.Parse(subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("token subject is not a valid user ID: %w", err)
	}
	return userID, nil
}

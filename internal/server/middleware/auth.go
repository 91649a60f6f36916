// Package middleware provides HTTP middleware for authentication and request validation.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

// mentorIDKey is the context key for storing the authenticated mentor ID.
const mentorIDKey ContextKey = "mentorID"

// ErrNoMentor is returned by MentorID when the request was not authenticated.
var ErrNoMentor = errors.New("mentor ID not found in request context")

// TokenValidator validates bearer tokens.
// This allows the middleware to work with any JWT service implementation.
type TokenValidator interface {
	ValidateToken(tokenString string) (SubjectGetter, error)
}

// SubjectGetter exposes the authenticated mentor from token claims.
type SubjectGetter interface {
	GetMentorID() uuid.UUID
}

// RequireMentor creates middleware that validates a bearer token and adds the
// mentor ID to the request context. Requests without a valid token get 401.
func RequireMentor(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w)
				return
			}

			claims, err := tokens.ValidateToken(token)
			if err != nil {
				unauthorized(w)
				return
			}

			ctx := WithMentorID(r.Context(), claims.GetMentorID())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from an Authorization header.
// The "Bearer" scheme is matched case-insensitively.
func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
}

// WithMentorID returns a context carrying the authenticated mentor ID.
func WithMentorID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, mentorIDKey, id)
}

// MentorID extracts the authenticated mentor ID from the request context.
func MentorID(r *http.Request) (uuid.UUID, error) {
	id, ok := r.Context().Value(mentorIDKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, ErrNoMentor
	}
	return id, nil
}

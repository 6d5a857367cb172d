// Package middleware carries the HTTP middleware chain: request IDs,
// logging, panic recovery, timeouts, and bearer-token authentication.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"courseflow/internal/identity"
)

// TokenValidator turns a bearer token into an authenticated actor.
type TokenValidator interface {
	ValidateToken(tokenString string) (identity.Actor, error)
}

type contextKeyActor struct{}

// GetActor retrieves the authenticated actor from the context. The zero
// Actor means the request never passed RequireAuth.
func GetActor(ctx context.Context) identity.Actor {
	actor, _ := ctx.Value(contextKeyActor{}).(identity.Actor)
	return actor
}

// WithActor is exported for handler tests that bypass the middleware.
func WithActor(ctx context.Context, actor identity.Actor) context.Context {
	return context.WithValue(ctx, contextKeyActor{}, actor)
}

// RequireAuth validates the Authorization bearer token and places the actor
// in the request context.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access, missing bearer token",
					"request_id", GetRequestID(ctx),
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			actor, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access, invalid token",
					"request_id", GetRequestID(ctx),
					"error", err,
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(ctx, actor)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":{"kind":"not_authenticated","detail":"` + detail + `"}}`))
}

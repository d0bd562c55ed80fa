package httpapi

import (
	"context"
	"net/http"

	"github.com/mercatto/checkout/internal/apperror"
	"github.com/mercatto/checkout/internal/domain/identity"
)

// Header names carrying the caller identity, set by the API gateway after
// token verification.
const (
	headerUserID = "X-User-ID"
	headerRole   = "X-User-Role"
)

type actorKey struct{}

// ActorFromContext extracts the authenticated actor from the context.
func ActorFromContext(ctx context.Context) (identity.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(identity.Actor)
	return a, ok
}

// WithActor returns a middleware that resolves the caller identity from the
// gateway headers. Requests without a valid identity are rejected with 401.
func WithActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(headerUserID)
		role, err := identity.ParseRole(r.Header.Get(headerRole))
		if userID == "" || err != nil {
			respondError(w, r, apperror.Unauthorized("authentication required", err))
			return
		}

		actor := identity.Actor{UserID: userID, Role: role}
		ctx := context.WithValue(r.Context(), actorKey{}, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

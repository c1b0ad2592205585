package handler

import (
	"context"
	"net/http"
)

// Identity is the already-authenticated caller. Token validation happens
// upstream; this service trusts the identity headers the gateway injects.
type Identity struct {
	UserID string
	OrgID  string
}

type identityCtxKey struct{}

// IdentityFromContext returns the caller identity set by IdentityMiddleware.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityCtxKey{}).(Identity)
	return id, ok
}

// IdentityMiddleware extracts the caller identity from the X-User-ID and
// X-Organization-ID headers. Requests without a user id are rejected.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			writeError(w, http.StatusUnauthorized, errorBody{
				Code:    "Unauthorized",
				Message: "missing caller identity",
			})
			return
		}

		identity := Identity{
			UserID: userID,
			OrgID:  r.Header.Get("X-Organization-ID"),
		}

		ctx := context.WithValue(r.Context(), identityCtxKey{}, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

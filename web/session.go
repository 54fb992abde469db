package web

import (
	"context"
	"net/http"
	"strings"

	"github.com/artpar/recordbase/domain/user"
)

type contextKey int

const userKey contextKey = iota

// sessionMiddleware resolves the bearer token to a user and stores it in
// the request context. Requests without a token proceed anonymously; the
// access evaluator decides what they may do. A present-but-invalid token
// is rejected here.
func (h *Handler) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		u, err := h.users.FromToken(r.Context(), token)
		if err != nil {
			if h.metrics != nil {
				h.metrics.AuthFailures.Inc()
			}
			writeError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, u)))
	})
}

// currentUser returns the authenticated user, or nil.
func currentUser(r *http.Request) *user.User {
	u, _ := r.Context().Value(userKey).(*user.User)
	return u
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	// Query parameter fallback for attachment downloads from plain links.
	return r.URL.Query().Get("token")
}

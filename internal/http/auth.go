package http

import (
	"context"
	"net/http"
	"strings"

	"budgeteer/internal/log"
)

type ctxKey string

const userIDKey ctxKey = "user_id"

// bearerToken extracts the token from an "Authorization: Bearer" header.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// requireAuth resolves the bearer session and stores the user id in the
// request context. The request logger gains a user_id attribute.
func (s *Server) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="budgeteer"`)
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		u, err := s.svc.Auth.Authenticate(r.Context(), token)
		if err != nil {
			if statusFor(err) == http.StatusUnauthorized {
				w.Header().Set("WWW-Authenticate", `Bearer realm="budgeteer", error="invalid_token"`)
			}
			writeServiceError(w, r, log.OpRead, err)
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, u.ID)
		ctx = log.WithLogger(ctx, log.FromContext(ctx).With(log.FieldUserID, u.ID))
		next(w, r.WithContext(ctx))
	})
}

// userID returns the authenticated user, or "" outside requireAuth.
func userID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}

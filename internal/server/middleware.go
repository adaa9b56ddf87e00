package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/bandhanheal/backend/internal/auth"
)

type contextKey string

const userIDKey contextKey = "userID"

// requireAuth resolves the bearer token and stores the caller's user id in
// the request context. Every resolver failure is a uniform 401; the handlers
// below never see an unauthenticated request.
func (s *Service) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		userID, err := s.auth.Resolve(r.Context(), token)
		if errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if err != nil {
			// Resolver outage, not a bad credential.
			log.Error().Err(err).Msg("token resolution failed")
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// callerID returns the authenticated user id set by requireAuth.
func callerID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}

package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"talentmarket-engine/internal/store"
)

// SessionResolver maps a bearer token to the user it was issued for.
type SessionResolver interface {
	UserForToken(ctx context.Context, token string, now time.Time) (string, error)
}

type Auth struct {
	Sessions SessionResolver
	Now      func() time.Time
}

func UserIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

func withUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// Require resolves the caller's session before next runs. Requests without a
// valid, unexpired token get 401 and never reach next.
func (a Auth) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			WriteError(w, r, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		now := time.Now()
		if a.Now != nil {
			now = a.Now()
		}
		userID, err := a.Sessions.UserForToken(r.Context(), token, now.UTC())
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, r, http.StatusUnauthorized, "unauthorized", "invalid or expired session")
			return
		}
		if err != nil {
			log.Error().Err(err).Str("request_id", RequestIDFrom(r.Context())).Msg("session lookup")
			WriteError(w, r, http.StatusInternalServerError, "internal_error", "session lookup failed")
			return
		}
		next(w, r.WithContext(withUserID(r.Context(), userID)))
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(h[len(prefix):])
	return tok, tok != ""
}

// Package middleware provides HTTP middlewares for authentication and logging.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/sessions"
)

type ctxKey string

const userKey ctxKey = "user"

// SessionName is the cookie name of the signed server session.
const SessionName = "tapkeeper_session"

const (
	valAuthenticated = "authenticated"
	valUserID        = "user_id"
	valPendingUser   = "pending_user_id"
)

// NewCookieStore returns a cookie store signing sessions with key. Cookies
// are HTTP-only and scoped to the whole site.
func NewCookieStore(key []byte, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore(key)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// SessionAuth is a middleware that only lets requests through whose
// session was marked authenticated by a completed login.
//
// The user ID from the session is stored in the request context, so it can
// be used downstream via GetUserIDFromContext.
func SessionAuth(store sessions.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := AuthenticatedUser(store, r)
			if !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"success": false,
					"message": "Not authenticated.",
				})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// AuthenticatedUser returns the user bound to the request's session.
func AuthenticatedUser(store sessions.Store, r *http.Request) (string, bool) {
	s, err := store.Get(r, SessionName)
	if err != nil {
		return "", false
	}
	if auth, _ := s.Values[valAuthenticated].(bool); !auth {
		return "", false
	}
	userID, _ := s.Values[valUserID].(string)
	return userID, userID != ""
}

// MarkAuthenticated records in the session that userID finished signing in.
func MarkAuthenticated(store sessions.Store, w http.ResponseWriter, r *http.Request, userID string) error {
	s, _ := store.Get(r, SessionName)
	s.Values[valAuthenticated] = true
	s.Values[valUserID] = userID
	delete(s.Values, valPendingUser)
	return s.Save(r, w)
}

// MarkPasswordVerified records that userID passed the password step and
// still has to tap a card.
func MarkPasswordVerified(store sessions.Store, w http.ResponseWriter, r *http.Request, userID string) error {
	s, _ := store.Get(r, SessionName)
	s.Values[valAuthenticated] = false
	s.Values[valPendingUser] = userID
	delete(s.Values, valUserID)
	return s.Save(r, w)
}

// PendingUser returns the user that passed the password step in this
// session and is waiting for a card tap.
func PendingUser(store sessions.Store, r *http.Request) string {
	s, err := store.Get(r, SessionName)
	if err != nil {
		return ""
	}
	userID, _ := s.Values[valPendingUser].(string)
	return userID
}

// ClearSession expires the session cookie.
func ClearSession(store sessions.Store, w http.ResponseWriter, r *http.Request) error {
	s, _ := store.Get(r, SessionName)
	s.Values = map[any]any{}
	s.Options.MaxAge = -1
	return s.Save(r, w)
}

// WithUserID returns a copy of ctx carrying the authenticated user ID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey, userID)
}

// GetUserIDFromContext extracts the authenticated user ID from the request
// context. Returns an empty string if not found.
func GetUserIDFromContext(ctx context.Context) string {
	val := ctx.Value(userKey)
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}

package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKey string

const usernameKey contextKey = "username"

// WithUsername stores the authenticated username in ctx.
func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, usernameKey, username)
}

// UsernameFrom returns the authenticated username, if any.
func UsernameFrom(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(usernameKey).(string)
	return username, ok && username != ""
}

// Required rejects requests without a valid bearer token.
func (t *Tokens) Required(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeUnauthorized(w, "Token is missing!")
			return
		}
		username, err := t.Validate(bearerToken(header))
		if err != nil {
			writeUnauthorized(w, "Token is invalid!")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUsername(r.Context(), username)))
	})
}

// Optional attaches the username of a valid bearer token and otherwise passes
// the request through unchanged.
func (t *Tokens) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if header := r.Header.Get("Authorization"); header != "" {
			if username, err := t.Validate(bearerToken(header)); err == nil {
				r = r.WithContext(WithUsername(r.Context(), username))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(header string) string {
	_, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found {
		return ""
	}
	return strings.TrimSpace(token)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}

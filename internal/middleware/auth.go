package middleware

import (
	"context"
	"net/http"
)

// authUserHeader is set by the Xnode Auth reverse proxy in front of the
// server; its value is the verified caller account ("eth:<addr>").
const authUserHeader = "xnode-auth-user"

type contextKey string

const userKey contextKey = "auth_user"

// Auth copies the verified caller account from the proxy header into the
// request context. Requests without the header pass through with an empty
// user; handlers that need a caller reject those.
func Auth() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user := r.Header.Get(authUserHeader); user != "" {
				r = r.WithContext(context.WithValue(r.Context(), userKey, user))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// User returns the verified caller account, or "" for anonymous requests.
func User(ctx context.Context) string {
	if v := ctx.Value(userKey); v != nil {
		return v.(string)
	}
	return ""
}

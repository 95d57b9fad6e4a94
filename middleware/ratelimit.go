package middleware

import (
	"net/http"
	"strconv"

	goGuard "github.com/MrEthical07/goGuard"
)

// IdentityFunc derives the rate-limit identity for a request. Returning
// false skips the check.
type IdentityFunc func(r *http.Request) (string, bool)

// ByUser keys on the user stored by RequireAuth.
func ByUser(r *http.Request) (string, bool) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		return "", false
	}
	return "user:" + strconv.FormatInt(u.ID, 10), true
}

// ByIP keys on the socket peer address.
func ByIP(r *http.Request) (string, bool) {
	return "ip:" + RemoteIP(r, false), true
}

// RateLimit runs Engine.CheckRateLimit for scope before the handler.
func RateLimit(engine *goGuard.Engine, scope goGuard.Scope, identity IdentityFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := identity(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			if err := engine.CheckRateLimit(r.Context(), scope, id); err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

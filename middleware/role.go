package middleware

import (
	"net/http"

	goGuard "github.com/MrEthical07/goGuard"
)

// RequireRole must be chained after RequireAuth. A request without a
// resolved user is treated as unauthenticated.
func RequireRole(engine *goGuard.Engine, role goGuard.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := UserFromContext(r.Context())
			if !ok {
				WriteMessage(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			if err := engine.RequireRole(u, role); err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package auth

import (
	"net/http"
	"strings"

	"github.com/example/movie-diary/internal/platform/api"
	"github.com/example/movie-diary/internal/platform/httpserver"
)

const RoleAdmin = "admin"

// RequireRole must run after RequireUser. Role names compare case-insensitively.
func RequireRole(role string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, _ := RoleFromContext(r.Context())
			if !strings.EqualFold(strings.TrimSpace(got), role) {
				api.Forbidden(w, api.CodeForbidden, "Missing role "+role, httpserver.RequestIDFromContext(r.Context()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin guards operator endpoints such as cache purges.
var RequireAdmin = RequireRole(RoleAdmin)

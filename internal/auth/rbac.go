package auth

import "net/http"

const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
)

// HasRole reports whether the claims carry one of roles in app_metadata.
func (c *Claims) HasRole(roles ...string) bool {
	for _, r := range roles {
		if c.AppMetadata.Role == r {
			return true
		}
	}
	return false
}

// RequireRole rejects requests whose token does not carry one of roles.
// Must run after JWTMiddleware.Authenticate.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			claims := ClaimsFromContext(req.Context())
			if claims == nil {
				writeError(w, http.StatusForbidden, "no user in context")
				return
			}
			if !claims.HasRole(roles...) {
				writeError(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

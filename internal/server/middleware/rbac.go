package middleware

import (
	"net/http"
	"slices"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/kanban/internal/domain"
)

// RequireRole returns a huma operation middleware that admits principals
// holding one of roles. It must run behind Auth, which stores the principal
// in the request context.
//
// Returns 401 when no principal is present and 403 when the platform role
// does not match.
func RequireRole(api huma.API, msg string, roles ...domain.Role) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		p, ok := PrincipalFromContext(ctx.Context())
		if !ok {
			_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, "not authorized, no token")
			return
		}
		if !slices.Contains(roles, p.Role) {
			_ = huma.WriteErr(api, ctx, http.StatusForbidden, msg)
			return
		}
		next(ctx)
	}
}

// RequireAdmin admits platform admins only.
func RequireAdmin(api huma.API, msg string) func(huma.Context, func(huma.Context)) {
	return RequireRole(api, msg, domain.RoleAdmin)
}

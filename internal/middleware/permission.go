package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/student-records/internal/apperr"
	"github.com/iliyamo/student-records/internal/permission"
)

// RequirePermissions allows the request only when the caller's role grants
// every listed permission. It must run after JWTAuth.
func RequirePermissions(table *permission.Table, perms ...permission.Permission) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !table.Allows(Role(c), perms...) {
				return apperr.Forbidden("Insufficient permissions")
			}
			return next(c)
		}
	}
}

// Package router declares every HTTP route with its guards. Protected routes
// run JWT authentication, then the permission guard, then the CSRF guard on
// state-changing methods.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/student-records/internal/handler"
	"github.com/iliyamo/student-records/internal/middleware"
	"github.com/iliyamo/student-records/internal/permission"
	"github.com/iliyamo/student-records/internal/utils"
)

// Guards builds the per-route middleware chain.
type Guards struct {
	Issuer *utils.TokenIssuer  // verifies access tokens
	Table  *permission.Table   // role to permission lookup
	Limit  echo.MiddlewareFunc // optional per-user rate limit, run right after JWTAuth
}

// protect returns the chain for a route requiring perms; csrf adds the
// double-submit check.
func (g Guards) protect(csrf bool, perms ...permission.Permission) []echo.MiddlewareFunc {
	chain := []echo.MiddlewareFunc{middleware.JWTAuth(g.Issuer)}
	if g.Limit != nil {
		chain = append(chain, g.Limit)
	}
	chain = append(chain, middleware.RequirePermissions(g.Table, perms...))
	if csrf {
		chain = append(chain, middleware.CSRF())
	}
	return chain
}

// RegisterRoutes registers the unauthenticated health endpoints.
func RegisterRoutes(e *echo.Echo, metrics http.Handler) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(metrics))
}

// RegisterAuth registers the /auth routes. Register, login, refresh and the
// CSRF token endpoint are public.
func RegisterAuth(e *echo.Echo, g Guards, a *handler.AuthHandler) {
	auth := e.Group("/auth")
	auth.POST("/register", a.Register)
	auth.POST("/login", a.Login)
	auth.POST("/refresh", a.Refresh)
	auth.GET("/csrf", a.CSRFToken)

	auth.POST("/logout", a.Logout, g.protect(true, permission.ProfileRead)...)
	auth.GET("/profile", a.Profile, g.protect(false, permission.ProfileRead)...)
	auth.PUT("/profile", a.UpdateProfile, g.protect(true, permission.ProfileUpdate)...)
}

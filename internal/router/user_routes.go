package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/student-records/internal/handler"
	"github.com/iliyamo/student-records/internal/permission"
)

// RegisterUsers registers the admin user management routes.
func RegisterUsers(e *echo.Echo, g Guards, h *handler.UserHandler) {
	users := e.Group("/users")
	users.POST("", h.Create, g.protect(true, permission.UserCreate)...)
	users.GET("", h.List, g.protect(false, permission.UserRead)...)
	users.GET("/:id", h.Get, g.protect(false, permission.UserRead)...)
	users.PUT("/:id", h.Update, g.protect(true, permission.UserUpdate)...)
	users.DELETE("/:id", h.Delete, g.protect(true, permission.UserDelete)...)
}

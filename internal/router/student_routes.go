package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/student-records/internal/handler"
	"github.com/iliyamo/student-records/internal/middleware"
	"github.com/iliyamo/student-records/internal/permission"
)

// RegisterStudents registers the student routes. Reads are served through
// the response cache; successful writes invalidate it.
func RegisterStudents(e *echo.Echo, g Guards, h *handler.StudentHandler, cache *middleware.ResponseCache) {
	students := e.Group("/students")

	read := append(g.protect(false, permission.StudentRead), cache.Middleware())
	students.GET("", h.List, read...)
	students.GET("/export", h.Export, read...)
	students.GET("/:id", h.Get, read...)

	write := func(perm permission.Permission) []echo.MiddlewareFunc {
		return append(g.protect(true, perm), cache.InvalidateOnWrite())
	}
	students.POST("", h.Create, write(permission.StudentCreate)...)
	students.PUT("/:id", h.Update, write(permission.StudentUpdate)...)
	students.DELETE("/:id", h.Delete, write(permission.StudentDelete)...)
}

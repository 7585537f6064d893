package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// Context keys set by JWTAuth.
const (
	ctxUserID = "user_id"
	ctxRole   = "role"
	ctxEmail  = "email"
)

// UserID returns the authenticated user's id, or 0 on public routes.
func UserID(c echo.Context) int64 {
	id, _ := c.Get(ctxUserID).(int64)
	return id
}

// Role returns the role name carried by the access token, or "".
func Role(c echo.Context) string {
	role, _ := c.Get(ctxRole).(string)
	return role
}

// rateSubject identifies the caller for per-user rate limiting; anonymous
// requests share the "anon" bucket of their key.
func rateSubject(c echo.Context) string {
	if id := UserID(c); id > 0 {
		return strconv.FormatInt(id, 10)
	}
	return "anon"
}

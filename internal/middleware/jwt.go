package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/student-records/internal/apperr"
	"github.com/iliyamo/student-records/internal/utils"
)

// AccessCookie is the http-only cookie that carries the access token for
// browser clients.
const AccessCookie = "access_token"

// JWTAuth validates the access token and stores the caller's id, role and
// email in the context for the guards and handlers behind it. The token is
// taken from the Authorization header, falling back to the access cookie.
func JWTAuth(issuer *utils.TokenIssuer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearerToken(c)
			if raw == "" {
				return apperr.Unauthorized("Missing access token")
			}
			claims, err := issuer.VerifyAccess(raw)
			if err != nil {
				return err
			}
			id, err := claims.UserID()
			if err != nil || id <= 0 {
				return apperr.Unauthorized("Invalid token")
			}
			c.Set(ctxUserID, id)
			c.Set(ctxRole, claims.Role)
			c.Set(ctxEmail, claims.Email)
			return next(c)
		}
	}
}

func bearerToken(c echo.Context) string {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if raw, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(raw)
	}
	if ck, err := c.Cookie(AccessCookie); err == nil {
		return ck.Value
	}
	return ""
}

package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/student-records/internal/apperr"
	"github.com/iliyamo/student-records/internal/utils"
)

const (
	CSRFHeader = "X-CSRF-Token"
	CSRFCookie = "csrf_token"
)

// CSRF enforces the double-submit check: the header must repeat the
// cookie's value exactly.
func CSRF() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(CSRFHeader)
			ck, err := c.Cookie(CSRFCookie)
			if err != nil || header == "" || ck.Value == "" ||
				subtle.ConstantTimeCompare([]byte(header), []byte(ck.Value)) != 1 {
				return apperr.Forbidden("Invalid CSRF token")
			}
			return next(c)
		}
	}
}

// IssueCSRFToken sets a fresh token cookie and returns its value. The
// cookie stays readable by scripts so the client can echo it back.
func IssueCSRFToken(c echo.Context, secure bool) (string, error) {
	token, err := utils.RandomHex(16)
	if err != nil {
		return "", err
	}
	c.SetCookie(&http.Cookie{
		Name:     CSRFCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: false,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

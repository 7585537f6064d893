package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/student-records/internal/middleware"
	"github.com/iliyamo/student-records/internal/service"
)

// AuthHandler serves the /auth routes.
type AuthHandler struct {
	Auth *service.AuthService
	// SecureCookies marks the access and CSRF cookies Secure; on in
	// production.
	SecureCookies bool
}

// NewAuthHandler returns the /auth handler. secureCookies marks the access
// and CSRF cookies Secure and is set in production.
func NewAuthHandler(auth *service.AuthService, secureCookies bool) *AuthHandler {
	return &AuthHandler{Auth: auth, SecureCookies: secureCookies}
}

type registerReq struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type updateProfileReq struct {
	Name            string `json:"name" validate:"omitempty,min=2,max=50"`
	Email           string `json:"email" validate:"omitempty,email"`
	CurrentPassword string `json:"currentPassword" validate:"required_with=NewPassword"`
	NewPassword     string `json:"newPassword" validate:"omitempty,min=6"`
}

type profileResp struct {
	User any `json:"user"`
}

type csrfResp struct {
	CSRFToken string `json:"csrfToken"`
}

// Register creates a teacher account and returns it with a token pair.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.Auth.Register(ctx, service.RegisterInput{Name: req.Name, Email: req.Email, Password: req.Password})
	if err != nil {
		return err
	}
	h.setAccessCookie(c, res.TokenPair)
	return respond(c, http.StatusOK, "Registration successful", res)
}

// Login: verify credentials and return the user with a fresh token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return err
	}
	h.setAccessCookie(c, res.TokenPair)
	return respond(c, http.StatusOK, "Login successful", res)
}

// Refresh rotates the refresh token. The body is read without validation
// rules; an empty token fails verification like any other bad token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	pair, err := h.Auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return err
	}
	h.setAccessCookie(c, *pair)
	return respond(c, http.StatusOK, "Token refreshed", pair)
}

// Logout: revoke the caller's refresh tokens and clear the access cookie.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Auth.Logout(ctx, middleware.UserID(c)); err != nil {
		return err
	}
	c.SetCookie(&http.Cookie{
		Name:     middleware.AccessCookie,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return respond(c, http.StatusOK, "Logged out", nil)
}

// Profile: the authenticated user.
func (h *AuthHandler) Profile(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	u, err := h.Auth.GetProfile(ctx, middleware.UserID(c))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Profile fetched", profileResp{User: u})
}

// UpdateProfile: change name, email or password of the caller.
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	var req updateProfileReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	u, err := h.Auth.UpdateProfile(ctx, middleware.UserID(c), service.ProfileUpdate{
		Name:            req.Name,
		Email:           req.Email,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Profile updated", profileResp{User: u})
}

// CSRFToken issues a double-submit token as both cookie and body.
func (h *AuthHandler) CSRFToken(c echo.Context) error {
	token, err := middleware.IssueCSRFToken(c, h.SecureCookies)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "CSRF token issued", csrfResp{CSRFToken: token})
}

func (h *AuthHandler) setAccessCookie(c echo.Context, pair service.TokenPair) {
	c.SetCookie(&http.Cookie{
		Name:     middleware.AccessCookie,
		Value:    pair.AccessToken,
		Path:     "/",
		Expires:  pair.AccessExpiresAt,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

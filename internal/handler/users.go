package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/student-records/internal/middleware"
	"github.com/iliyamo/student-records/internal/service"
)

// UserHandler serves the admin /users routes.
type UserHandler struct {
	Users *service.UserService
}

// NewUserHandler returns the handler for the /users routes.
func NewUserHandler(users *service.UserService) *UserHandler {
	return &UserHandler{Users: users}
}

type createUserReq struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"required"`
}

type updateUserReq struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=100"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Password *string `json:"password" validate:"omitempty,min=6"`
	Role     *string `json:"role" validate:"omitempty"`
	IsActive *bool   `json:"isActive"`
}

// Create: admin creates an account with an explicit role (201).
func (h *UserHandler) Create(c echo.Context) error {
	var req createUserReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	u, err := h.Users.Create(ctx, middleware.UserID(c), service.NewUser{
		Name: req.Name, Email: req.Email, Password: req.Password, Role: req.Role,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "User created", u)
}

// List: one page of users filtered by the query parameters.
func (h *UserHandler) List(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	page, err := h.Users.List(ctx, listParams(c))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Users fetched", page)
}

// Get: a single user by path id.
func (h *UserHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	u, err := h.Users.Get(ctx, id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "User fetched", u)
}

// Update: change profile fields, role, active flag or password.
func (h *UserHandler) Update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req updateUserReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	u, err := h.Users.Update(ctx, middleware.UserID(c), id, service.UserPatch{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		IsActive: req.IsActive,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "User updated", u)
}

// Delete: remove the user; its refresh tokens go with it.
func (h *UserHandler) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	u, err := h.Users.Delete(ctx, middleware.UserID(c), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "User deleted", u)
}

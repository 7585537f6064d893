package handler

import (
	"bytes"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/student-records/internal/apperr"
	"github.com/iliyamo/student-records/internal/middleware"
	"github.com/iliyamo/student-records/internal/model"
	"github.com/iliyamo/student-records/internal/service"
)

// StudentHandler serves the /students routes.
type StudentHandler struct {
	Students *service.StudentService
}

// NewStudentHandler returns the handler for the /students routes.
func NewStudentHandler(students *service.StudentService) *StudentHandler {
	return &StudentHandler{Students: students}
}

type createStudentReq struct {
	NISN            string  `json:"nisn" validate:"required,max=30"`
	Name            string  `json:"name" validate:"required,max=120"`
	DOB             string  `json:"dob" validate:"required,datetime=2006-01-02"`
	GuardianContact *string `json:"guardianContact" validate:"omitempty,max=120"`
	IsActive        *bool   `json:"isActive"`
}

type updateStudentReq struct {
	NISN            *string `json:"nisn" validate:"omitempty,min=1,max=30"`
	Name            *string `json:"name" validate:"omitempty,min=1,max=120"`
	DOB             *string `json:"dob" validate:"omitempty,datetime=2006-01-02"`
	GuardianContact *string `json:"guardianContact" validate:"omitempty,max=120"`
	IsActive        *bool   `json:"isActive"`
}

func parseDOB(s string) (time.Time, error) {
	t, err := time.Parse(service.DateLayout, s)
	if err != nil {
		return time.Time{}, apperr.BadRequest("Invalid date of birth")
	}
	return t, nil
}

// Create: validate the body, parse dob and insert the student (201).
func (h *StudentHandler) Create(c echo.Context) error {
	var req createStudentReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	dob, err := parseDOB(req.DOB)
	if err != nil {
		return err
	}
	st := &model.Student{
		NISN:            req.NISN,
		Name:            req.Name,
		DOB:             dob,
		GuardianContact: req.GuardianContact,
		IsActive:        req.IsActive == nil || *req.IsActive,
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	created, err := h.Students.Create(ctx, middleware.UserID(c), st)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "Student created", created)
}

// List: one page of students filtered by the query parameters.
func (h *StudentHandler) List(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	page, err := h.Students.List(ctx, listParams(c))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Students fetched", page)
}

// Get: a single student by path id.
func (h *StudentHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	st, err := h.Students.Get(ctx, id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Student fetched", st)
}

// Update: apply the fields present in the body.
func (h *StudentHandler) Update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req updateStudentReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	patch := service.StudentPatch{
		NISN:            req.NISN,
		Name:            req.Name,
		GuardianContact: req.GuardianContact,
		IsActive:        req.IsActive,
	}
	if req.DOB != nil {
		dob, err := parseDOB(*req.DOB)
		if err != nil {
			return err
		}
		patch.DOB = &dob
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	st, err := h.Students.Update(ctx, middleware.UserID(c), id, patch)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Student updated", st)
}

// Delete: remove the student and return the deleted row.
func (h *StudentHandler) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	st, err := h.Students.Delete(ctx, middleware.UserID(c), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Student deleted", st)
}

// Export streams all students as a CSV attachment.
func (h *StudentHandler) Export(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	var buf bytes.Buffer
	if err := h.Students.Export(ctx, &buf); err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="students.csv"`)
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

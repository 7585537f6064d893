package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/student-records/internal/apperr"
	"github.com/iliyamo/student-records/internal/repository"
)

// handlerTimeout bounds the store work of a single request.
const handlerTimeout = 5 * time.Second

// envelope wraps every successful payload.
type envelope struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Data       any    `json:"data"`
}

type errorBody struct {
	StatusCode int          `json:"statusCode"`
	Message    string       `json:"message"`
	Error      string       `json:"error"`
	Errors     []FieldError `json:"errors,omitempty"`
}

func respond(c echo.Context, status int, message string, data any) error {
	return c.JSON(status, envelope{StatusCode: status, Message: message, Data: data})
}

func requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), handlerTimeout)
}

// NewHTTPErrorHandler renders errors as {statusCode, message, error}.
// Classified errors keep their status and message; anything else becomes
// a 500 without detail and is logged.
func NewHTTPErrorHandler(log logrus.FieldLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		body := errorBody{StatusCode: http.StatusInternalServerError, Message: "Internal server error"}
		var (
			verr *ValidationError
			herr *echo.HTTPError
		)
		switch {
		case errors.As(err, &verr):
			body.StatusCode = http.StatusBadRequest
			body.Message = verr.Message
			body.Errors = verr.Fields
		case errors.As(err, &herr):
			body.StatusCode = herr.Code
			body.Message = fmt.Sprint(herr.Message)
		default:
			if ae, ok := apperr.As(err); ok {
				body.StatusCode = ae.Status
				body.Message = ae.Message
				if apperr.IsUnexpected(err) {
					log.WithError(ae.Err).Warn(ae.Message)
				}
			} else {
				log.WithError(err).WithField("path", c.Path()).Error("unhandled error")
			}
		}
		body.Error = http.StatusText(body.StatusCode)

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(body.StatusCode)
		} else {
			err = c.JSON(body.StatusCode, body)
		}
		if err != nil {
			log.WithError(err).Warn("writing error response failed")
		}
	}
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.BadRequest("Invalid id")
	}
	return id, nil
}

// listParams reads page, perPage, search, sort and order from the query.
func listParams(c echo.Context) repository.ListParams {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	perPage, _ := strconv.Atoi(c.QueryParam("perPage"))
	return repository.ListParams{
		Page:    page,
		PerPage: perPage,
		Search:  c.QueryParam("search"),
		Sort:    c.QueryParam("sort"),
		Desc:    strings.EqualFold(c.QueryParam("order"), "desc"),
	}
}

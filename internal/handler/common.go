package handler // handler defines the HTTP handlers of the library API

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/library-api/internal/middleware"
	"github.com/iliyamo/library-api/internal/service"
)

// requestTimeout bounds the storage work of a single request.
const requestTimeout = 5 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict, service.KindValidation:
		return http.StatusBadRequest
	case service.KindUnauthorized:
		return http.StatusUnauthorized
	case service.KindForbidden:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// respondError renders a service error.  Internal errors are logged and
// their detail withheld from the client.
func respondError(c echo.Context, log *zap.Logger, err error) error {
	var typed *service.Error
	if !errors.As(err, &typed) {
		typed = &service.Error{Kind: service.KindInternal, Code: "internal", Message: "internal error", Err: err}
	}
	status := statusFor(typed.Kind)
	if status == http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Error(err))
		return c.JSON(status, errorBody{Error: "internal", Message: "internal error"})
	}
	return c.JSON(status, errorBody{Error: typed.Code, Message: typed.Message})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorBody{Error: service.CodeInvalidInput, Message: msg})
}

// pathID parses the :id parameter.
func pathID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

// queryID parses an optional numeric query parameter; 0 when absent.
func queryID(c echo.Context, name string) (uint64, bool) {
	s := strings.TrimSpace(c.QueryParam(name))
	if s == "" {
		return 0, true
	}
	id, err := strconv.ParseUint(s, 10, 64)
	return id, err == nil
}

func queryBool(c echo.Context, name string) bool {
	v, _ := strconv.ParseBool(strings.TrimSpace(c.QueryParam(name)))
	return v
}

// currentUser returns the authenticated caller's id.
func currentUser(c echo.Context) (uint64, bool) {
	return middleware.UserID(c)
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, errorBody{Error: "unauthorized", Message: "authentication required"})
}

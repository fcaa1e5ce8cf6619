package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/protomind/user-service/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error string `json:"error"`
}

// domainStatus maps domain errors to HTTP statuses. An empty message means the
// error text itself is returned to the client.
var domainStatus = []struct {
	target  error
	status  int
	message string
}{
	{domain.ErrUnexpectedRole, http.StatusForbidden, ""},
	{domain.ErrForbidden, http.StatusForbidden, "access forbidden"},
	{domain.ErrUserBlocked, http.StatusForbidden, "user is blocked"},
	{domain.ErrUserExists, http.StatusConflict, "user already exists"},
	{domain.ErrAssociationExists, http.StatusConflict, ""},
	{domain.ErrUserNotFound, http.StatusNotFound, "user not found"},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "invalid credentials"},
	{domain.ErrInvalidConfirmationCode, http.StatusUnprocessableEntity, ""},
	{domain.ErrUnknownRole, http.StatusBadRequest, ""},
}

// NewHTTPErrorHandler renders every error as {"error": "..."}. Unknown errors
// are logged and reported as 500 without leaking their cause.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := resolveError(err)
		if code == http.StatusInternalServerError {
			log.Error().
				Err(err).
				Str("method", c.Request().Method).
				Str("path", c.Path()).
				Msg("unhandled error")
		}
		_ = c.JSON(code, errorResponse{Error: msg})
	}
}

func resolveError(err error) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	for _, m := range domainStatus {
		if !errors.Is(err, m.target) {
			continue
		}
		if m.message == "" {
			return m.status, err.Error()
		}
		return m.status, m.message
	}

	return http.StatusInternalServerError, "internal server error"
}

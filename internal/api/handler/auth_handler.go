package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/protomind/user-service/internal/api/metrics"
	"github.com/protomind/user-service/internal/core/domain"
	"github.com/protomind/user-service/internal/core/ports"
)

type AuthHandler struct {
	authService ports.AuthService
}

func NewAuthHandler(authService ports.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Login authenticates a user and returns a JWT token.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  loginResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	token, user, err := h.authService.Login(c.Request().Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		// Unknown accounts look like bad passwords.
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrInvalidCredentials
		}
		return err
	}

	return c.JSON(http.StatusOK, loginResponse{Token: token, User: user})
}

// ConfirmEmail redeems the code from the confirm-email link and sets the
// account password.
//
// @Summary      Confirm email and set password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      confirmEmailRequest  true  "Code from the confirmation link and the new password"
// @Success      200   {object}  domain.User
// @Failure      400   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /auth/confirm-email [post]
func (h *AuthHandler) ConfirmEmail(c echo.Context) error {
	var req confirmEmailRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := h.authService.ConfirmEmail(c.Request().Context(), strings.TrimSpace(req.Email), req.Code, req.Password)
	switch {
	case err == nil:
		metrics.EmailConfirmationsTotal.WithLabelValues("confirmed").Inc()
	case errors.Is(err, domain.ErrInvalidConfirmationCode), errors.Is(err, domain.ErrUserNotFound):
		metrics.EmailConfirmationsTotal.WithLabelValues("rejected").Inc()
		return domain.ErrInvalidConfirmationCode
	default:
		metrics.EmailConfirmationsTotal.WithLabelValues("error").Inc()
		return err
	}

	return c.JSON(http.StatusOK, user)
}

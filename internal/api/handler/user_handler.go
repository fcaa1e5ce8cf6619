package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/protomind/user-service/internal/api/metrics"
	"github.com/protomind/user-service/internal/core/domain"
	"github.com/protomind/user-service/internal/core/ports"
)

// UserHandler handles HTTP requests for user accounts.
type UserHandler struct {
	service        ports.UserService
	avatarMaxBytes int64
}

func NewUserHandler(service ports.UserService, avatarMaxBytes int64) *UserHandler {
	return &UserHandler{service: service, avatarMaxBytes: avatarMaxBytes}
}

// List handles GET /v1/users.
//
// @Summary      List users visible to the caller
// @Description  Secretaries never see admins, managers see only their own secretaries, admins never see themselves.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        limit         query     int     false  "Page size"
// @Param        page          query     int     false  "1-based page number"
// @Param        with_blocked  query     string  false  "Managers: include blocked secretaries (1, true, on, yes)"
// @Param        search        query     string  false  "Partial match on name or email"
// @Param        name          query     string  false  "Partial match on name"
// @Param        email         query     string  false  "Exact email"
// @Param        role          query     string  false  "Role held (admin, manager, secretary, external)"
// @Success      200           {object}  userPage
// @Failure      400           {object}  errorResponse
// @Failure      401           {object}  errorResponse
// @Router       /v1/users [get]
func (h *UserHandler) List(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}

	limit, err := intParam(c, "limit")
	if err != nil {
		return err
	}
	page, err := intParam(c, "page")
	if err != nil {
		return err
	}

	filter := ports.UserFilter{
		Search: strings.TrimSpace(c.QueryParam("search")),
		Name:   strings.TrimSpace(c.QueryParam("name")),
		Email:  strings.TrimSpace(c.QueryParam("email")),
	}
	if raw := c.QueryParam("role"); raw != "" {
		role, err := domain.ParseRole(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		filter.Role = role
	}

	result, err := h.service.GetAll(c.Request().Context(), actor, ports.ListUsersInput{
		Filter:      filter,
		Page:        page,
		Limit:       limit,
		WithBlocked: parseBool(c.QueryParam("with_blocked")),
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// Create handles POST /v1/users. Accepts JSON, or multipart/form-data when an
// avatar file is attached.
//
// @Summary      Create a user
// @Description  Admins create managers, managers create secretaries. external=true creates an external account instead.
// @Tags         users
// @Accept       json,mpfd
// @Produce      json
// @Security     BearerAuth
// @Param        body    body      createUserRequest  true   "Account details"
// @Param        avatar  formData  file               false  "Avatar image"
// @Success      201     {object}  domain.User
// @Failure      400     {object}  errorResponse
// @Failure      403     {object}  errorResponse
// @Failure      409     {object}  errorResponse
// @Failure      413     {object}  errorResponse
// @Router       /v1/users [post]
func (h *UserHandler) Create(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}

	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		metrics.UserCreateErrorsTotal.WithLabelValues("invalid_payload").Inc()
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		metrics.UserCreateErrorsTotal.WithLabelValues("invalid_payload").Inc()
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	in := ports.CreateUserInput{
		Name:     strings.TrimSpace(req.Name),
		Email:    strings.TrimSpace(req.Email),
		Phone:    strings.TrimSpace(req.Phone),
		Password: req.Password,
		External: bool(req.External),
	}

	closeAvatar, err := h.bindAvatar(c, &in)
	if err != nil {
		metrics.UserCreateErrorsTotal.WithLabelValues("invalid_payload").Inc()
		return err
	}
	defer closeAvatar()

	user, err := h.service.Create(c.Request().Context(), actor, in)
	if err != nil {
		metrics.UserCreateErrorsTotal.WithLabelValues(createErrorReason(err)).Inc()
		return err
	}

	for _, r := range user.Roles {
		metrics.UsersCreatedTotal.WithLabelValues(r.String()).Inc()
	}
	return c.JSON(http.StatusCreated, user)
}

// bindAvatar attaches the optional multipart "avatar" file to in. The
// returned func closes the opened file.
func (h *UserHandler) bindAvatar(c echo.Context, in *ports.CreateUserInput) (func(), error) {
	noop := func() {}
	if !strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return noop, nil
	}

	file, err := c.FormFile("avatar")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return noop, nil
		}
		return noop, echo.NewHTTPError(http.StatusBadRequest, "invalid avatar upload")
	}

	if h.avatarMaxBytes > 0 && file.Size > h.avatarMaxBytes {
		return noop, echo.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("avatar must not exceed %d bytes", h.avatarMaxBytes))
	}
	contentType := file.Header.Get(echo.HeaderContentType)
	if !strings.HasPrefix(contentType, "image/") {
		return noop, echo.NewHTTPError(http.StatusBadRequest, "avatar must be an image")
	}

	src, err := file.Open()
	if err != nil {
		return noop, echo.NewHTTPError(http.StatusBadRequest, "invalid avatar upload")
	}

	in.Avatar = &ports.AvatarUpload{
		FileName:    file.Filename,
		ContentType: contentType,
		Size:        file.Size,
		Content:     src,
	}
	return func() { _ = src.Close() }, nil
}

func createErrorReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnexpectedRole):
		return "unexpected_role"
	case errors.Is(err, domain.ErrUserExists):
		return "duplicate"
	default:
		return "internal"
	}
}

// SetBlocked handles PATCH /v1/users/:id/blocked.
//
// @Summary      Block or unblock a user
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string             true  "User id"
// @Param        body  body      setBlockedRequest  true  "Blocked flag"
// @Success      200   {object}  domain.User
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /v1/users/{id}/blocked [patch]
func (h *UserHandler) SetBlocked(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}

	var req setBlockedRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := h.service.SetBlocked(c.Request().Context(), actor, c.Param("id"), *req.Blocked)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

func intParam(c echo.Context, name string) (int, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" must be an integer")
	}
	return n, nil
}

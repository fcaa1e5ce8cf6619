package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/protomind/user-service/internal/api/middleware"
	"github.com/protomind/user-service/internal/core/domain"
)

// actorFromContext rebuilds the caller from the claims injected by the Auth
// middleware. A missing subject means the middleware did not run. Unknown
// role names are dropped.
func actorFromContext(c echo.Context) (domain.Actor, error) {
	id, _ := c.Get(middleware.CtxUserID).(string)
	if id == "" {
		return domain.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}

	email, _ := c.Get(middleware.CtxEmail).(string)
	raw, _ := c.Get(middleware.CtxRoles).([]string)

	roles := make([]domain.Role, 0, len(raw))
	for _, r := range raw {
		role, err := domain.ParseRole(r)
		if err != nil {
			continue
		}
		roles = append(roles, role)
	}

	return domain.Actor{ID: id, Email: email, Roles: roles}, nil
}

// parseBool is the lenient boolean used for query and form flags:
// 1, true, on and yes (any case) are true, anything else is false.
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "on", "yes":
		return true
	default:
		return false
	}
}

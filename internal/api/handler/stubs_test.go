package handler

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/protomind/user-service/internal/api/middleware"
	"github.com/protomind/user-service/internal/core/domain"
	"github.com/protomind/user-service/internal/core/ports"
)

type stubAuthService struct {
	loginFn        func(ctx context.Context, email, password string) (string, *domain.User, error)
	confirmEmailFn func(ctx context.Context, email, code, password string) (*domain.User, error)
}

func (s *stubAuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	return s.loginFn(ctx, email, password)
}

func (s *stubAuthService) ConfirmEmail(ctx context.Context, email, code, password string) (*domain.User, error) {
	return s.confirmEmailFn(ctx, email, code, password)
}

type stubUserService struct {
	getAllFn     func(ctx context.Context, actor domain.Actor, in ports.ListUsersInput) (*ports.Page[*domain.User], error)
	createFn     func(ctx context.Context, actor domain.Actor, in ports.CreateUserInput) (*domain.User, error)
	setBlockedFn func(ctx context.Context, actor domain.Actor, id string, blocked bool) (*domain.User, error)
}

func (s *stubUserService) GetAll(ctx context.Context, actor domain.Actor, in ports.ListUsersInput) (*ports.Page[*domain.User], error) {
	return s.getAllFn(ctx, actor, in)
}

func (s *stubUserService) Create(ctx context.Context, actor domain.Actor, in ports.CreateUserInput) (*domain.User, error) {
	return s.createFn(ctx, actor, in)
}

func (s *stubUserService) SetBlocked(ctx context.Context, actor domain.Actor, id string, blocked bool) (*domain.User, error) {
	return s.setBlockedFn(ctx, actor, id, blocked)
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

// authenticate mimics the Auth middleware.
func authenticate(c echo.Context, id string, roles ...string) {
	c.Set(middleware.CtxUserID, id)
	c.Set(middleware.CtxRoles, roles)
}

func httpCode(t interface{ Fatalf(string, ...any) }, err error) int {
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T (%v)", err, err)
	}
	return he.Code
}

package ports

import (
	"context"

	"github.com/protomind/user-service/internal/core/domain"
)

type AuthService interface {
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
	ConfirmEmail(ctx context.Context, email, code, password string) (*domain.User, error)
}

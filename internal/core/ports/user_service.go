package ports

import (
	"context"
	"io"

	"github.com/protomind/user-service/internal/core/domain"
)

// ListUsersInput is the DTO passed from the transport layer to UserService.GetAll.
type ListUsersInput struct {
	Filter      UserFilter
	Page        int // 1-based; <= 0 means first page
	Limit       int // <= 0 falls back to the configured default
	WithBlocked bool
}

// AvatarUpload is a file-like payload attached to a new account.
type AvatarUpload struct {
	FileName    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// CreateUserInput is the DTO passed from the transport layer to UserService.Create.
type CreateUserInput struct {
	Name     string
	Email    string
	Phone    string
	Password string
	External bool
	Avatar   *AvatarUpload // optional
}

// Page is a length-aware page of results.
type Page[T any] struct {
	Items    []T   `json:"data"`
	Total    int64 `json:"total"`
	Page     int   `json:"current_page"`
	PerPage  int   `json:"per_page"`
	LastPage int   `json:"last_page"`
}

// NewPage builds a Page and derives LastPage from total and perPage.
func NewPage[T any](items []T, total int64, page, perPage int) *Page[T] {
	last := 1
	if perPage > 0 && total > 0 {
		last = int((total + int64(perPage) - 1) / int64(perPage))
	}
	if items == nil {
		items = []T{}
	}
	return &Page[T]{Items: items, Total: total, Page: page, PerPage: perPage, LastPage: last}
}

// UserService manages accounts on behalf of an authenticated actor.
type UserService interface {
	GetAll(ctx context.Context, actor domain.Actor, in ListUsersInput) (*Page[*domain.User], error)
	Create(ctx context.Context, actor domain.Actor, in CreateUserInput) (*domain.User, error)
	SetBlocked(ctx context.Context, actor domain.Actor, userID string, blocked bool) (*domain.User, error)
}

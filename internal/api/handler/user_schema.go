package handler

import (
	"strings"

	"github.com/protomind/user-service/internal/core/domain"
	"github.com/protomind/user-service/internal/core/ports"
)

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

// flexBool binds from JSON, query and multipart form alike and accepts the
// lenient spellings understood by parseBool.
type flexBool bool

func (b *flexBool) UnmarshalParam(s string) error {
	*b = flexBool(parseBool(s))
	return nil
}

func (b *flexBool) UnmarshalJSON(data []byte) error {
	*b = flexBool(parseBool(strings.Trim(string(data), `"`)))
	return nil
}

// createUserRequest carries the account fields as sent. Only internal
// accounts need a name; the password is taken verbatim up to bcrypt's limit.
type createUserRequest struct {
	Name     string   `json:"name"     form:"name"     validate:"required_unless=External true,max=255"`
	Email    string   `json:"email"    form:"email"    validate:"required,email,max=255"`
	Phone    string   `json:"phone"    form:"phone"    validate:"max=32"`
	Password string   `json:"password" form:"password" validate:"max=72"`
	External flexBool `json:"external" form:"external"`
}

type setBlockedRequest struct {
	Blocked *bool `json:"blocked" validate:"required"`
}

// userPage documents the paginated listing envelope.
type userPage = ports.Page[*domain.User]

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

type confirmEmailRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Code     string `json:"code"     validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

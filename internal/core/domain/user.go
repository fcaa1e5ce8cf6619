package domain

import "time"

// Visibility selects whether blocked accounts take part in a user query.
// Every read of the user store states it explicitly.
type Visibility int

const (
	HideBlocked Visibility = iota
	IncludeBlocked
)

// Media describes a stored file attached to a user (the avatar).
type Media struct {
	ID          string `json:"id"`
	Collection  string `json:"collection"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// User models an account managed by the service.
type User struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Phone           string     `json:"phone,omitempty"`
	PasswordHash    string     `json:"-"`
	Roles           []Role     `json:"roles"`
	Blocked         bool       `json:"blocked"`
	Avatar          *Media     `json:"avatar,omitempty"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// HasRole reports whether the user holds role r.
func (u *User) HasRole(r Role) bool {
	for _, held := range u.Roles {
		if held == r {
			return true
		}
	}
	return false
}

// Visible reports whether the user passes the given visibility.
func (u *User) Visible(v Visibility) bool {
	return v == IncludeBlocked || !u.Blocked
}

// ManagerSecretary links a manager account to a secretary it supervises.
type ManagerSecretary struct {
	ID          string    `json:"id"`
	ManagerID   string    `json:"manager_id"`
	SecretaryID string    `json:"secretary_id"`
	CreatedAt   time.Time `json:"created_at"`
}

package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role is the closed set of capability buckets an account can hold.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleManager   Role = "manager"
	RoleSecretary Role = "secretary"
	RoleExternal  Role = "external"
)

// DefaultGuard is the guard context every role record is created and
// assigned under.
const DefaultGuard = "api"

// Roles lists every valid role in a stable order.
var Roles = []Role{RoleAdmin, RoleManager, RoleSecretary, RoleExternal}

// ParseRole converts a raw string into a Role, rejecting unknown names.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleManager, RoleSecretary, RoleExternal:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

func (r Role) String() string { return string(r) }

// Subordinate returns the role an account of role r assigns to the accounts
// it creates. Admins create managers and managers create secretaries;
// secretaries and external accounts create nobody.
func (r Role) Subordinate() (Role, bool) {
	switch r {
	case RoleAdmin:
		return RoleManager, true
	case RoleManager:
		return RoleSecretary, true
	case RoleSecretary, RoleExternal:
		return "", false
	default:
		panic(fmt.Sprintf("domain: unhandled role %q", string(r)))
	}
}

// RoleRecord is the persisted row backing a Role, unique on (Name, Guard).
type RoleRecord struct {
	ID        string    `json:"id"`
	Name      Role      `json:"name"`
	Guard     string    `json:"guard_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

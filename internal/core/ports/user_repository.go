package ports

import (
	"context"
	"time"

	"github.com/protomind/user-service/internal/core/domain"
)

// UserFilter carries the optional request filters applied to a user listing.
type UserFilter struct {
	Search string      // optional: partial, case-insensitive match on name or email
	Name   string      // optional: partial match on name
	Email  string      // optional: exact email
	Role   domain.Role // optional: users holding this role
}

// ListUsersQuery is the fully resolved query handed to the store.
// Visibility is always explicit; the zero value hides blocked users.
type ListUsersQuery struct {
	Filter       UserFilter
	Visibility   domain.Visibility
	ExcludeRoles []domain.Role
	// OnlyIDs restricts results to the given ids when RestrictIDs is set.
	// An empty set with RestrictIDs yields no rows.
	OnlyIDs     []string
	RestrictIDs bool
	ExcludeIDs  []string
	Page        int // 1-based
	Limit       int
}

// Offset returns the number of rows skipped before the requested page.
func (q ListUsersQuery) Offset() int {
	if q.Page <= 1 {
		return 0
	}
	return (q.Page - 1) * q.Limit
}

// UserRepository persists user accounts together with their role assignments.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	FindByID(ctx context.Context, id string, visibility domain.Visibility) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, q ListUsersQuery) ([]*domain.User, int64, error)
	SetAvatar(ctx context.Context, id string, avatar *domain.Media) error
	// SetPassword stores a new hash and marks the email as verified at verifiedAt.
	SetPassword(ctx context.Context, id, passwordHash string, verifiedAt time.Time) error
	SetBlocked(ctx context.Context, id string, blocked bool) error
}

// RoleRepository resolves role records.
type RoleRepository interface {
	// Ensure returns the record for (role, guard), inserting it when absent.
	// Concurrent callers always observe the same record.
	Ensure(ctx context.Context, role domain.Role, guard string) (*domain.RoleRecord, error)
}

// ManagerSecretaryRepository persists manager → secretary links.
type ManagerSecretaryRepository interface {
	Create(ctx context.Context, link *domain.ManagerSecretary) error
	// SecretaryIDs lists the ids of the manager's secretaries that pass visibility.
	SecretaryIDs(ctx context.Context, managerID string, visibility domain.Visibility) ([]string, error)
	IsSecretaryOf(ctx context.Context, managerID, secretaryID string) (bool, error)
}

// TxStores are the repositories bound to a running transaction.
type TxStores struct {
	Users              UserRepository
	ManagerSecretaries ManagerSecretaryRepository
}

// TxRunner executes fn atomically. The ctx handed to fn must be used for
// every call on the supplied stores.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, stores TxStores) error) error
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/protomind/user-service/internal/core/domain"
	"github.com/protomind/user-service/internal/core/ports"
)

var _ ports.UserRepository = (*UserRepository)(nil)

// UserRepository stores users in the users table and their roles in user_roles.
type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `
	u.id::text, u.name, u.email, u.phone, COALESCE(u.password_hash, ''), u.blocked,
	u.avatar, u.email_verified_at, u.created_at, u.updated_at,
	ARRAY(
		SELECT r.name FROM user_roles ur JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = u.id ORDER BY r.name
	)`

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		u     domain.User
		roles []string
	)
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.Phone, &u.PasswordHash, &u.Blocked,
		&u.Avatar, &u.EmailVerifiedAt, &u.CreatedAt, &u.UpdatedAt, &roles,
	)
	if err != nil {
		return nil, err
	}
	u.Roles = make([]domain.Role, 0, len(roles))
	for _, r := range roles {
		u.Roles = append(u.Roles, domain.Role(r))
	}
	return &u, nil
}

// Create inserts the user and assigns its roles. The role records must exist.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	id := uuid.NewString()
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO users (id, name, email, phone, password_hash, blocked, avatar, email_verified_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10)`,
		id, user.Name, user.Email, user.Phone, user.PasswordHash, user.Blocked,
		user.Avatar, user.EmailVerifiedAt, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrUserExists
		}
		return fmt.Errorf("insert user: %w", err)
	}

	if len(user.Roles) > 0 {
		names := make([]string, 0, len(user.Roles))
		for _, role := range user.Roles {
			names = append(names, role.String())
		}
		tag, err := r.db.Exec(ctx, `
			INSERT INTO user_roles (user_id, role_id)
			SELECT $1::uuid, id FROM roles WHERE name = ANY($2) AND guard_name = $3`,
			id, names, domain.DefaultGuard,
		)
		if err != nil {
			return fmt.Errorf("assign roles: %w", err)
		}
		if tag.RowsAffected() != int64(len(names)) {
			return fmt.Errorf("assign roles: %d of %d role records found", tag.RowsAffected(), len(names))
		}
	}

	user.ID = id
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string, visibility domain.Visibility) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.id::text = $1 AND ($2 OR NOT u.blocked)`
	return r.findOne(ctx, query, id, visibility == domain.IncludeBlocked)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.email = $1 LIMIT 1`
	return r.findOne(ctx, query, email)
}

func (r *UserRepository) findOne(ctx context.Context, query string, args ...any) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// List returns one page of users matching q, newest first, and the total.
func (r *UserRepository) List(ctx context.Context, q ports.ListUsersQuery) ([]*domain.User, int64, error) {
	where, args, ok := buildListWhere(q)
	if !ok {
		return []*domain.User{}, 0, nil
	}

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM users u`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM users u%s ORDER BY u.created_at DESC, u.id DESC LIMIT $%d OFFSET $%d`,
		userColumns, where, n+1, n+2)
	rows, err := r.db.Query(ctx, query, append(args, q.Limit, q.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []*domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

type whereBuilder struct {
	conds []string
	args  []any
}

func (w *whereBuilder) arg(v any) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *whereBuilder) add(cond string) {
	w.conds = append(w.conds, cond)
}

func (w *whereBuilder) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

const hasRoleCond = `EXISTS (
		SELECT 1 FROM user_roles ur JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = u.id AND r.name = ANY(%s))`

// buildListWhere renders q as a WHERE clause. It reports false when q can
// match nothing.
func buildListWhere(q ports.ListUsersQuery) (string, []any, bool) {
	var w whereBuilder

	if q.Visibility == domain.HideBlocked {
		w.add("NOT u.blocked")
	}
	if q.RestrictIDs {
		ids := normalizeIDs(q.OnlyIDs)
		if len(ids) == 0 {
			return "", nil, false
		}
		w.add("u.id::text = ANY(" + w.arg(ids) + ")")
	}
	if ids := normalizeIDs(q.ExcludeIDs); len(ids) > 0 {
		w.add("NOT (u.id::text = ANY(" + w.arg(ids) + "))")
	}
	if len(q.ExcludeRoles) > 0 {
		names := make([]string, 0, len(q.ExcludeRoles))
		for _, r := range q.ExcludeRoles {
			names = append(names, r.String())
		}
		w.add("NOT " + fmt.Sprintf(hasRoleCond, w.arg(names)))
	}
	if q.Filter.Role != "" {
		w.add(fmt.Sprintf(hasRoleCond, w.arg([]string{q.Filter.Role.String()})))
	}
	if q.Filter.Email != "" {
		w.add("u.email = " + w.arg(q.Filter.Email))
	}
	if q.Filter.Name != "" {
		w.add("u.name ILIKE " + w.arg(containsPattern(q.Filter.Name)))
	}
	if q.Filter.Search != "" {
		p := w.arg(containsPattern(q.Filter.Search))
		w.add("(u.name ILIKE " + p + " OR u.email ILIKE " + p + ")")
	}

	return w.sql(), w.args, true
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// normalizeIDs keeps the canonical form of every valid uuid in ids.
func normalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		parsed, err := uuid.Parse(id)
		if err != nil {
			continue
		}
		out = append(out, parsed.String())
	}
	return out
}

func (r *UserRepository) SetAvatar(ctx context.Context, id string, avatar *domain.Media) error {
	return r.update(ctx, `UPDATE users SET avatar = $2, updated_at = now() WHERE id::text = $1`, id, avatar)
}

func (r *UserRepository) SetPassword(ctx context.Context, id, passwordHash string, verifiedAt time.Time) error {
	return r.update(ctx,
		`UPDATE users SET password_hash = $2, email_verified_at = $3, updated_at = now() WHERE id::text = $1`,
		id, passwordHash, verifiedAt)
}

func (r *UserRepository) SetBlocked(ctx context.Context, id string, blocked bool) error {
	return r.update(ctx, `UPDATE users SET blocked = $2, updated_at = now() WHERE id::text = $1`, id, blocked)
}

func (r *UserRepository) update(ctx context.Context, query string, args ...any) error {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

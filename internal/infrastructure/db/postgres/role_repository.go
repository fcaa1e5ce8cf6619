package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/protomind/user-service/internal/core/domain"
	"github.com/protomind/user-service/internal/core/ports"
)

var _ ports.RoleRepository = (*RoleRepository)(nil)

type RoleRepository struct {
	db DBTX
}

func NewRoleRepository(db DBTX) *RoleRepository {
	return &RoleRepository{db: db}
}

// Ensure inserts the (role, guard) row if missing and returns it. The no-op
// update makes RETURNING yield the existing row on conflict.
func (r *RoleRepository) Ensure(ctx context.Context, role domain.Role, guard string) (*domain.RoleRecord, error) {
	const query = `
		INSERT INTO roles (id, name, guard_name, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (name, guard_name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id::text, name, guard_name, created_at, updated_at`

	var (
		rec  domain.RoleRecord
		name string
	)
	err := r.db.QueryRow(ctx, query, uuid.NewString(), role.String(), guard).Scan(
		&rec.ID, &name, &rec.Guard, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("ensure role %s: %w", role, err)
	}
	rec.Name = domain.Role(name)
	return &rec, nil
}

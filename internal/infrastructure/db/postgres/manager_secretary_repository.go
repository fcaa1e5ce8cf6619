package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/protomind/user-service/internal/core/domain"
	"github.com/protomind/user-service/internal/core/ports"
)

var _ ports.ManagerSecretaryRepository = (*ManagerSecretaryRepository)(nil)

type ManagerSecretaryRepository struct {
	db DBTX
}

func NewManagerSecretaryRepository(db DBTX) *ManagerSecretaryRepository {
	return &ManagerSecretaryRepository{db: db}
}

func (r *ManagerSecretaryRepository) Create(ctx context.Context, link *domain.ManagerSecretary) error {
	id := uuid.NewString()
	_, err := r.db.Exec(ctx, `
		INSERT INTO manager_secretaries (id, manager_id, secretary_id, created_at)
		VALUES ($1, $2, $3, $4)`,
		id, link.ManagerID, link.SecretaryID, link.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAssociationExists
		}
		return fmt.Errorf("insert manager secretary: %w", err)
	}
	link.ID = id
	return nil
}

func (r *ManagerSecretaryRepository) SecretaryIDs(ctx context.Context, managerID string, visibility domain.Visibility) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT ms.secretary_id::text
		FROM manager_secretaries ms
		JOIN users u ON u.id = ms.secretary_id
		WHERE ms.manager_id::text = $1 AND ($2 OR NOT u.blocked)
		ORDER BY ms.created_at`,
		managerID, visibility == domain.IncludeBlocked,
	)
	if err != nil {
		return nil, fmt.Errorf("list secretaries: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan secretary id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *ManagerSecretaryRepository) IsSecretaryOf(ctx context.Context, managerID, secretaryID string) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM manager_secretaries
			WHERE manager_id::text = $1 AND secretary_id::text = $2
		)`, managerID, secretaryID,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check manager secretary: %w", err)
	}
	return ok, nil
}

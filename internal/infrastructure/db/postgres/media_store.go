package postgres

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/protomind/user-service/internal/core/domain"
	"github.com/protomind/user-service/internal/core/ports"
)

var _ ports.MediaStore = (*MediaStore)(nil)

// MediaStore keeps uploaded files in the media table.
type MediaStore struct {
	db DBTX
}

func NewMediaStore(db DBTX) *MediaStore {
	return &MediaStore{db: db}
}

func (s *MediaStore) Put(ctx context.Context, ownerID, collection string, upload ports.AvatarUpload) (*domain.Media, error) {
	content, err := io.ReadAll(upload.Content)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", upload.FileName, err)
	}

	m := &domain.Media{
		ID:          uuid.NewString(),
		Collection:  collection,
		FileName:    upload.FileName,
		ContentType: upload.ContentType,
		Size:        int64(len(content)),
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO media (id, owner_id, collection, file_name, content_type, size, content)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, ownerID, m.Collection, m.FileName, m.ContentType, m.Size, content,
	)
	if err != nil {
		return nil, fmt.Errorf("insert media: %w", err)
	}
	return m, nil
}

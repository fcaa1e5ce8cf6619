package ports

import (
	"context"

	"github.com/protomind/user-service/internal/core/domain"
)

// AvatarCollection is the media collection user avatars are stored in.
const AvatarCollection = "avatar"

// MediaStore keeps uploaded files owned by an account.
type MediaStore interface {
	Put(ctx context.Context, ownerID, collection string, upload AvatarUpload) (*domain.Media, error)
}

package mongo

import (
	"context"
	"fmt"
	"io"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/protomind/user-service/internal/core/domain"
	"github.com/protomind/user-service/internal/core/ports"
)

const mediaBucket = "media"

// MediaStore keeps uploaded files in a GridFS bucket.
type MediaStore struct {
	db *mongo.Database
}

func NewMediaStore(db *mongo.Database) *MediaStore {
	return &MediaStore{db: db}
}

// Put streams upload into GridFS. Buckets carry their own deadlines, so one is
// opened per call.
func (s *MediaStore) Put(ctx context.Context, ownerID, collection string, upload ports.AvatarUpload) (*domain.Media, error) {
	bucket, err := gridfs.NewBucket(s.db, options.GridFSBucket().SetName(mediaBucket))
	if err != nil {
		return nil, fmt.Errorf("open gridfs bucket: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := bucket.SetWriteDeadline(deadline); err != nil {
			return nil, fmt.Errorf("set gridfs deadline: %w", err)
		}
	}

	counter := &countingReader{r: upload.Content}
	opts := options.GridFSUpload().SetMetadata(bson.M{
		"owner_id":     ownerID,
		"collection":   collection,
		"content_type": upload.ContentType,
	})
	id, err := bucket.UploadFromStream(upload.FileName, counter, opts)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", upload.FileName, err)
	}

	return &domain.Media{
		ID:          id.Hex(),
		Collection:  collection,
		FileName:    upload.FileName,
		ContentType: upload.ContentType,
		Size:        counter.n,
	}, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

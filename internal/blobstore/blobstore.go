package blobstore

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/tags"

	"backupwiz/internal/config"
)

// Store is the media blob side of the destination. Objects live under
// tenant-scoped keys so one tenant's data can never collide with another's.
type Store struct {
	client *minio.Client
	bucket string
}

func New(cfg config.BlobConfig) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	return &Store{client: client, bucket: cfg.Bucket}, nil
}

func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
}

// Key builds the canonical object key for a tenant's media blob.
func Key(tenantID, category, name string) string {
	return path.Join("tenants", tenantID, category, name)
}

func (s *Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// SetDisplayName tags a stored object with the human-readable filename the
// media linker recovered from the source file-mapping table. The hash-named
// key stays stable; only the tag changes.
func (s *Store) SetDisplayName(ctx context.Context, key, displayName string) error {
	t, err := tags.NewTags(map[string]string{"display-name": displayName}, true)
	if err != nil {
		return err
	}
	return s.client.PutObjectTagging(ctx, s.bucket, key, t, minio.PutObjectTaggingOptions{})
}

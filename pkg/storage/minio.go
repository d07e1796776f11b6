package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"blogarchive/pkg/config"
	"blogarchive/pkg/logger"
)

// Minio stores images as objects in a MinIO (or any S3-compatible) bucket.
type Minio struct {
	client *minio.Client
	bucket string
	logger logger.Logger
}

// NewMinio connects to the object store and ensures the bucket exists.
func NewMinio(cfg config.MinioConfig, log logger.Logger) (*Minio, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
		log.InfoWithFields("Created storage bucket", map[string]interface{}{
			"bucket": cfg.Bucket,
		})
	}

	return &Minio{client: client, bucket: cfg.Bucket, logger: log}, nil
}

// Save uploads r as an object under relPath. PutObject is atomic on the
// server side, so a failed upload leaves no partial object.
func (m *Minio) Save(ctx context.Context, relPath string, r io.Reader, size int64) (int64, error) {
	info, err := m.client.PutObject(ctx, m.bucket, relPath, r, size, minio.PutObjectOptions{
		ContentType: contentTypeFor(relPath),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to upload %s: %w", relPath, err)
	}
	return info.Size, nil
}

// Exists reports whether an object is stored under relPath.
func (m *Minio) Exists(ctx context.Context, relPath string) (bool, error) {
	_, err := m.client.StatObject(ctx, m.bucket, relPath, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	var resp minio.ErrorResponse
	if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
		return false, nil
	}
	return false, err
}

// Location returns the bucket-qualified object key.
func (m *Minio) Location(relPath string) string {
	return m.bucket + "/" + relPath
}

// Delete removes the object under relPath. MinIO treats removing a missing
// object as success.
func (m *Minio) Delete(ctx context.Context, relPath string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, relPath, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete %s: %w", relPath, err)
	}
	return nil
}

func contentTypeFor(relPath string) string {
	if ext := path.Ext(relPath); ext != "" {
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
	}
	return "application/octet-stream"
}

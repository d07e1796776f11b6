// Package storage abstracts where downloaded images end up. The pipeline
// only ever talks to the Adapter interface; whether bytes land on the
// local filesystem or in an object store is a configuration decision made
// once at startup.
package storage

import (
	"context"
	"fmt"
	"io"

	"blogarchive/pkg/config"
	"blogarchive/pkg/logger"
)

// Adapter stores image files under relative paths like
// "member-name/site-A_12345_ab12cd34.jpg".
type Adapter interface {
	// Save writes the contents of r under relPath, creating intermediate
	// directories or prefixes as needed. It returns the number of bytes
	// written. Save never leaves a partial object behind on failure.
	Save(ctx context.Context, relPath string, r io.Reader, size int64) (int64, error)

	// Exists reports whether an object is already stored under relPath.
	Exists(ctx context.Context, relPath string) (bool, error)

	// Location returns the backend-native locator for relPath (an absolute
	// file path, or a bucket object key). It does not imply existence.
	Location(relPath string) string

	// Delete removes the object under relPath. Deleting a missing object
	// is not an error.
	Delete(ctx context.Context, relPath string) error
}

// New builds the configured storage backend.
func New(cfg config.StorageConfig, log logger.Logger) (Adapter, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	switch cfg.Backend {
	case "local":
		return NewLocal(cfg.Root, log)
	case "minio":
		return NewMinio(cfg.Minio, log)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

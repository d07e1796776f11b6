package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"blogarchive/pkg/logger"
)

// Local stores images under a root directory on the local filesystem.
type Local struct {
	root   string
	logger logger.Logger
}

// NewLocal creates a Local adapter rooted at root, creating the directory
// if needed.
func NewLocal(root string, log logger.Logger) (*Local, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &Local{root: root, logger: log}, nil
}

// Save writes r to root/relPath via a temporary file and an atomic rename,
// so a failed write never leaves a partial image on disk.
func (l *Local) Save(ctx context.Context, relPath string, r io.Reader, size int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	target := filepath.Join(l.root, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory for %s: %w", relPath, err)
	}

	tempPath := target + ".tmp"
	out, err := os.Create(tempPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}

	n, err := io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempPath)
		return 0, fmt.Errorf("failed to write image data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return 0, fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempPath, target); err != nil {
		os.Remove(tempPath)
		return 0, fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return n, nil
}

// Exists reports whether a file is present under relPath.
func (l *Local) Exists(ctx context.Context, relPath string) (bool, error) {
	_, err := os.Stat(filepath.Join(l.root, filepath.FromSlash(relPath)))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Location returns the absolute path for relPath.
func (l *Local) Location(relPath string) string {
	return filepath.Join(l.root, filepath.FromSlash(relPath))
}

// Delete removes the file under relPath if it exists.
func (l *Local) Delete(ctx context.Context, relPath string) error {
	err := os.Remove(filepath.Join(l.root, filepath.FromSlash(relPath)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", relPath, err)
	}
	return nil
}

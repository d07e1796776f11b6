package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blogarchive/pkg/config"
	"blogarchive/pkg/logger"
)

func TestLocalSaveCreatesNestedDirectories(t *testing.T) {
	root := t.TempDir()
	local, err := NewLocal(root, logger.NewNopLogger())
	require.NoError(t, err)

	n, err := local.Save(context.Background(), "member-a/site-A_1_abcd.jpg", strings.NewReader("jpeg-bytes"), -1)
	require.NoError(t, err)
	assert.Equal(t, int64(len("jpeg-bytes")), n)

	data, err := os.ReadFile(filepath.Join(root, "member-a", "site-A_1_abcd.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))
}

func TestLocalSaveLeavesNoTempFileBehind(t *testing.T) {
	root := t.TempDir()
	local, err := NewLocal(root, logger.NewNopLogger())
	require.NoError(t, err)

	_, err = local.Save(context.Background(), "a/b.jpg", strings.NewReader("x"), -1)
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(root, "a"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b.jpg", entries[0].Name())
}

func TestLocalExists(t *testing.T) {
	local, err := NewLocal(t.TempDir(), logger.NewNopLogger())
	require.NoError(t, err)

	ok, err := local.Exists(context.Background(), "missing.jpg")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = local.Save(context.Background(), "present.jpg", strings.NewReader("x"), -1)
	require.NoError(t, err)

	ok, err = local.Exists(context.Background(), "present.jpg")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalDeleteMissingIsNotAnError(t *testing.T) {
	local, err := NewLocal(t.TempDir(), logger.NewNopLogger())
	require.NoError(t, err)

	assert.NoError(t, local.Delete(context.Background(), "never-existed.jpg"))
}

func TestLocalDeleteRemovesFile(t *testing.T) {
	local, err := NewLocal(t.TempDir(), logger.NewNopLogger())
	require.NoError(t, err)

	_, err = local.Save(context.Background(), "x.jpg", strings.NewReader("x"), -1)
	require.NoError(t, err)
	require.NoError(t, local.Delete(context.Background(), "x.jpg"))

	ok, err := local.Exists(context.Background(), "x.jpg")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewSelectsBackend(t *testing.T) {
	adapter, err := New(config.StorageConfig{Backend: "local", Root: t.TempDir()}, logger.NewNopLogger())
	require.NoError(t, err)
	_, isLocal := adapter.(*Local)
	assert.True(t, isLocal)

	_, err = New(config.StorageConfig{Backend: "ftp"}, logger.NewNopLogger())
	assert.Error(t, err)
}

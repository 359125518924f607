package artifact_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmwhit/docdriver/internal/artifact"
)

func TestNew(t *testing.T) {
	t.Run("ExistingDirectory", func(t *testing.T) {
		store, err := artifact.New(t.TempDir(), nil)
		require.NoError(t, err)
		assert.NotNil(t, store)
	})

	t.Run("CreatesMissingDirectory", func(t *testing.T) {
		base := filepath.Join(t.TempDir(), "out")
		_, err := artifact.New(base, nil)
		require.NoError(t, err)
		info, err := os.Stat(base)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("EmptyBaseDir", func(t *testing.T) {
		_, err := artifact.New("  ", nil)
		assert.Error(t, err)
	})

	t.Run("BaseDirIsAFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
		_, err := artifact.New(path, nil)
		assert.Error(t, err)
	})
}

func TestPutAndStat(t *testing.T) {
	base := t.TempDir()
	store, err := artifact.New(base, nil)
	require.NoError(t, err)

	path, err := store.Put(context.Background(), "charter", []byte("# Project Charter\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "charter.md"), path)

	size, ok := store.Stat("charter")
	assert.True(t, ok)
	assert.Equal(t, int64(len("# Project Charter\n")), size)

	_, ok = store.Stat("absent")
	assert.False(t, ok)
}

func TestPutOverwrites(t *testing.T) {
	store, err := artifact.New(t.TempDir(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Put(ctx, "a", []byte("first"))
	require.NoError(t, err)
	_, err = store.Put(ctx, "a", []byte("second, longer"))
	require.NoError(t, err)

	size, ok := store.Stat("a")
	assert.True(t, ok)
	assert.Equal(t, int64(len("second, longer")), size)
}

func TestPutDiagnosticIsSeparateFromContent(t *testing.T) {
	base := t.TempDir()
	store, err := artifact.New(base, nil)
	require.NoError(t, err)

	path, err := store.PutDiagnostic(context.Background(), "broken", []byte("<html/>"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "diagnostics", "broken.html"), path)

	// A diagnostic snapshot must never satisfy the content Stat.
	_, ok := store.Stat("broken")
	assert.False(t, ok)
}

func TestPutRejectsPathTraversal(t *testing.T) {
	store, err := artifact.New(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "../escape", []byte("x"))
	assert.Error(t, err)
}

func TestPutHonorsCanceledContext(t *testing.T) {
	store, err := artifact.New(t.TempDir(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Put(ctx, "a", []byte("x"))
	assert.Error(t, err)
}

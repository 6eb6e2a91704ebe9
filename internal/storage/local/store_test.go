package local_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/link-archiver/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("EmptyBaseDir", func(t *testing.T) {
		t.Parallel()
		store, err := local.New(local.Config{})
		require.NoError(t, err)
		require.NotNil(t, store)
	})

	t.Run("CreatesMissingBaseDir", func(t *testing.T) {
		t.Parallel()
		dir := filepath.Join(t.TempDir(), "nested", "out")
		_, err := local.New(local.Config{BaseDir: dir})
		require.NoError(t, err)
		require.DirExists(t, dir)
	})

	t.Run("BaseDirIsAFile", func(t *testing.T) {
		t.Parallel()
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
		_, err := local.New(local.Config{BaseDir: file})
		require.Error(t, err)
	})
}

func TestPutObject(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)

	t.Run("NestedPath", func(t *testing.T) {
		uri, err := store.PutObject(context.Background(), "doc/example.com.png", "image/png", strings.NewReader("png"))
		require.NoError(t, err)
		want := filepath.Join(dir, "doc", "example.com.png")
		require.Equal(t, "file://"+filepath.ToSlash(want), uri)

		// #nosec G304 -- test reads from the controlled temp directory.
		got, err := os.ReadFile(want)
		require.NoError(t, err)
		require.Equal(t, "png", string(got))
	})

	t.Run("EmptyPath", func(t *testing.T) {
		_, err := store.PutObject(context.Background(), " ", "image/png", strings.NewReader("x"))
		require.Error(t, err)
	})

	t.Run("Traversal", func(t *testing.T) {
		_, err := store.PutObject(context.Background(), "../escape.png", "image/png", strings.NewReader("x"))
		require.ErrorContains(t, err, "traversal")
	})

	t.Run("ReaderError", func(t *testing.T) {
		_, err := store.PutObject(context.Background(), "broken.png", "image/png", failingReader{})
		require.ErrorContains(t, err, "write file")
	})
}

func TestPutObjectWithoutBaseDirUsesPathAsGiven(t *testing.T) {
	t.Parallel()

	store, err := local.New(local.Config{})
	require.NoError(t, err)

	target := filepath.Join(t.TempDir(), "out", "doc", "shot.png")
	uri, err := store.PutObject(context.Background(), target, "image/png", strings.NewReader("data"))
	require.NoError(t, err)
	require.Equal(t, "file://"+filepath.ToSlash(target), uri)
	require.FileExists(t, target)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

package storage_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mdouchement/padbank/internal/storage"
	"github.com/ncw/swift/v2/swifttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, b storage.Backend, container, object, content string) {
	t.Helper()

	w, err := b.Writer(context.Background(), container, object)
	require.NoError(t, err)
	_, err = io.WriteString(w, content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func read(t *testing.T, b storage.Backend, container, object string) string {
	t.Helper()

	r, err := b.Reader(context.Background(), container, object)
	require.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(data)
}

func exercise(t *testing.T, b storage.Backend) {
	ctx := context.Background()

	names, err := b.FilenamesFrom(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, names)

	write(t, b, "alice", "Drums.bank", "drums")
	write(t, b, "alice", "Keys_4a4b2bc6-3c55-4f33-9c4c-6ad0a1d5f4a1.bank", "keys")
	write(t, b, "alice", "Drums.bank", "drums v2")

	assert.Equal(t, "drums v2", read(t, b, "alice", "Drums.bank"))

	names, err = b.FilenamesFrom(ctx, "alice")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Drums.bank", "Keys_4a4b2bc6-3c55-4f33-9c4c-6ad0a1d5f4a1.bank"}, names)

	require.NoError(t, b.Remove(ctx, "alice", "Drums.bank"))
	assert.NoError(t, b.Remove(ctx, "alice", "Drums.bank"), "removing twice is a no-op")

	_, err = b.Reader(ctx, "alice", "Drums.bank")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.NoError(t, b.Cleanup(ctx))
}

func TestFileSystem(t *testing.T) {
	exercise(t, storage.NewFileSystem(t.TempDir()))
}

func TestFileSystemPartialWrites(t *testing.T) {
	workspace := t.TempDir()
	b := storage.NewFileSystem(workspace)
	ctx := context.Background()

	w, err := b.Writer(ctx, "alice", "Drums.bank")
	require.NoError(t, err)
	_, err = io.WriteString(w, "half")
	require.NoError(t, err)

	names, err := b.FilenamesFrom(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, names, "unclosed archives are invisible")

	// Abandon the write and age it.
	partials, err := filepath.Glob(filepath.Join(workspace, "alice", "*.partial"))
	require.NoError(t, err)
	require.Len(t, partials, 1)
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(partials[0], old, old))

	require.NoError(t, b.Cleanup(ctx))
	_, err = os.Stat(filepath.Join(workspace, "alice"))
	assert.True(t, os.IsNotExist(err), "empty containers are removed")
}

func TestFileSystemRejectsTraversal(t *testing.T) {
	b := storage.NewFileSystem(t.TempDir())
	ctx := context.Background()

	_, err := b.Writer(ctx, "..", "x.bank")
	assert.Error(t, err)
	_, err = b.Reader(ctx, "alice", "../x.bank")
	assert.Error(t, err)
}

func TestSwift(t *testing.T) {
	srv, err := swifttest.NewSwiftServer("localhost")
	require.NoError(t, err)
	defer srv.Close()

	b, err := storage.NewSwift(context.Background(), storage.SwiftConfig{
		AuthURL:  srv.AuthURL,
		UserName: swifttest.TEST_ACCOUNT,
		APIKey:   swifttest.TEST_ACCOUNT,
	})
	require.NoError(t, err)
	assert.Equal(t, "swift", b.Name())

	exercise(t, b)
}

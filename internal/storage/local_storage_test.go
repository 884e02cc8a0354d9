package storage

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLocalStorage(t *testing.T) {
	basePath := filepath.Join(t.TempDir(), "media")

	ls, err := NewLocalStorage(basePath)
	require.NoError(t, err)
	require.NotNil(t, ls)

	info, err := os.Stat(basePath)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestSaveAndGet(t *testing.T) {
	ls, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	payload := []byte("jpeg bytes go here")
	require.NoError(t, ls.Save("abc123", bytes.NewReader(payload)))

	reader, err := ls.Get("abc123")
	require.NoError(t, err)
	defer reader.Close()

	got, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestGetNonExistent(t *testing.T) {
	ls, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = ls.Get("missing")
	require.Error(t, err)
}

func TestDelete(t *testing.T) {
	ls, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, ls.Save("todelete", bytes.NewReader([]byte("x"))))
	require.NoError(t, ls.Delete("todelete"))

	_, err = ls.Get("todelete")
	require.Error(t, err)

	// Deleting something that is already gone is not an error.
	require.NoError(t, ls.Delete("todelete"))
}

func TestShardedPaths(t *testing.T) {
	base := t.TempDir()
	ls, err := NewLocalStorage(base)
	require.NoError(t, err)

	require.NoError(t, ls.Save("xyz", bytes.NewReader([]byte("data"))))

	_, err = os.Stat(filepath.Join(base, "x", "y", "z"))
	require.NoError(t, err)
}

package artifact

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFS_PutGetExists(t *testing.T) {
	ctx := context.Background()
	fs := NewFS(t.TempDir())

	ok, err := fs.Exists(ctx, "311/2024/01/05.csv")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, fs.Put(ctx, "311/2024/01/05.csv", []byte("a,b\n1,2\n")))

	ok, err = fs.Exists(ctx, "311/2024/01/05.csv")
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := fs.Get(ctx, "311/2024/01/05.csv")
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))
}

func TestFS_EmptyArtifactExists(t *testing.T) {
	ctx := context.Background()
	fs := NewFS(t.TempDir())

	require.NoError(t, fs.Put(ctx, "311/2024/01/06.csv", nil))
	ok, err := fs.Exists(ctx, "311/2024/01/06.csv")
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := fs.Get(ctx, "311/2024/01/06.csv")
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestFS_GetMissing(t *testing.T) {
	_, err := NewFS(t.TempDir()).Get(context.Background(), "311/1999/01/01.csv")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestFS_PutOverwritesAndLeavesNoTemp(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	fs := NewFS(root)

	require.NoError(t, fs.Put(ctx, "k/r.csv", []byte("old")))
	require.NoError(t, fs.Put(ctx, "k/r.csv", []byte("new")))

	data, err := fs.Get(ctx, "k/r.csv")
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))

	entries, err := os.ReadDir(filepath.Join(root, "k"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFS_RejectsEscapingKeys(t *testing.T) {
	fs := NewFS(t.TempDir())
	for _, key := range []string{"", "../x.csv", "/etc/passwd"} {
		_, err := fs.Exists(context.Background(), key)
		assert.Error(t, err, key)
	}
}

func TestFS_PutCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fs := NewFS(t.TempDir())

	require.Error(t, fs.Put(ctx, "k/x.csv", []byte("x")))
	ok, err := fs.Exists(context.Background(), "k/x.csv")
	require.NoError(t, err)
	assert.False(t, ok)
}

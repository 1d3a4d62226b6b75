package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindByExtension(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	for _, name := range []string{"b.hcl", "a.hcl", "notes.txt", "nested/c.hcl", ".git/d.hcl"} {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, nil, 0o644))
	}

	files, err := FindByExtension(root, ".hcl")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a.hcl"),
		filepath.Join(root, "b.hcl"),
		filepath.Join(root, "nested", "c.hcl"),
	}, files)

	_, err = FindByExtension(root, "")
	assert.Error(t, err)

	_, err = FindByExtension(filepath.Join(root, "missing"), ".hcl")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	got, err := NormalizePath(base, "assets/../assets/f.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "assets", "f.png"), got)

	abs := filepath.Join(base, "x.png")
	got, err = NormalizePath("/elsewhere", abs)
	require.NoError(t, err)
	assert.Equal(t, abs, got)
}

func TestExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	assert.True(t, Exists(dir))
	assert.False(t, Exists(filepath.Join(dir, "nope")))
}

package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func temps(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp-*"))
	require.NoError(t, err)
	return matches
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	require.NoError(t, WriteFile(path, []byte("one"), 0644))
	require.NoError(t, WriteFile(path, []byte("two"), 0600))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))
	assert.Equal(t, os.FileMode(0600), ModeOr(path, 0644))
	assert.Empty(t, temps(t, dir))
}

func TestAtomicFile_AbortKeepsOriginal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0644))

	a, err := CreateAtomic(path)
	require.NoError(t, err)
	_, err = a.Write([]byte("partial"))
	require.NoError(t, err)
	assert.FileExists(t, a.TempName())
	a.Abort()
	a.Abort()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
	assert.Empty(t, temps(t, dir))
}

func TestAtomicFile_CommitTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	a, err := CreateAtomic(path)
	require.NoError(t, err)
	require.NoError(t, a.Commit(0644))
	assert.Error(t, a.Commit(0644))
	a.Abort()
	assert.FileExists(t, path)
}

func TestCreateAtomic_MissingDir(t *testing.T) {
	_, err := CreateAtomic(filepath.Join(t.TempDir(), "nope", "out.txt"))
	assert.Error(t, err)
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a")
	dst := filepath.Join(dir, "b")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0644))
	require.NoError(t, os.WriteFile(dst, []byte("much longer old content"), 0644))

	require.NoError(t, CopyFile(src, dst, 0644))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	assert.Error(t, CopyFile(filepath.Join(dir, "missing"), dst, 0644))
}

func TestModeOr_Missing(t *testing.T) {
	assert.Equal(t, os.FileMode(0640), ModeOr(filepath.Join(t.TempDir(), "x"), 0640))
}

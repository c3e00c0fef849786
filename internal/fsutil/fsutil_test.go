package fsutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.nc")
	dst := filepath.Join(dir, "nested", "deeper", "dst.nc")
	writeFile(t, src, "payload")

	require.NoError(t, CopyFile(src, dst))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))

	entries, err := os.ReadDir(filepath.Dir(dst))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files may be left behind")
}

func TestCopyFile_MissingSource(t *testing.T) {
	dir := t.TempDir()
	err := CopyFile(filepath.Join(dir, "nope"), filepath.Join(dir, "dst"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCopyFileNoClobber(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	writeFile(t, src, "new")
	writeFile(t, dst, "old")

	copied, err := CopyFileNoClobber(src, dst)
	require.NoError(t, err)
	assert.False(t, copied)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "old", string(got))
}

func TestFindDirs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a_input", "b_input"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "nested", "c_input"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "raw_data", "d_input"), 0o755))

	dirs, err := FindDirs(root,
		func(name string) bool { return strings.HasSuffix(name, "_input") },
		func(name string) bool { return name == "raw_data" },
	)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a_input"),
		filepath.Join(root, "nested", "c_input"),
	}, dirs)

	dirs, err = FindDirs(filepath.Join(root, "missing"), func(string) bool { return true }, nil)
	require.NoError(t, err)
	assert.Empty(t, dirs)
}

func TestFindFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "x", "forcing_obc.nc"), "")
	writeFile(t, filepath.Join(root, "notes.txt"), "")

	files, err := FindFiles(root, func(name string) bool { return strings.HasSuffix(name, ".nc") })
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "x", "forcing_obc.nc")}, files)
}

func TestSameContent(t *testing.T) {
	dir := t.TempDir()
	a, b, c := filepath.Join(dir, "a"), filepath.Join(dir, "b"), filepath.Join(dir, "c")
	writeFile(t, a, "same")
	writeFile(t, b, "same")
	writeFile(t, c, "different")

	testCases := []struct {
		name string
		x, y string
		want bool
	}{
		{"identical bytes", a, b, true},
		{"different bytes", a, c, false},
		{"missing file", a, filepath.Join(dir, "nope"), false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SameContent(tc.x, tc.y)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDigest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	writeFile(t, path, "abc")

	digest, size, err := Digest(path)

	require.NoError(t, err)
	assert.Equal(t, int64(3), size)
	// BLAKE3-256 of "abc".
	assert.Equal(t, "6437b3ac38465133ffb63b75273a8db548c558465d79db03fd359c6cd5bd9d85", digest)
}

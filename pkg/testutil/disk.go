package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// CreateFile writes content to dir/name, creating parent directories, and
// returns the full path.
func CreateFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755), "parent of %s", path)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644), "write %s", path)
	return path
}

// CreateSymlink makes link point at target, creating link's parent.
func CreateSymlink(t *testing.T, target, link string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(link), 0755), "parent of %s", link)
	require.NoError(t, os.Symlink(target, link), "symlink %s -> %s", link, target)
}

// FileExists reports whether path is an existing non-directory.
func FileExists(t *testing.T, path string) bool {
	t.Helper()
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// DirExists reports whether path is an existing directory.
func DirExists(t *testing.T, path string) bool {
	t.Helper()
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// ReadFile returns the content of path.
func ReadFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err, "read %s", path)
	return string(data)
}

// AssertFileContent fails unless path is a file holding exactly expected.
func AssertFileContent(t *testing.T, path, expected string) {
	t.Helper()

	require.True(t, FileExists(t, path), "%s is not a file", path)
	assert.Equal(t, expected, ReadFile(t, path), "content of %s", path)
}

// AssertNoFile fails if anything exists at path.
func AssertNoFile(t *testing.T, path string) {
	t.Helper()

	_, err := os.Lstat(path)
	assert.True(t, os.IsNotExist(err), "%s should not exist", path)
}

// Chmod sets the mode of path.
func Chmod(t *testing.T, path string, mode os.FileMode) {
	t.Helper()
	require.NoError(t, os.Chmod(path, mode), "chmod %s", path)
}

// SkipOnWindows skips tests built on POSIX links and permission bits.
func SkipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs POSIX filesystem semantics")
	}
}

// SkipIfRoot skips tests that rely on permission checks, which root bypasses.
func SkipIfRoot(t *testing.T) {
	t.Helper()
	if os.Geteuid() == 0 {
		t.Skip("root bypasses permission checks")
	}
}

package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// NewOS creates a filesystem backed by the operating system
func NewOS() afero.Fs {
	return afero.NewOsFs()
}

// NewMemory creates an in-memory filesystem
func NewMemory() afero.Fs {
	return afero.NewMemMapFs()
}

// ErrNotDirectory is returned by EnsureDir when the path exists as a
// non-directory.
var ErrNotDirectory = errors.New("path exists and is not a directory")

// EnsureDir creates path and any missing parents. It reports whether the
// directory had to be created.
func EnsureDir(fsys afero.Fs, path string, perm fs.FileMode) (bool, error) {
	info, err := fsys.Stat(path)
	switch {
	case err == nil:
		if !info.IsDir() {
			return false, fmt.Errorf("%s: %w", path, ErrNotDirectory)
		}
		return false, nil
	case !errors.Is(err, os.ErrNotExist):
		return false, err
	}

	if err := fsys.MkdirAll(path, perm); err != nil {
		return false, err
	}
	return true, nil
}

// IsDir reports whether path exists and is a directory. A missing path is
// not an error.
func IsDir(fsys afero.Fs, path string) (bool, error) {
	info, err := fsys.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

// Within reports whether target is base itself or lies underneath it.
// Both paths are made absolute before comparing, so relative inputs are
// resolved against the working directory.
func Within(base, target string) bool {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return false
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absBase, absTarget)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Resolve returns path made absolute, with symbolic links evaluated when
// fsys is the operating system filesystem. Trailing components that do not
// exist yet are kept as given.
func Resolve(fsys afero.Fs, path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if _, ok := fsys.(*afero.OsFs); !ok {
		return abs
	}

	rest := ""
	for dir := abs; ; {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(resolved, rest)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs
		}
		rest = filepath.Join(filepath.Base(dir), rest)
		dir = parent
	}
}

// WithinResolved is Within applied to the resolved forms of both paths.
func WithinResolved(fsys afero.Fs, base, target string) bool {
	return Within(Resolve(fsys, base), Resolve(fsys, target))
}

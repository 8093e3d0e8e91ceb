package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
)

// WriteTree creates files under root. Keys are slash-separated relative
// paths; a key ending in "/" creates an empty directory.
func WriteTree(t *testing.T, fsys afero.Fs, root string, files map[string]string) {
	t.Helper()

	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if rel[len(rel)-1] == '/' {
			if err := fsys.MkdirAll(path, 0755); err != nil {
				t.Fatalf("Failed to create directory %s: %v", path, err)
			}
			continue
		}
		if err := fsys.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create parent directories for %s: %v", path, err)
		}
		if err := afero.WriteFile(fsys, path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to create file %s: %v", path, err)
		}
	}
}

// ReadTree returns every regular file under root keyed by its
// slash-separated relative path. A missing root yields an empty map.
func ReadTree(t *testing.T, fsys afero.Fs, root string) map[string]string {
	t.Helper()

	files := make(map[string]string)
	if ok, _ := afero.Exists(fsys, root); !ok {
		return files
	}

	err := afero.Walk(fsys, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		data, err := afero.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to read tree %s: %v", root, err)
	}
	return files
}

// Package scaffold writes the built-in starter template into a template
// root so a fresh installation has something to provision.
package scaffold

import (
	"embed"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	perrors "github.com/kabkimd/userprov/pkg/errors"
	"github.com/kabkimd/userprov/pkg/filesystem"
	"github.com/kabkimd/userprov/pkg/logging"
)

//go:embed p5js
var starter embed.FS

const starterRoot = "p5js"

// Result is the outcome for one starter file.
type Result struct {
	Path    string
	Written bool
}

// Files lists the starter file names in sorted order.
func Files() []string {
	entries, err := fs.ReadDir(starter, starterRoot)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

// Scaffold writes the starter files into dir, creating it if needed.
// Existing files are kept unless force is set.
func Scaffold(fsys afero.Fs, dir string, force bool) ([]Result, error) {
	logger := logging.GetLogger("scaffold")

	if _, err := filesystem.EnsureDir(fsys, dir, 0755); err != nil {
		return nil, perrors.Wrap(err, perrors.ErrFilesystem, "cannot create template directory").
			WithDetail(perrors.DetailPath, dir)
	}

	names := Files()
	results := make([]Result, 0, len(names))
	for _, name := range names {
		target := filepath.Join(dir, name)

		if !force {
			_, err := fsys.Stat(target)
			if err == nil {
				logger.Debug().Str("path", target).Msg("Keeping existing file")
				results = append(results, Result{Path: target})
				continue
			}
			if !errors.Is(err, os.ErrNotExist) {
				return results, perrors.Wrap(err, perrors.ErrFilesystem, "cannot stat template file").
					WithDetail(perrors.DetailPath, target)
			}
		}

		data, err := starter.ReadFile(path.Join(starterRoot, name))
		if err != nil {
			return results, perrors.Wrap(err, perrors.ErrInternal, "cannot read embedded starter file").
				WithDetail(perrors.DetailPath, name)
		}
		if err := afero.WriteFile(fsys, target, data, 0644); err != nil {
			return results, perrors.Wrap(err, perrors.ErrFilesystem, "cannot write template file").
				WithDetail(perrors.DetailPath, target)
		}

		logger.Info().Str("path", target).Msg("Wrote starter file")
		results = append(results, Result{Path: target, Written: true})
	}

	return results, nil
}

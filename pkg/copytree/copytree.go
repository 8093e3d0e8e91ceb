package copytree

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	perrors "github.com/kabkimd/userprov/pkg/errors"
	"github.com/kabkimd/userprov/pkg/logging"
)

// Action describes what a merge-copy did, or would do, with one entry.
type Action string

const (
	ActionCreate    Action = "create"
	ActionMerge     Action = "merge"
	ActionOverwrite Action = "overwrite"
	ActionSkip      Action = "skip"
)

// Event is reported for every directory and file visited.
type Event struct {
	Source      string
	Destination string
	IsDir       bool
	Action      Action
	Size        int64
}

// Options controls a merge-copy.
type Options struct {
	// DryRun walks the source and reports events without writing anything.
	DryRun bool

	// OnEntry, when set, is called once per visited entry.
	OnEntry func(Event)
}

// Stats counts the work done by a merge-copy.
type Stats struct {
	DirsCreated int
	DirsMerged  int
	FilesCopied int
	BytesCopied int64
	Skipped     int
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.DirsCreated += other.DirsCreated
	s.DirsMerged += other.DirsMerged
	s.FilesCopied += other.FilesCopied
	s.BytesCopied += other.BytesCopied
	s.Skipped += other.Skipped
}

type copier struct {
	fs     afero.Fs
	opts   Options
	stats  Stats
	logger zerolog.Logger
}

func newCopier(fsys afero.Fs, opts Options) *copier {
	return &copier{fs: fsys, opts: opts, logger: logging.GetLogger("copytree")}
}

// MergeCopy recursively copies the directory src into dst.
func MergeCopy(fsys afero.Fs, src, dst string, opts Options) (Stats, error) {
	info, err := fsys.Stat(src)
	if err != nil {
		return Stats{}, perrors.Wrap(err, perrors.ErrFilesystem, "cannot read source directory").
			WithDetail(perrors.DetailPath, src)
	}
	if !info.IsDir() {
		return Stats{}, perrors.New(perrors.ErrFilesystem, "source is not a directory").
			WithDetail(perrors.DetailPath, src)
	}

	c := newCopier(fsys, opts)
	err = c.copyDir(src, dst, info)
	return c.stats, err
}

// CopyFile copies a single regular file from src to dst, replacing dst if it
// exists, and returns the number of bytes written.
func CopyFile(fsys afero.Fs, src, dst string, opts Options) (Stats, error) {
	info, err := fsys.Stat(src)
	if err != nil {
		return Stats{}, perrors.Wrap(err, perrors.ErrFilesystem, "cannot read source file").
			WithDetail(perrors.DetailPath, src)
	}
	if info.IsDir() {
		return Stats{}, perrors.New(perrors.ErrFilesystem, "source is a directory").
			WithDetail(perrors.DetailPath, src)
	}

	c := newCopier(fsys, opts)
	err = c.copyFile(src, dst, info)
	return c.stats, err
}

func (c *copier) emit(ev Event) {
	if c.opts.OnEntry != nil {
		c.opts.OnEntry(ev)
	}
}

func (c *copier) copyDir(src, dst string, info os.FileInfo) error {
	action, err := c.ensureDir(src, dst, info)
	if err != nil {
		return err
	}
	c.emit(Event{Source: src, Destination: dst, IsDir: true, Action: action})

	entries, err := afero.ReadDir(c.fs, src)
	if err != nil {
		return perrors.Wrap(err, perrors.ErrFilesystem, "cannot list source directory").
			WithDetail(perrors.DetailPath, src)
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		// ReadDir reports links unresolved; Stat follows them.
		entryInfo, err := c.fs.Stat(srcPath)
		if err != nil {
			return perrors.Wrap(err, perrors.ErrFilesystem, "cannot stat source entry").
				WithDetail(perrors.DetailPath, srcPath)
		}

		switch {
		case entryInfo.IsDir():
			if err := c.copyDir(srcPath, dstPath, entryInfo); err != nil {
				return err
			}
		case entryInfo.Mode().IsRegular():
			if err := c.copyFile(srcPath, dstPath, entryInfo); err != nil {
				return err
			}
		default:
			c.logger.Warn().
				Str("path", srcPath).
				Str("mode", entryInfo.Mode().String()).
				Msg("Skipping non-regular file")
			c.stats.Skipped++
			c.emit(Event{Source: srcPath, Destination: dstPath, Action: ActionSkip})
		}
	}

	return nil
}

func (c *copier) ensureDir(src, dst string, info os.FileInfo) (Action, error) {
	existing, err := c.fs.Stat(dst)
	switch {
	case err == nil:
		if !existing.IsDir() {
			return "", perrors.New(perrors.ErrFilesystem, "destination exists and is not a directory").
				WithDetail(perrors.DetailPath, dst).
				WithDetail("source", src)
		}
		if os.SameFile(info, existing) {
			return "", perrors.New(perrors.ErrFilesystem, "destination is the source directory").
				WithDetail(perrors.DetailPath, dst).
				WithDetail("source", src)
		}
		c.stats.DirsMerged++
		return ActionMerge, nil
	case !errors.Is(err, os.ErrNotExist):
		return "", perrors.Wrap(err, perrors.ErrFilesystem, "cannot stat destination directory").
			WithDetail(perrors.DetailPath, dst)
	}

	if !c.opts.DryRun {
		if err := c.fs.MkdirAll(dst, info.Mode().Perm()|0700); err != nil {
			return "", perrors.Wrap(err, perrors.ErrFilesystem, "cannot create directory").
				WithDetail(perrors.DetailPath, dst)
		}
	}
	c.stats.DirsCreated++
	return ActionCreate, nil
}

func (c *copier) copyFile(src, dst string, info os.FileInfo) error {
	action := ActionCreate

	existing, err := c.lstat(dst)
	switch {
	case err == nil:
		if existing.IsDir() {
			return perrors.New(perrors.ErrFilesystem, "destination exists and is a directory").
				WithDetail(perrors.DetailPath, dst).
				WithDetail("source", src)
		}
		// Hard links and paths reached through a linked parent.
		if os.SameFile(info, existing) {
			return perrors.New(perrors.ErrFilesystem, "destination is the source file").
				WithDetail(perrors.DetailPath, dst).
				WithDetail("source", src)
		}
		action = ActionOverwrite
		if !c.opts.DryRun {
			if err := c.prepareOverwrite(dst, existing); err != nil {
				return err
			}
		}
	case !errors.Is(err, os.ErrNotExist):
		return perrors.Wrap(err, perrors.ErrFilesystem, "cannot stat destination file").
			WithDetail(perrors.DetailPath, dst)
	}

	var written int64
	if c.opts.DryRun {
		written = info.Size()
	} else {
		written, err = c.write(src, dst, info)
		if err != nil {
			return err
		}
	}

	c.stats.FilesCopied++
	c.stats.BytesCopied += written
	c.emit(Event{Source: src, Destination: dst, Action: action, Size: written})
	return nil
}

func (c *copier) write(src, dst string, info os.FileInfo) (int64, error) {
	in, err := c.fs.Open(src)
	if err != nil {
		return 0, perrors.Wrap(err, perrors.ErrFilesystem, "cannot open source file").
			WithDetail(perrors.DetailPath, src)
	}
	defer func() { _ = in.Close() }()

	perm := info.Mode().Perm()
	out, err := c.fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm|0200)
	if err != nil {
		return 0, perrors.Wrap(err, perrors.ErrFilesystem, "cannot open destination file").
			WithDetail(perrors.DetailPath, dst)
	}

	written, err := io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return written, perrors.Wrap(err, perrors.ErrFilesystem, "cannot copy file").
			WithDetail(perrors.DetailPath, dst).
			WithDetail("source", src)
	}

	// OpenFile only applies perm on creation.
	if err := c.fs.Chmod(dst, perm); err != nil {
		return written, perrors.Wrap(err, perrors.ErrFilesystem, "cannot set file mode").
			WithDetail(perrors.DetailPath, dst)
	}
	if err := c.fs.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return written, perrors.Wrap(err, perrors.ErrFilesystem, "cannot set modification time").
			WithDetail(perrors.DetailPath, dst)
	}

	return written, nil
}

// prepareOverwrite makes an existing destination file writable, or removes
// it when it is a symlink so the copy never writes through the link.
func (c *copier) prepareOverwrite(dst string, existing os.FileInfo) error {
	if existing.Mode()&os.ModeSymlink != 0 {
		if err := c.fs.Remove(dst); err != nil {
			return perrors.Wrap(err, perrors.ErrFilesystem, "cannot replace symlink").
				WithDetail(perrors.DetailPath, dst)
		}
		return nil
	}
	if perm := existing.Mode().Perm(); perm&0200 == 0 {
		if err := c.fs.Chmod(dst, perm|0200); err != nil {
			return perrors.Wrap(err, perrors.ErrFilesystem, "cannot make destination writable").
				WithDetail(perrors.DetailPath, dst)
		}
	}
	return nil
}

func (c *copier) lstat(path string) (os.FileInfo, error) {
	if l, ok := c.fs.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(path)
		return info, err
	}
	return c.fs.Stat(path)
}

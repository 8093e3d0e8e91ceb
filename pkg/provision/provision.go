package provision

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/kabkimd/userprov/pkg/copytree"
	perrors "github.com/kabkimd/userprov/pkg/errors"
	"github.com/kabkimd/userprov/pkg/filesystem"
	"github.com/kabkimd/userprov/pkg/logging"
	"github.com/kabkimd/userprov/pkg/types"
	"github.com/kabkimd/userprov/pkg/users"
)

// Default locations, relative to the working directory.
const (
	DefaultUserListPath  = "users.json"
	DefaultTemplateRoot  = "template"
	DefaultBaseOutputDir = "users"
)

const dirPerm = 0755

// Options configures a provisioning run.
type Options struct {
	UserListPath  string
	TemplateRoot  string
	BaseOutputDir string

	DryRun          bool
	ContinueOnError bool

	// OnEntry receives every copy event, tagged with the user being provisioned.
	OnEntry func(username string, ev copytree.Event)
}

func (o Options) withDefaults() Options {
	if o.UserListPath == "" {
		o.UserListPath = DefaultUserListPath
	}
	if o.TemplateRoot == "" {
		o.TemplateRoot = DefaultTemplateRoot
	}
	if o.BaseOutputDir == "" {
		o.BaseOutputDir = DefaultBaseOutputDir
	}
	return o
}

// Provisioner performs provisioning runs against a filesystem.
type Provisioner struct {
	fs     afero.Fs
	logger zerolog.Logger
}

// New creates a Provisioner working on fsys.
func New(fsys afero.Fs) *Provisioner {
	return &Provisioner{
		fs:     fsys,
		logger: logging.GetLogger("provision"),
	}
}

// Run loads the user list and provisions every user. The returned summary
// is non-nil whenever loading succeeded, including on failure, and then
// describes the users handled before the run stopped.
func (p *Provisioner) Run(opts Options) (*types.ProvisionSummary, error) {
	opts = opts.withDefaults()
	defer logging.LogOperationStart(p.logger, "provision")()

	records, err := users.Load(p.fs, opts.UserListPath)
	if err != nil {
		return nil, err
	}
	return p.Provision(records, opts)
}

// Provision provisions an already loaded user list.
func (p *Provisioner) Provision(records []types.UserRecord, opts Options) (*types.ProvisionSummary, error) {
	opts = opts.withDefaults()

	for i, r := range records {
		if err := users.ValidateUsername(r.Username); err != nil {
			return nil, perrors.Wrapf(err, perrors.ErrInput, "record %d has no usable username", i).
				WithDetail(perrors.DetailIndex, i)
		}
	}

	if err := p.checkTemplate(opts); err != nil {
		return nil, err
	}

	summary := &types.ProvisionSummary{
		BaseOutputDir: opts.BaseOutputDir,
		TemplateRoot:  opts.TemplateRoot,
		DryRun:        opts.DryRun,
		Users:         make([]types.UserResult, 0, len(records)),
	}

	created, err := p.ensureDir(opts.BaseOutputDir, opts.DryRun)
	if err != nil {
		return summary, err
	}
	summary.BaseCreated = created

	p.logger.Info().
		Int("users", len(records)).
		Str("template", opts.TemplateRoot).
		Str("output", opts.BaseOutputDir).
		Bool("dry_run", opts.DryRun).
		Msg("Provisioning users")

	var failures []error
	for _, record := range records {
		result := p.provisionUser(record.Username, opts)
		summary.Users = append(summary.Users, result)

		if result.Err == nil {
			continue
		}
		if !opts.ContinueOnError {
			return summary, result.Err
		}
		failures = append(failures, result.Err)
	}

	if len(failures) > 0 {
		failed := summary.FailedUsers()
		names := make([]string, 0, len(failed))
		for _, f := range failed {
			names = append(names, f.Username)
		}
		return summary, perrors.Wrapf(errors.Join(failures...), perrors.ErrFilesystem,
			"%d of %d users failed to provision", len(failures), len(records)).
			WithDetail("users", names)
	}

	p.logger.Info().
		Int("users", len(summary.Users)).
		Int("files", summary.TotalFiles()).
		Int64("bytes", summary.TotalBytes()).
		Msg("Provisioning complete")

	return summary, nil
}

// checkTemplate verifies the template root before anything is written.
func (p *Provisioner) checkTemplate(opts Options) error {
	info, err := p.fs.Stat(opts.TemplateRoot)
	if err != nil {
		msg := "cannot read template root"
		if errors.Is(err, os.ErrNotExist) {
			msg = "template root not found"
		}
		return perrors.Wrap(err, perrors.ErrFilesystem, msg).
			WithDetail(perrors.DetailPath, opts.TemplateRoot)
	}
	if !info.IsDir() {
		return perrors.New(perrors.ErrFilesystem, "template root is not a directory").
			WithDetail(perrors.DetailPath, opts.TemplateRoot)
	}
	if filesystem.WithinResolved(p.fs, opts.TemplateRoot, opts.BaseOutputDir) {
		return perrors.New(perrors.ErrFilesystem, "output directory lies inside the template root").
			WithDetail(perrors.DetailPath, opts.BaseOutputDir).
			WithDetail("template", opts.TemplateRoot)
	}
	return nil
}

func (p *Provisioner) ensureDir(path string, dryRun bool) (bool, error) {
	if dryRun {
		info, err := p.fs.Stat(path)
		switch {
		case err == nil:
			if !info.IsDir() {
				return false, perrors.Wrap(filesystem.ErrNotDirectory, perrors.ErrFilesystem, "cannot create directory").
					WithDetail(perrors.DetailPath, path)
			}
			return false, nil
		case errors.Is(err, os.ErrNotExist):
			return true, nil
		default:
			return false, perrors.Wrap(err, perrors.ErrFilesystem, "cannot stat directory").
				WithDetail(perrors.DetailPath, path)
		}
	}

	created, err := filesystem.EnsureDir(p.fs, path, dirPerm)
	if err != nil {
		return false, perrors.Wrap(err, perrors.ErrFilesystem, "cannot create directory").
			WithDetail(perrors.DetailPath, path)
	}
	return created, nil
}

func (p *Provisioner) provisionUser(username string, opts Options) types.UserResult {
	dest := filepath.Join(opts.BaseOutputDir, username)
	logger := p.logger.With().Str("user", username).Str("destination", dest).Logger()

	result := types.UserResult{Username: username, Destination: dest}
	fail := func(err error) types.UserResult {
		var provErr *perrors.ProvisionError
		if errors.As(err, &provErr) {
			provErr.WithDetail(perrors.DetailUser, username)
		}
		result.Err = err
		result.Error = err.Error()
		logger.Error().Err(err).Msg("Failed to provision user")
		return result
	}

	if filesystem.WithinResolved(p.fs, dest, opts.TemplateRoot) {
		return fail(perrors.New(perrors.ErrFilesystem, "user destination overlaps the template root").
			WithDetail(perrors.DetailPath, dest).
			WithDetail("template", opts.TemplateRoot))
	}

	created, err := p.ensureDir(dest, opts.DryRun)
	if err != nil {
		return fail(err)
	}
	if created {
		result.DirsCreated++
	}

	entries, err := afero.ReadDir(p.fs, opts.TemplateRoot)
	if err != nil {
		return fail(perrors.Wrap(err, perrors.ErrFilesystem, "cannot list template root").
			WithDetail(perrors.DetailPath, opts.TemplateRoot))
	}

	copyOpts := copytree.Options{DryRun: opts.DryRun}
	if opts.OnEntry != nil {
		copyOpts.OnEntry = func(ev copytree.Event) { opts.OnEntry(username, ev) }
	}

	var stats copytree.Stats
	record := func() {
		result.DirsCreated += stats.DirsCreated
		result.FilesCopied = stats.FilesCopied
		result.BytesCopied = stats.BytesCopied
	}

	for _, entry := range entries {
		src := filepath.Join(opts.TemplateRoot, entry.Name())
		dst := filepath.Join(dest, entry.Name())

		info, err := p.fs.Stat(src)
		if err != nil {
			return fail(perrors.Wrap(err, perrors.ErrFilesystem, "cannot stat template entry").
				WithDetail(perrors.DetailPath, src))
		}

		var entryStats copytree.Stats
		switch {
		case info.IsDir():
			entryStats, err = copytree.MergeCopy(p.fs, src, dst, copyOpts)
		case info.Mode().IsRegular():
			entryStats, err = copytree.CopyFile(p.fs, src, dst, copyOpts)
		default:
			logger.Warn().Str("path", src).Msg("Skipping non-regular template entry")
			continue
		}
		stats.Add(entryStats)
		if err != nil {
			record()
			return fail(err)
		}
	}
	record()

	logger.Info().
		Int("files", result.FilesCopied).
		Int("dirs_created", result.DirsCreated).
		Int64("bytes", result.BytesCopied).
		Msg("Provisioned user")

	return result
}

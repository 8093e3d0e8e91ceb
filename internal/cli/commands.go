package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"

	"github.com/kabkimd/userprov/internal/version"
	"github.com/kabkimd/userprov/pkg/config"
	"github.com/kabkimd/userprov/pkg/copytree"
	"github.com/kabkimd/userprov/pkg/display"
	perrors "github.com/kabkimd/userprov/pkg/errors"
	"github.com/kabkimd/userprov/pkg/filesystem"
	"github.com/kabkimd/userprov/pkg/logging"
	"github.com/kabkimd/userprov/pkg/migrate"
	"github.com/kabkimd/userprov/pkg/provision"
	"github.com/kabkimd/userprov/pkg/scaffold"
	"github.com/kabkimd/userprov/pkg/tree"
	"github.com/kabkimd/userprov/pkg/users"
)

// flagKeys maps persistent flags to the config keys they override.
var flagKeys = map[string]string{
	"users":      "paths.users",
	"template":   "paths.template",
	"output":     "paths.output",
	"dry-run":    "provision.dry_run",
	"keep-going": "provision.continue_on_error",
}

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	var verbosity int

	rootCmd := &cobra.Command{
		Use:     "userprov",
		Short:   MsgRootShort,
		Long:    MsgRootLong,
		Example: MsgProvisionExample,
		Version: version.Version,
		Args:    cobra.NoArgs,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupLogger(verbosity)
			display.Configure(cmd.OutOrStdout())
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		RunE:          runProvision,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		DisableAutoGenTag: true,
	}

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.CountVarP(&verbosity, "verbose", "v", MsgFlagVerbose)
	flags.Bool("dry-run", false, MsgFlagDryRun)
	flags.String("config", "", MsgFlagConfig)
	flags.String("users", provision.DefaultUserListPath, MsgFlagUsers)
	flags.String("template", provision.DefaultTemplateRoot, MsgFlagTemplate)
	flags.String("output", provision.DefaultBaseOutputDir, MsgFlagOutput)
	flags.Bool("keep-going", false, MsgFlagKeepGoing)

	rootCmd.AddCommand(newProvisionCmd())
	rootCmd.AddCommand(newInitTemplateCmd())
	rootCmd.AddCommand(newTreeCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newGenConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newManCmd())

	return rootCmd
}

// loadConfig layers the configuration and applies the flags that were set
// explicitly on the command line.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	overrides := make(map[string]interface{})
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		overrides[key] = f.Value.String()
	}

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(config.LoadOptions{
		ConfigFile: configFile,
		Overrides:  overrides,
	})
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("source", cfg.Source).
		Str("users", cfg.Paths.Users).
		Str("template", cfg.Paths.Template).
		Str("output", cfg.Paths.Output).
		Msg("Configuration loaded")
	return cfg, nil
}

func newProvisionCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "provision",
		Short:   MsgProvisionShort,
		Long:    MsgRootLong,
		Example: MsgProvisionExample,
		Args:    cobra.NoArgs,
		RunE:    runProvision,
	}
}

func runProvision(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	opts := provision.Options{
		UserListPath:    cfg.Paths.Users,
		TemplateRoot:    cfg.Paths.Template,
		BaseOutputDir:   cfg.Paths.Output,
		DryRun:          cfg.Provision.DryRun,
		ContinueOnError: cfg.Provision.ContinueOnError,
	}
	if opts.DryRun {
		opts.OnEntry = func(username string, ev copytree.Event) {
			fmt.Fprintln(out, display.RenderEvent(username, ev))
		}
	}

	summary, err := provision.New(filesystem.NewOS()).Run(opts)
	if summary != nil {
		fmt.Fprint(out, display.RenderSummary(summary))
	}
	return err
}

func newInitTemplateCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init-template [dir]",
		Short: MsgInitTemplateShort,
		Long: `init-template writes index.html, style.css and sketch.js, a p5.js starter
sketch, into the template directory. Existing files are kept unless --force
is given. The directory defaults to the configured template path.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			dir := cfg.Paths.Template
			if len(args) == 1 {
				dir = args[0]
			}

			results, err := scaffold.Scaffold(filesystem.NewOS(), dir, force)
			out := cmd.OutOrStdout()
			for _, r := range results {
				if r.Written {
					fmt.Fprintf(out, MsgStarterWritten, r.Path)
				} else {
					fmt.Fprintf(out, MsgStarterKept, r.Path)
				}
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(out, MsgTemplateReady, dir)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, MsgFlagForce)
	return cmd
}

func newTreeCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tree [username]",
		Short: MsgTreeShort,
		Long: `tree lists the base output directory, or a single user's directory, as an
indented tree with file sizes. With --json the same tree is printed as
{name, path, isDirectory, size, children} objects.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			root := cfg.Paths.Output
			if len(args) == 1 {
				root, err = userDir(cfg.Paths.Output, args[0])
				if err != nil {
					return err
				}
			}

			node, err := tree.Build(filesystem.NewOS(), root)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(node)
			}

			fmt.Fprintln(out, tree.Render(node))
			files, dirs := node.Count()
			fmt.Fprintf(out, MsgTreeCountsFormat, dirs, files)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, MsgFlagJSON)
	return cmd
}

// userDir resolves a user's directory below base and refuses names that
// would leave it.
func userDir(base, username string) (string, error) {
	if err := users.ValidateUsername(username); err != nil {
		return "", perrors.Wrap(err, perrors.ErrInput, "invalid username").
			WithDetail(perrors.DetailUser, username)
	}
	dir := filepath.Join(base, username)
	if !filesystem.Within(base, dir) {
		return "", perrors.New(perrors.ErrInput, "username resolves outside the output directory").
			WithDetail(perrors.DetailUser, username).
			WithDetail(perrors.DetailPath, dir)
	}
	return dir, nil
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: MsgMigrateShort,
		Long:  MsgMigrateLong,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			records, err := users.Load(filesystem.NewOS(), cfg.Paths.Users)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if cfg.Provision.DryRun {
				fmt.Fprintf(out, MsgMigrateDryRun, len(records), cfg.Database.Table)
				return nil
			}

			ctx := cmd.Context()
			db, err := migrate.Open(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			m, err := migrate.New(db, cfg.Database.Table)
			if err != nil {
				return err
			}

			result, err := m.Migrate(ctx, records)
			fmt.Fprint(out, display.RenderMigration(result))
			if err != nil {
				return err
			}
			if len(result.Failures) > 0 {
				return perrors.Newf(perrors.ErrDatabase, "%d of %d users failed to migrate",
					len(result.Failures), result.Total)
			}
			return nil
		},
	}
}

func newGenConfigCmd() *cobra.Command {
	var write bool

	cmd := &cobra.Command{
		Use:   "genconfig",
		Short: MsgGenConfigShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			content := config.GenerateConfigContent()
			if !write {
				fmt.Fprint(cmd.OutOrStdout(), content)
				return nil
			}

			path := config.ConfigFileNames[0]
			if _, err := os.Stat(path); err == nil {
				return perrors.New(perrors.ErrConfig, "config file already exists").
					WithDetail(perrors.DetailPath, path)
			}
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				return perrors.Wrap(err, perrors.ErrFilesystem, "cannot write config file").
					WithDetail(perrors.DetailPath, path)
			}
			fmt.Fprintf(cmd.OutOrStdout(), MsgConfigWritten, path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&write, "write", "w", false, MsgFlagWrite)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: MsgVersionShort,
		Long:  MsgVersionLong,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, MsgVersionFormat, version.Version)
			if version.Commit != "" {
				fmt.Fprintf(out, MsgCommitFormat, version.Commit)
			}
			if version.Date != "" {
				fmt.Fprintf(out, MsgBuiltFormat, version.Date)
			}
		},
	}
}

func newManCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "man [dir]",
		Short:  MsgManShort,
		Args:   cobra.MaximumNArgs(1),
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "man"
			if len(args) == 1 {
				dir = args[0]
			}
			if err := os.MkdirAll(dir, 0755); err != nil {
				return perrors.Wrap(err, perrors.ErrFilesystem, "cannot create man directory").
					WithDetail(perrors.DetailPath, dir)
			}

			header := &doc.GenManHeader{
				Title:   "USERPROV",
				Section: "1",
				Source:  "userprov " + version.Version,
				Manual:  "userprov manual",
			}
			if err := doc.GenManTree(cmd.Root(), header, dir); err != nil {
				return perrors.Wrap(err, perrors.ErrInternal, "cannot generate man pages")
			}
			fmt.Fprintf(cmd.OutOrStdout(), MsgManWritten, dir)
			return nil
		},
	}
}

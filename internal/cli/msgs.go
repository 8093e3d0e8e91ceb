package cli

import (
	_ "embed"
	"strings"
)

// Short messages (one-liners)
const (
	// Command descriptions
	MsgRootShort         = "Provision per-user directories from a template"
	MsgProvisionShort    = "Copy the template into every user's directory"
	MsgInitTemplateShort = "Write the built-in p5.js starter into the template directory"
	MsgTreeShort         = "Show the provisioned directory tree"
	MsgMigrateShort      = "Upsert the user list into the MySQL auth table"
	MsgGenConfigShort    = "Print or write a commented configuration file"
	MsgVersionShort      = "Print version information"
	MsgVersionLong       = "Print detailed version information including commit hash and build date"
	MsgManShort          = "Generate man pages"

	// Status messages
	MsgStarterWritten   = "  ✓ %s\n"
	MsgStarterKept      = "  - %s (kept, use --force to overwrite)\n"
	MsgTemplateReady    = "Template ready in %s\n"
	MsgConfigWritten    = "Wrote %s\n"
	MsgManWritten       = "Wrote man pages to %s\n"
	MsgMigrateDryRun    = "DRY RUN MODE - would upsert %d users into %s\n"
	MsgTreeCountsFormat = "%d directories, %d files\n"

	// Version output
	MsgVersionFormat = "userprov version %s\n"
	MsgCommitFormat  = "Commit: %s\n"
	MsgBuiltFormat   = "Built:  %s\n"

	// Flag descriptions
	MsgFlagVerbose   = "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)"
	MsgFlagDryRun    = "Preview changes without executing them"
	MsgFlagConfig    = "Config file (default: userprov.toml in the working directory)"
	MsgFlagUsers     = "User list file (.json, .yaml or .toml)"
	MsgFlagTemplate  = "Template directory"
	MsgFlagOutput    = "Base output directory"
	MsgFlagKeepGoing = "Continue with the next user when one fails"
	MsgFlagForce     = "Overwrite existing files"
	MsgFlagJSON      = "Print the tree as JSON"
	MsgFlagWrite     = "Write userprov.toml instead of printing"
)

// Long messages from embedded files
var (
	//go:embed msgs/root-long.txt
	msgRootLongRaw string
	MsgRootLong    = strings.TrimSpace(msgRootLongRaw)

	//go:embed msgs/provision-example.txt
	msgProvisionExampleRaw string
	MsgProvisionExample    = strings.TrimRight(msgProvisionExampleRaw, "\n")

	//go:embed msgs/migrate-long.txt
	msgMigrateLongRaw string
	MsgMigrateLong    = strings.TrimSpace(msgMigrateLongRaw)
)

package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	perrors "github.com/kabkimd/userprov/pkg/errors"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "USERPROV_"

// ConfigFileNames are searched, in order, in the working directory.
var ConfigFileNames = []string{"userprov.toml", ".userprov.toml"}

// Config is the complete userprov configuration.
type Config struct {
	Paths     Paths     `koanf:"paths"`
	Provision Provision `koanf:"provision"`
	Database  Database  `koanf:"database"`

	// Source is the config file that was loaded, if any.
	Source string `koanf:"-"`
}

// Paths locates the inputs and the output of a provisioning run.
type Paths struct {
	Users    string `koanf:"users"`
	Template string `koanf:"template"`
	Output   string `koanf:"output"`
}

// Provision holds run behaviour switches.
type Provision struct {
	ContinueOnError bool `koanf:"continue_on_error"`
	DryRun          bool `koanf:"dry_run"`
}

// Database configures the MySQL connection used by migrate.
type Database struct {
	Host     string        `koanf:"host"`
	Port     int           `koanf:"port"`
	User     string        `koanf:"user"`
	Password string        `koanf:"password"`
	Name     string        `koanf:"name"`
	Table    string        `koanf:"table"`
	Timeout  time.Duration `koanf:"timeout"`
}

// LoadOptions selects the sources Load reads.
type LoadOptions struct {
	// ConfigFile is an explicit config file. It must exist.
	ConfigFile string

	// Dir is searched for ConfigFileNames when ConfigFile is empty.
	Dir string

	// Overrides are dotted keys (e.g. "paths.template") applied last.
	Overrides map[string]interface{}
}

// Load builds the configuration from defaults, file, environment and
// overrides.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	// 1. Embedded defaults
	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return nil, perrors.Wrap(err, perrors.ErrConfig, "failed to load defaults")
	}

	// 2. Config file
	source, err := findConfigFile(opts)
	if err != nil {
		return nil, err
	}
	if source != "" {
		if err := k.Load(file.Provider(source), toml.Parser()); err != nil {
			return nil, perrors.Wrap(err, perrors.ErrConfig, "failed to load config file").
				WithDetail(perrors.DetailPath, source)
		}
	}

	// 3. Environment
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, perrors.Wrap(err, perrors.ErrConfig, "failed to load environment")
	}

	// 4. Overrides
	if len(opts.Overrides) > 0 {
		if err := k.Load(confmap.Provider(opts.Overrides, "."), nil); err != nil {
			return nil, perrors.Wrap(err, perrors.ErrConfig, "failed to apply overrides")
		}
	}

	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, perrors.Wrap(err, perrors.ErrConfig, "failed to unmarshal configuration")
	}
	cfg.Source = source

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would make every command fail.
func (c *Config) Validate() error {
	for key, value := range map[string]string{
		"paths.users":    c.Paths.Users,
		"paths.template": c.Paths.Template,
		"paths.output":   c.Paths.Output,
	} {
		if strings.TrimSpace(value) == "" {
			return perrors.Newf(perrors.ErrConfig, "%s must not be empty", key).
				WithDetail("key", key)
		}
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return perrors.Newf(perrors.ErrConfig, "database.port %d is out of range", c.Database.Port).
			WithDetail("key", "database.port")
	}
	return nil
}

// envKey maps USERPROV_SECTION_SOME_KEY to section.some_key.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, rest, found := strings.Cut(key, "_")
	if !found {
		return key
	}
	return section + "." + rest
}

func findConfigFile(opts LoadOptions) (string, error) {
	if opts.ConfigFile != "" {
		if _, err := os.Stat(opts.ConfigFile); err != nil {
			return "", perrors.Wrap(err, perrors.ErrConfig, "config file not readable").
				WithDetail(perrors.DetailPath, opts.ConfigFile)
		}
		return opts.ConfigFile, nil
	}

	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	for _, name := range ConfigFileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", nil
}

package users

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	perrors "github.com/kabkimd/userprov/pkg/errors"
	"github.com/kabkimd/userprov/pkg/logging"
	"github.com/kabkimd/userprov/pkg/types"
)

// Format identifies the encoding of a user list.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// DetectFormat picks the format from the file extension. Anything that is
// not YAML or TOML is treated as JSON.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	default:
		return FormatJSON
	}
}

// Load reads and validates the user list at path. Every failure is an
// INPUT error naming the file.
func Load(fsys afero.Fs, path string) ([]types.UserRecord, error) {
	logger := logging.GetLogger("users")

	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		msg := "cannot read user list"
		if errors.Is(err, os.ErrNotExist) {
			msg = "user list not found"
		}
		return nil, perrors.Wrap(err, perrors.ErrInput, msg).
			WithDetail(perrors.DetailPath, path)
	}

	format := DetectFormat(path)
	records, err := Parse(data, format)
	if err != nil {
		var provErr *perrors.ProvisionError
		if errors.As(err, &provErr) {
			return nil, provErr.WithDetail(perrors.DetailPath, path)
		}
		return nil, err
	}

	logger.Debug().
		Str("path", path).
		Str("format", string(format)).
		Int("count", len(records)).
		Msg("Loaded user list")

	return records, nil
}

// Parse decodes a user list in the given format and validates every record.
// Only username is strictly typed; mistyped optional fields are dropped.
func Parse(data []byte, format Format) ([]types.UserRecord, error) {
	var (
		items []interface{}
		err   error
	)

	switch format {
	case FormatYAML:
		items, err = parseYAML(data)
	case FormatTOML:
		items, err = parseTOML(data)
	default:
		items, err = parseJSON(data)
	}
	if err != nil {
		return nil, err
	}

	records := make([]types.UserRecord, 0, len(items))
	for i, item := range items {
		fields, ok := item.(map[string]interface{})
		if !ok {
			return nil, perrors.Newf(perrors.ErrInput, "record %d is not an object", i).
				WithDetail(perrors.DetailIndex, i)
		}

		record, err := decodeRecord(fields)
		if err == nil {
			err = ValidateUsername(record.Username)
		}
		if err != nil {
			return nil, perrors.Wrapf(err, perrors.ErrInput, "record %d has no usable username", i).
				WithDetail(perrors.DetailIndex, i)
		}
		records = append(records, record)
	}

	return records, nil
}

func parseJSON(data []byte) ([]interface{}, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, perrors.New(perrors.ErrInput, "user list must be a JSON array of objects")
	}

	var items []interface{}
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, perrors.Wrap(err, perrors.ErrInput, "malformed JSON user list")
	}
	return items, nil
}

func parseYAML(data []byte) ([]interface{}, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, perrors.Wrap(err, perrors.ErrInput, "malformed YAML user list")
	}
	if len(node.Content) == 0 || node.Content[0].Kind != yaml.SequenceNode {
		return nil, perrors.New(perrors.ErrInput, "user list must be a YAML sequence of mappings")
	}

	var items []interface{}
	if err := node.Content[0].Decode(&items); err != nil {
		return nil, perrors.Wrap(err, perrors.ErrInput, "malformed YAML user list")
	}
	return items, nil
}

func parseTOML(data []byte) ([]interface{}, error) {
	var doc map[string]interface{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, perrors.Wrap(err, perrors.ErrInput, "malformed TOML user list")
	}

	switch users := doc["users"].(type) {
	case []interface{}:
		return users, nil
	case []map[string]interface{}:
		items := make([]interface{}, 0, len(users))
		for _, u := range users {
			items = append(items, u)
		}
		return items, nil
	case nil:
		return nil, perrors.New(perrors.ErrInput, "TOML user list must define a users array")
	default:
		return nil, perrors.New(perrors.ErrInput, "TOML users must be an array of tables")
	}
}

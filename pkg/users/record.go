package users

import (
	"errors"
	"math"

	"github.com/kabkimd/userprov/pkg/logging"
	"github.com/kabkimd/userprov/pkg/types"
)

// ErrUsernameType is returned for a username that is present but not a string.
var ErrUsernameType = errors.New("username is not a string")

// decodeRecord builds a UserRecord from one decoded list entry. The
// optional fields never fail a record: a value of the wrong type is
// treated as absent and isPublic is taken by truthiness.
func decodeRecord(fields map[string]interface{}) (types.UserRecord, error) {
	var record types.UserRecord

	switch name := fields["username"].(type) {
	case string:
		record.Username = name
	case nil:
	default:
		return record, ErrUsernameType
	}

	record.Password = optionalString(fields, "password", record.Username)
	record.Email = optionalString(fields, "email", record.Username)
	record.FullName = optionalString(fields, "full_name", record.Username)
	record.IsPublic = truthy(fields["isPublic"])
	return record, nil
}

func optionalString(fields map[string]interface{}, key, username string) string {
	value, present := fields[key]
	if !present || value == nil {
		return ""
	}
	s, ok := value.(string)
	if !ok {
		logger := logging.GetLogger("users")
		logger.Debug().
			Str("user", username).
			Str("field", key).
			Msgf("Ignoring %T value", value)
	}
	return s
}

// truthy follows the loose boolean reading of user lists written for the
// account scripts: zero, empty and null are false, everything else is true.
func truthy(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case int:
		return x != 0
	case int64:
		return x != 0
	case uint64:
		return x != 0
	case float64:
		return x != 0 && !math.IsNaN(x)
	default:
		return true
	}
}

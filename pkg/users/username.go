package users

import (
	"errors"
	"strings"
)

var (
	ErrEmptyUsername    = errors.New("username is empty")
	ErrReservedUsername = errors.New("username is a reserved path segment")
	ErrUsernameSegment  = errors.New("username must be a single path segment")
)

// ValidateUsername checks that name can be used verbatim as one directory
// name under the output root.
func ValidateUsername(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyUsername
	}
	if name == "." || name == ".." {
		return ErrReservedUsername
	}
	if strings.ContainsAny(name, `/\`+"\x00") {
		return ErrUsernameSegment
	}
	return nil
}

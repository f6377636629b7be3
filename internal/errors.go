package internal

import (
	"github.com/cockroachdb/errors"
)

// ErrConfiguration marks a table-authoring mistake such as a field without an authorization spec.
var ErrConfiguration = errors.New("configuration error")

// ErrUnauthorized is returned when the acting user may not operate on a row.
var ErrUnauthorized = errors.New("unauthorized")

// ErrNotFound is returned when a table or row cannot be found.
var ErrNotFound = errors.New("not found")

// ConfigErrorf returns an error wrapping ErrConfiguration.
func ConfigErrorf(format string, args ...any) error {
	return errors.WithStackDepth(errors.Mark(errors.Newf(format, args...), ErrConfiguration), 1)
}

// IsConfigError returns true if err was caused by a table-authoring mistake.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

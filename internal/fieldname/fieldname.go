// Package fieldname validates the names schema fields use when they are
// concatenated onto a session's id_prefix to form an OS object identifier.
package fieldname

import (
	"fmt"
	"regexp"
)

var invalidFieldRune = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// Validate reports an error if name contains characters that would make the
// resulting identifier (id_prefix + name) ambiguous or unsafe to use as an
// OS shared-memory object name. Field names are restricted to
// [a-zA-Z0-9_] so that the identifier never contains a path separator or
// other metacharacter beyond the leading "/" the id_prefix already carries.
func Validate(name string) error {
	if name == "" {
		return fmt.Errorf("fieldname: empty field name")
	}
	if invalidFieldRune.MatchString(name) {
		return fmt.Errorf("fieldname: %q contains characters outside [a-zA-Z0-9_]", name)
	}
	return nil
}

// Sanitize strips characters outside [a-zA-Z0-9_], replacing runs of them
// with a single underscore. Used for diagnostic labels (e.g. status-hub
// event tags) where a best-effort normalized name is acceptable instead of
// a hard validation error.
func Sanitize(name string) string {
	if name == "" {
		return "field"
	}
	return invalidFieldRune.ReplaceAllString(name, "_")
}

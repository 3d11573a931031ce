package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by mutations targeting an id that does not exist.
// Reads signal absence by returning nil instead.
var ErrNotFound = errors.New("not found")

// ValidationError reports malformed create/update input. No partial write
// occurs when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// VersionConflictError is returned by UpdateNode when the caller's expected
// version does not match the stored version. The stored row is unchanged;
// callers recover by refetching and retrying.
type VersionConflictError struct {
	ID       string
	Expected int64
	Actual   int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict on %s: expected %d, stored %d", e.ID, e.Expected, e.Actual)
}

// IsVersionConflict reports whether err is (or wraps) a VersionConflictError.
func IsVersionConflict(err error) bool {
	var vc *VersionConflictError
	return errors.As(err, &vc)
}

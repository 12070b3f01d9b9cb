package schedule

import "fmt"

// MaxScheduleFileBytes caps the size of a YAML schedule file read from disk.
const MaxScheduleFileBytes = 5 * 1024 * 1024

// ErrInvalidYAML wraps a YAML syntax/decode failure.
type ErrInvalidYAML struct{ Err error }

func (e *ErrInvalidYAML) Error() string { return fmt.Sprintf("schedule: invalid YAML: %v", e.Err) }
func (e *ErrInvalidYAML) Unwrap() error { return e.Err }

// ErrUnsafeTag is returned when the YAML document uses a custom (non-safe)
// tag, e.g. an attempt at `!!python/object`.
type ErrUnsafeTag struct{ Tag string }

func (e *ErrUnsafeTag) Error() string { return fmt.Sprintf("schedule: unsafe YAML tag %q", e.Tag) }

// ErrFileTooLarge is returned when the schedule file exceeds MaxScheduleFileBytes.
type ErrFileTooLarge struct{ Size int }

func (e *ErrFileTooLarge) Error() string {
	return fmt.Sprintf("schedule: file too large (%d bytes, max %d)", e.Size, MaxScheduleFileBytes)
}

// MalformedDirective names an op or duration string that could not be
// understood. Parsing continues after logging this; it is never fatal.
type MalformedDirective struct {
	Path   string // e.g. "sequences.main[3].padToNext"
	Reason string
}

func (e *MalformedDirective) Error() string {
	return fmt.Sprintf("schedule: malformed directive at %s: %s", e.Path, e.Reason)
}

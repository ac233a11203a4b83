package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means no catalog entry or backing file matched the
	// requested session id.
	ErrNotFound = errors.New("session not found")

	// ErrInvalidInput means a required request field was missing or empty.
	ErrInvalidInput = errors.New("invalid input")
)

// PathMismatchError means a delete/restore path did not textually contain
// the claimed session id. Treated as a security violation, not a typo.
type PathMismatchError struct {
	SessionID string
	Path      string
}

func (e *PathMismatchError) Error() string {
	return fmt.Sprintf("path %q does not contain session id %q", e.Path, e.SessionID)
}

// IOError wraps a filesystem failure with the operation and path.
type IOError struct {
	Op   string // "open", "read", "rename", "stat"
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("io error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// PartialScanError records provider roots that failed during an index
// rebuild. The surviving roots' data is still published.
type PartialScanError struct {
	Failed map[string]error // provider -> first error
}

func (e *PartialScanError) Error() string {
	return fmt.Sprintf("scan failed for %d provider root(s)", len(e.Failed))
}

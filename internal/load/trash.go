package load

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/sessiond-dev/sessiond/internal/scan"
	"github.com/sessiond-dev/sessiond/internal/session"
)

// validatePath rejects any delete/restore whose path does not textually
// contain the claimed session id. This blocks a path-confusion attack
// where a valid id is paired with someone else's file.
func validatePath(sessionID, path string) error {
	if sessionID == "" || path == "" {
		return session.ErrInvalidInput
	}
	if !strings.Contains(filepath.Base(path), sessionID) {
		return &session.PathMismatchError{SessionID: sessionID, Path: path}
	}
	return nil
}

// Trash moves the session file into a sibling .trash directory. The rename
// is atomic on one filesystem; if it cannot complete the file is hard
// deleted instead, keeping the delete contract even across devices.
func Trash(sessionID, path string) error {
	if err := validatePath(sessionID, path); err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return session.ErrNotFound
		}
		return &session.IOError{Op: "stat", Path: path, Err: err}
	}

	trashDir := filepath.Join(filepath.Dir(path), scan.TrashDir)
	if err := os.MkdirAll(trashDir, 0o755); err != nil {
		return &session.IOError{Op: "mkdir", Path: trashDir, Err: err}
	}

	dest := filepath.Join(trashDir, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			return &session.IOError{Op: "rename", Path: path, Err: err}
		}
	}
	return nil
}

// Restore moves a trashed session file back to its original path. path is
// the original (pre-delete) location.
func Restore(sessionID, path string) error {
	if err := validatePath(sessionID, path); err != nil {
		return err
	}

	src := filepath.Join(filepath.Dir(path), scan.TrashDir, filepath.Base(path))
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return session.ErrNotFound
		}
		return &session.IOError{Op: "stat", Path: src, Err: err}
	}
	if _, err := os.Stat(path); err == nil {
		// never clobber a live file with a trashed copy
		return &session.IOError{Op: "rename", Path: path, Err: os.ErrExist}
	}

	if err := os.Rename(src, path); err != nil {
		return &session.IOError{Op: "rename", Path: src, Err: err}
	}
	return nil
}

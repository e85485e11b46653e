// Package fsutil provides utility functions and constants for file system operations.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	pkgerrors "github.com/glorpus-work/datafetch/pkg/errors"
)

// SafeJoin joins name onto base and rejects results that would land outside base.
// It is used for archive entries, whose names are attacker controlled.
func SafeJoin(base, name string) (string, error) {
	cleanBase := filepath.Clean(base)
	target := filepath.Join(cleanBase, filepath.FromSlash(name))
	rel, err := filepath.Rel(cleanBase, target)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, pkgerrors.ErrInvalidPath)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("%s: %w", name, pkgerrors.ErrInvalidPath)
	}
	return target, nil
}

// IsBareFilename reports whether name is a plain file name without directory components.
func IsBareFilename(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && filepath.Base(name) == name
}

// RemoveIfExists removes path, treating a missing file as success.
func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// CreateFilePerm creates a new file with the specified permissions, truncating an existing one.
func CreateFilePerm(name string, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, perm)
}

// AppendFile opens name for appending, failing if it does not exist.
func AppendFile(name string) (*os.File, error) {
	return os.OpenFile(name, os.O_WRONLY|os.O_APPEND, 0)
}

// Package security confines file system access to a configured directory.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathValidator checks that paths resolve inside a configured directory
type PathValidator struct {
	configuredDirectory string
}

// NewPathValidator creates a new path validator for the given directory
func NewPathValidator(configuredDirectory string) (*PathValidator, error) {
	if configuredDirectory == "" {
		return nil, fmt.Errorf("configured directory cannot be empty")
	}

	return &PathValidator{
		configuredDirectory: configuredDirectory,
	}, nil
}

// GetConfiguredDirectory returns the configured directory path
func (v *PathValidator) GetConfiguredDirectory() string {
	return v.configuredDirectory
}

// Resolve returns the absolute, symlink-free form of path. Relative paths are
// taken relative to the configured directory. Paths that leave the directory
// are rejected.
func (v *PathValidator) Resolve(path string) (string, error) {
	path = strings.ReplaceAll(path, "\x00", "")
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(v.configuredDirectory, path)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	realPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return "", fmt.Errorf("cannot access path: %w", err)
	}

	realDir, err := v.realDirectory()
	if err != nil {
		return "", err
	}

	if !within(realPath, realDir) {
		return "", fmt.Errorf("path is outside configured directory: %s", path)
	}

	return realPath, nil
}

// ValidatePath checks if a path is within the configured directory
func (v *PathValidator) ValidatePath(path string) error {
	_, err := v.Resolve(path)
	return err
}

// realDirectory resolves the configured directory, which must exist
func (v *PathValidator) realDirectory() (string, error) {
	absDir, err := filepath.Abs(v.configuredDirectory)
	if err != nil {
		return "", fmt.Errorf("failed to resolve configured directory: %w", err)
	}

	realDir, err := filepath.EvalSymlinks(absDir)
	if err != nil {
		return "", fmt.Errorf("configured directory is not accessible: %w", err)
	}

	info, err := os.Stat(realDir)
	if err != nil {
		return "", fmt.Errorf("configured directory is not accessible: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("configured path is not a directory: %s", v.configuredDirectory)
	}

	return realDir, nil
}

// within reports whether path equals dir or lies below it
func within(path, dir string) bool {
	if path == dir {
		return true
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Package security guards export outputs against clobbering the run they were
// built from.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrProtectedPath is returned when an output path resolves inside an input
// directory.
var ErrProtectedPath = errors.New("output path is inside a protected input directory")

// canonical returns the absolute form of path with symlinks resolved. Paths
// that do not exist yet are resolved through their deepest existing parent,
// so /tmp/link/new.json where link -> /data is reported as /data/new.json.
func canonical(path string) (string, error) {
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		return resolved, nil
	}

	checkPath := absPath
	for {
		parentDir := filepath.Dir(checkPath)
		if parentDir == checkPath {
			// Nothing on the path exists; fall back to the lexical form.
			return absPath, nil
		}
		if resolved, err := filepath.EvalSymlinks(parentDir); err == nil {
			relToParent, _ := filepath.Rel(parentDir, absPath)
			return filepath.Join(resolved, relToParent), nil
		}
		checkPath = parentDir
	}
}

// IsWithinDirectory reports whether filePath resolves to dir or somewhere
// beneath it.
func IsWithinDirectory(filePath, dir string) (bool, error) {
	canonicalPath, err := canonical(filePath)
	if err != nil {
		return false, err
	}
	canonicalDir, err := canonical(dir)
	if err != nil {
		return false, err
	}

	relPath, err := filepath.Rel(canonicalDir, canonicalPath)
	if err != nil {
		return false, nil
	}
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) || filepath.IsAbs(relPath) {
		return false, nil
	}
	return true, nil
}

// ValidateOutputPath rejects an output path that resolves inside any of the
// protected directories.
func ValidateOutputPath(filePath string, protected ...string) error {
	for _, dir := range protected {
		inside, err := IsWithinDirectory(filePath, dir)
		if err != nil {
			return err
		}
		if inside {
			return fmt.Errorf("%w: %s is within %s", ErrProtectedPath, filePath, dir)
		}
	}
	return nil
}

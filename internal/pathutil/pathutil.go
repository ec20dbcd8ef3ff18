// Package pathutil converts between absolute and workspace-relative paths.
//
// lcid keys every cache fingerprint and symbol UID on a path relative to
// the owning workspace root, never on the absolute path, so that a
// workspace checked out at a different location still hits the same
// cache entries and symbol UIDs.
package pathutil

import (
	"path/filepath"
	"strings"
)

// ToRelative converts an absolute path to one relative to rootDir.
// Falls back to the original path if conversion fails, the path is
// already relative, or the result would escape rootDir via "..".
func ToRelative(absPath, rootDir string) string {
	if absPath == "" || rootDir == "" {
		return absPath
	}

	if !filepath.IsAbs(absPath) {
		return absPath
	}

	absPath = filepath.Clean(absPath)
	rootDir = filepath.Clean(rootDir)

	relPath, err := filepath.Rel(rootDir, absPath)
	if err != nil {
		return absPath
	}

	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return absPath
	}

	return filepath.ToSlash(relPath)
}

// ToAbsolute converts a workspace-relative path back to an absolute one.
// Paths that are already absolute are returned unchanged.
func ToAbsolute(relOrAbsPath, rootDir string) string {
	if filepath.IsAbs(relOrAbsPath) {
		return filepath.Clean(relOrAbsPath)
	}
	return filepath.Clean(filepath.Join(rootDir, relOrAbsPath))
}

package fsutils

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrUnsafeSegment is returned when a name cannot be used as a single path element.
var ErrUnsafeSegment = errors.New("unsafe path segment")

// CreateDir creates a directory (and its parents) if it doesn't exist.
func CreateDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// WriteToFile writes content to path, overwriting any previous file.
// The content is written to a temporary sibling first and renamed into
// place, so readers never observe a half-written file.
func WriteToFile(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := CreateDir(dir); err != nil {
		return fmt.Errorf("failed to create directory %q: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %q: %w", dir, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %q: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %q: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to set permissions on %q: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move %q into place: %w", path, err)
	}
	return nil
}

// ReadFile reads the content of a file.
func ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// ScanDir lists files and directories directly under the given path.
func ScanDir(path string) ([]os.DirEntry, error) {
	return os.ReadDir(path)
}

// FileExists checks if a path exists and is a regular file (not a directory).
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		// Any stat error (not found, permissions) counts as missing.
		return false
	}
	return !info.IsDir()
}

// RemoveFile deletes path. A missing file is not an error.
func RemoveFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %q: %w", path, err)
	}
	return nil
}

// CopyDir recursively copies a directory from src to dst.
// It creates the destination directory if it doesn't exist.
// Existing files in the destination will be overwritten.
func CopyDir(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat source directory %q: %w", src, err)
	}
	if !srcInfo.IsDir() {
		return fmt.Errorf("source %q is not a directory", src)
	}

	if err := os.MkdirAll(dst, srcInfo.Mode()); err != nil {
		return fmt.Errorf("failed to create destination directory %q: %w", dst, err)
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return fmt.Errorf("failed to read source directory %q: %w", src, err)
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		if entry.IsDir() {
			if err := CopyDir(srcPath, dstPath); err != nil {
				return fmt.Errorf("failed to copy subdirectory %q to %q: %w", srcPath, dstPath, err)
			}
			continue
		}
		// Leftovers of an interrupted WriteToFile are not copied.
		if strings.HasSuffix(entry.Name(), ".tmp") {
			continue
		}
		if err := copyFile(srcPath, dstPath); err != nil {
			return fmt.Errorf("failed to copy file %q to %q: %w", srcPath, dstPath, err)
		}
	}

	return nil
}

// copyFile copies a single file from src to dst.
// It overwrites the destination file if it exists.
func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file %q: %w", src, err)
	}
	defer srcFile.Close()

	dstFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create destination file %q: %w", dst, err)
	}
	defer dstFile.Close()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return fmt.Errorf("failed to copy data from %q to %q: %w", src, dst, err)
	}
	return nil
}

var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._ -]*$`)

// SafeSegment validates name for use as one path element (a space slug or a
// scene object name such as "Panel 1"). Names are kept verbatim, case and
// inner spaces included, because they are keys shared with the remote API;
// anything that could escape the parent directory is rejected rather than
// rewritten.
func SafeSegment(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 200 || strings.Contains(name, "..") || !segmentPattern.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrUnsafeSegment, name)
	}
	return name, nil
}

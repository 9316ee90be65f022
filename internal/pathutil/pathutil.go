// Package pathutil provides shared path validation helpers for dataset,
// script and output files.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/canectors/carexplorer/internal/errhandling"
)

// ValidateFilePath rejects empty paths, null bytes and any ".." segment.
// Segments are checked before cleaning, so "data/../etc/passwd" is rejected
// even though it would clean to "etc/passwd".
func ValidateFilePath(filePath string) error {
	if filePath == "" {
		return fmt.Errorf("file path cannot be empty")
	}
	if strings.Contains(filePath, "\x00") {
		return fmt.Errorf("file path contains invalid characters")
	}
	for _, segment := range strings.Split(filepath.ToSlash(filePath), "/") {
		if segment == ".." {
			return fmt.Errorf("file path contains path traversal: %q", filePath)
		}
	}
	return nil
}

// CheckReadableFile validates filePath and checks that it names an existing
// regular file. Failures are classified: a missing file is not_found,
// anything else is io.
func CheckReadableFile(filePath string) error {
	if err := ValidateFilePath(filePath); err != nil {
		return errhandling.NewValidationError(err.Error(), err)
	}
	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return errhandling.NewNotFoundError(filePath, "file not found", err)
		}
		return errhandling.NewIOError(filePath, "cannot access file", err)
	}
	if info.IsDir() {
		return errhandling.NewIOError(filePath, "path is a directory", nil)
	}
	return nil
}

// PrepareOutputFile validates filePath and creates its parent directory.
func PrepareOutputFile(filePath string) error {
	if err := ValidateFilePath(filePath); err != nil {
		return errhandling.NewValidationError(err.Error(), err)
	}
	dir := filepath.Dir(filePath)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errhandling.NewIOError(dir, "cannot create output directory", err)
	}
	return nil
}

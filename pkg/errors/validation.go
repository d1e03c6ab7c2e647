package errors

import (
	"path/filepath"
	"strings"
	"unicode"
)

// ValidateImageID validates an image identifier (its filename) for safety.
// Identifiers are used as coordinate map keys and are joined onto the images
// directory, so they must be plain basenames.
//
// The validation rules are intentionally conservative:
//   - No empty names
//   - No control characters or null bytes
//   - No path separators or parent references
//   - No hidden files
//   - Maximum length of 255 characters
func ValidateImageID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "image id cannot be empty")
	}

	if len(id) > 255 {
		return New(ErrCodeInvalidInput, "image id too long (max 255 characters)")
	}

	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "image id contains invalid control characters")
		}
	}

	if strings.ContainsAny(id, "/\\") {
		return New(ErrCodeInvalidInput, "image id cannot contain path separators")
	}

	if id == "." || id == ".." || strings.HasPrefix(id, ".") {
		return New(ErrCodeInvalidInput, "image id cannot be a hidden file")
	}

	return nil
}

// ValidatePath validates a relative path from configuration (images
// subdirectory, artifact names) for safety.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if filepath.IsAbs(path) || strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidPath, "path must be relative (cannot start with /)")
	}

	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}

// ValidateExtension validates an allow-list entry such as ".png".
func ValidateExtension(ext string) error {
	if len(ext) < 2 || ext[0] != '.' {
		return New(ErrCodeInvalidConfig, "extension must start with a dot: %q", ext)
	}
	for _, r := range ext[1:] {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return New(ErrCodeInvalidConfig, "extension contains invalid characters: %q", ext)
		}
	}
	return nil
}

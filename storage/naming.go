package storage

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/ruteri/fallback-storage/interfaces"
)

// maxNameAttempts bounds the suffixes AvailableName tries within one backend.
const maxNameAttempts = 10000

var invalidNameChars = regexp.MustCompile(`[^-\w.]`)

// CleanName turns a caller supplied name into a slash separated relative key.
// Names escaping the storage root are rejected.
func CleanName(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	cleaned := path.Clean("/" + name)
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", fmt.Errorf("%w: %q", interfaces.ErrInvalidName, name)
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: %q escapes the storage root", interfaces.ErrInvalidName, name)
		}
	}
	return cleaned, nil
}

// CleanDir is CleanName for directories, mapping the root to "".
func CleanDir(dir string) (string, error) {
	trimmed := strings.Trim(strings.ReplaceAll(dir, "\\", "/"), "/")
	if trimmed == "" || trimmed == "." {
		return "", nil
	}
	return CleanName(trimmed)
}

// ValidName returns name with surrounding spaces removed, inner spaces
// converted to underscores, and anything other than letters, digits,
// dashes, underscores and dots dropped.
func ValidName(name string) (string, error) {
	s := strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	s = invalidNameChars.ReplaceAllString(s, "")
	if s == "" || s == "." || s == ".." {
		return "", fmt.Errorf("%w: could not derive a valid name from %q", interfaces.ErrInvalidName, name)
	}
	return s, nil
}

// AvailableName returns name if exists reports it free, otherwise the first
// free "<root>_<n><ext>" variant in the same directory.
func AvailableName(ctx context.Context, name string, exists func(context.Context, string) (bool, error)) (string, error) {
	cleaned, err := CleanName(name)
	if err != nil {
		return "", err
	}

	dir, file := path.Split(cleaned)
	ext := path.Ext(file)
	root := strings.TrimSuffix(file, ext)

	candidate := cleaned
	for i := 1; i <= maxNameAttempts; i++ {
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = path.Join(dir, fmt.Sprintf("%s_%d%s", root, i, ext))
	}
	return "", fmt.Errorf("no available name for %q after %d attempts", name, maxNameAttempts)
}

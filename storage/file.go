package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/ruteri/fallback-storage/interfaces"
)

// FileBackend implements a storage backend using the local file system.
// Names are paths relative to the base directory.
type FileBackend struct {
	baseDir     string
	baseURL     string
	log         *slog.Logger
	locationURI string
}

// NewFileBackend creates a new file storage backend using the specified base directory.
// baseURL, when set, is the public URL prefix files are served under.
func NewFileBackend(baseDir, baseURL string, log *slog.Logger) (*FileBackend, error) {
	absDir, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}

	// Ensure base directory exists
	if err := os.MkdirAll(absDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	// Format the URI for tracking
	uri := fmt.Sprintf("file://%s", absDir)

	return &FileBackend{
		baseDir:     absDir,
		baseURL:     baseURL,
		log:         log,
		locationURI: uri,
	}, nil
}

// Open opens the named file for reading.
// Returns ErrContentNotFound if the file doesn't exist.
func (b *FileBackend) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	filePath, err := b.Path(name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, b.translate(err)
	}

	b.log.Debug("Opened file", slog.String("path", filePath))
	return f, nil
}

// Save writes content to name, creating parent directories, and returns the stored name.
func (b *FileBackend) Save(ctx context.Context, name string, content io.Reader) (string, error) {
	cleaned, err := CleanName(name)
	if err != nil {
		return "", err
	}
	filePath := b.fullPath(cleaned)

	// Create parent directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to a temp file first so readers never see partial content
	tmp, err := os.CreateTemp(filepath.Dir(filePath), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	written, err := io.Copy(tmp, content)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to move file into place: %w", err)
	}

	b.log.Debug("Stored file",
		slog.String("path", filePath),
		slog.Int64("size", written))

	return cleaned, nil
}

// Delete removes name. Deleting a missing file is not an error.
func (b *FileBackend) Delete(ctx context.Context, name string) error {
	filePath, err := b.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Exists reports whether name exists.
func (b *FileBackend) Exists(ctx context.Context, name string) (bool, error) {
	filePath, err := b.Path(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(filePath)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat file: %w", err)
}

// Size returns the size of name in bytes.
func (b *FileBackend) Size(ctx context.Context, name string) (int64, error) {
	info, err := b.stat(name)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// AccessedTime returns the last access time of name.
func (b *FileBackend) AccessedTime(ctx context.Context, name string) (time.Time, error) {
	info, err := b.stat(name)
	if err != nil {
		return time.Time{}, err
	}
	return accessTime(info), nil
}

// CreatedTime returns the inode change time of name, the closest the
// filesystem offers to a creation time.
func (b *FileBackend) CreatedTime(ctx context.Context, name string) (time.Time, error) {
	info, err := b.stat(name)
	if err != nil {
		return time.Time{}, err
	}
	return changeTime(info), nil
}

// ModifiedTime returns the last modification time of name.
func (b *FileBackend) ModifiedTime(ctx context.Context, name string) (time.Time, error) {
	info, err := b.stat(name)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// ListDir lists the subdirectories and files directly under dir.
func (b *FileBackend) ListDir(ctx context.Context, dir string) ([]string, []string, error) {
	cleaned, err := CleanDir(dir)
	if err != nil {
		return nil, nil, err
	}

	entries, err := os.ReadDir(b.fullPath(cleaned))
	if err != nil {
		return nil, nil, b.translate(err)
	}

	dirs := []string{}
	files := []string{}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".upload-") {
			continue
		}
		if entry.IsDir() {
			dirs = append(dirs, entry.Name())
		} else {
			files = append(files, entry.Name())
		}
	}
	return dirs, files, nil
}

// URL returns baseURL joined with name.
func (b *FileBackend) URL(ctx context.Context, name string) (string, error) {
	if b.baseURL == "" {
		return "", fmt.Errorf("%w: file backend %s has no base_url", interfaces.ErrUnsupported, b.Name())
	}
	cleaned, err := CleanName(name)
	if err != nil {
		return "", err
	}
	return joinURL(b.baseURL, cleaned), nil
}

// ValidName returns a name safe to store.
func (b *FileBackend) ValidName(name string) (string, error) {
	return ValidName(name)
}

// AvailableName returns a name derived from name that does not exist yet.
func (b *FileBackend) AvailableName(ctx context.Context, name string) (string, error) {
	return AvailableName(ctx, name, b.Exists)
}

// Path returns the absolute local path of name.
func (b *FileBackend) Path(name string) (string, error) {
	cleaned, err := CleanName(name)
	if err != nil {
		return "", err
	}
	return b.fullPath(cleaned), nil
}

// Available checks if the file backend is accessible by verifying the base directory exists.
func (b *FileBackend) Available(ctx context.Context) bool {
	_, err := os.Stat(b.baseDir)
	if err != nil {
		b.log.Debug("File backend unavailable", "err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this storage backend.
func (b *FileBackend) Name() string {
	return fmt.Sprintf("file-%s", filepath.Base(b.baseDir))
}

// LocationURI returns the URI that identifies this storage backend.
func (b *FileBackend) LocationURI() string {
	return b.locationURI
}

func (b *FileBackend) fullPath(cleaned string) string {
	return filepath.Join(b.baseDir, filepath.FromSlash(cleaned))
}

func (b *FileBackend) stat(name string) (fs.FileInfo, error) {
	filePath, err := b.Path(name)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, b.translate(err)
	}
	return info, nil
}

func (b *FileBackend) translate(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", interfaces.ErrContentNotFound, err)
	}
	return err
}

// joinURL appends a slash separated name to a base URL, escaping each segment.
func joinURL(base, name string) string {
	segments := strings.Split(name, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimSuffix(base, "/") + "/" + path.Join(segments...)
}

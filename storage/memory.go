package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/ruteri/fallback-storage/interfaces"
)

// memoryTree is an in-memory file tree shared by every MemoryBackend built
// for the same name.
type memoryTree struct {
	mu       sync.RWMutex
	fs       billy.Filesystem
	created  map[string]time.Time
	modified map[string]time.Time
	accessed map[string]time.Time
}

func newMemoryTree() *memoryTree {
	return &memoryTree{
		fs:       memfs.New(),
		created:  map[string]time.Time{},
		modified: map[string]time.Time{},
		accessed: map[string]time.Time{},
	}
}

// memoryTreeSet hands out one memoryTree per name. Factories derived from
// one another share the same set.
type memoryTreeSet struct {
	mu    sync.Mutex
	trees map[string]*memoryTree
}

func newMemoryTreeSet() *memoryTreeSet {
	return &memoryTreeSet{trees: map[string]*memoryTree{}}
}

func (s *memoryTreeSet) get(name string) *memoryTree {
	s.mu.Lock()
	defer s.mu.Unlock()

	tree, ok := s.trees[name]
	if !ok {
		tree = newMemoryTree()
		s.trees[name] = tree
	}
	return tree
}

// MemoryBackend implements a storage backend kept entirely in memory on a
// go-billy memfs tree. Content does not survive the process.
type MemoryBackend struct {
	name        string
	tree        *memoryTree
	baseURL     string
	log         *slog.Logger
	locationURI string
}

// NewMemoryBackend creates an empty in-memory storage backend.
func NewMemoryBackend(name, baseURL string, log *slog.Logger) *MemoryBackend {
	return newMemoryBackend(name, newMemoryTree(), baseURL, log)
}

func newMemoryBackend(name string, tree *memoryTree, baseURL string, log *slog.Logger) *MemoryBackend {
	return &MemoryBackend{
		name:        name,
		tree:        tree,
		baseURL:     baseURL,
		log:         log,
		locationURI: fmt.Sprintf("memory://%s", name),
	}
}

// Open returns a reader over a snapshot of name's content.
func (b *MemoryBackend) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	p, err := memPath(name)
	if err != nil {
		return nil, err
	}

	b.tree.mu.Lock()
	defer b.tree.mu.Unlock()

	f, err := b.tree.fs.Open(p)
	if err != nil {
		return nil, translateMemErr(err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	b.tree.accessed[p] = time.Now()

	return io.NopCloser(bytes.NewReader(data)), nil
}

// Save stores content under name, replacing any existing file.
func (b *MemoryBackend) Save(ctx context.Context, name string, content io.Reader) (string, error) {
	cleaned, err := CleanName(name)
	if err != nil {
		return "", err
	}
	p := "/" + cleaned

	data, err := io.ReadAll(content)
	if err != nil {
		return "", fmt.Errorf("failed to read content: %w", err)
	}

	b.tree.mu.Lock()
	defer b.tree.mu.Unlock()

	if err := b.tree.fs.MkdirAll(path.Dir(p), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := b.tree.fs.Create(p)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close file: %w", err)
	}

	now := time.Now()
	if _, ok := b.tree.created[p]; !ok {
		b.tree.created[p] = now
	}
	b.tree.modified[p] = now
	b.tree.accessed[p] = now

	b.log.Debug("Stored content in memory",
		slog.String("backend_name", b.Name()),
		slog.String("name", cleaned),
		slog.Int("size", len(data)))

	return cleaned, nil
}

// Delete removes name. Deleting a missing file is not an error.
func (b *MemoryBackend) Delete(ctx context.Context, name string) error {
	p, err := memPath(name)
	if err != nil {
		return err
	}

	b.tree.mu.Lock()
	defer b.tree.mu.Unlock()

	if err := b.tree.fs.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	delete(b.tree.created, p)
	delete(b.tree.modified, p)
	delete(b.tree.accessed, p)
	return nil
}

// Exists reports whether name exists.
func (b *MemoryBackend) Exists(ctx context.Context, name string) (bool, error) {
	p, err := memPath(name)
	if err != nil {
		return false, err
	}

	b.tree.mu.RLock()
	defer b.tree.mu.RUnlock()

	_, err = b.tree.fs.Stat(p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Size returns the size of name in bytes.
func (b *MemoryBackend) Size(ctx context.Context, name string) (int64, error) {
	p, err := memPath(name)
	if err != nil {
		return 0, err
	}

	b.tree.mu.RLock()
	defer b.tree.mu.RUnlock()

	info, err := b.tree.fs.Stat(p)
	if err != nil {
		return 0, translateMemErr(err)
	}
	return info.Size(), nil
}

// AccessedTime returns when name was last opened or written.
func (b *MemoryBackend) AccessedTime(ctx context.Context, name string) (time.Time, error) {
	return b.timeOf(name, func(t *memoryTree) map[string]time.Time { return t.accessed })
}

// CreatedTime returns when name was first written.
func (b *MemoryBackend) CreatedTime(ctx context.Context, name string) (time.Time, error) {
	return b.timeOf(name, func(t *memoryTree) map[string]time.Time { return t.created })
}

// ModifiedTime returns when name was last written.
func (b *MemoryBackend) ModifiedTime(ctx context.Context, name string) (time.Time, error) {
	return b.timeOf(name, func(t *memoryTree) map[string]time.Time { return t.modified })
}

// ListDir lists the subdirectories and files directly under dir.
func (b *MemoryBackend) ListDir(ctx context.Context, dir string) ([]string, []string, error) {
	cleaned, err := CleanDir(dir)
	if err != nil {
		return nil, nil, err
	}

	b.tree.mu.RLock()
	defer b.tree.mu.RUnlock()

	infos, err := b.tree.fs.ReadDir("/" + cleaned)
	if err != nil {
		// memfs has no root until the first write
		if cleaned == "" && errors.Is(err, fs.ErrNotExist) {
			return []string{}, []string{}, nil
		}
		return nil, nil, translateMemErr(err)
	}

	dirs := []string{}
	files := []string{}
	for _, info := range infos {
		if info.IsDir() {
			dirs = append(dirs, info.Name())
		} else {
			files = append(files, info.Name())
		}
	}
	return dirs, files, nil
}

// URL returns baseURL joined with name.
func (b *MemoryBackend) URL(ctx context.Context, name string) (string, error) {
	if b.baseURL == "" {
		return "", fmt.Errorf("%w: memory backend %s has no base_url", interfaces.ErrUnsupported, b.name)
	}
	cleaned, err := CleanName(name)
	if err != nil {
		return "", err
	}
	return joinURL(b.baseURL, cleaned), nil
}

// ValidName returns a name safe to store.
func (b *MemoryBackend) ValidName(name string) (string, error) {
	return ValidName(name)
}

// AvailableName returns a name derived from name that does not exist yet.
func (b *MemoryBackend) AvailableName(ctx context.Context, name string) (string, error) {
	return AvailableName(ctx, name, b.Exists)
}

// Name returns a unique identifier for this storage backend.
func (b *MemoryBackend) Name() string {
	return fmt.Sprintf("memory-%s", b.name)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *MemoryBackend) LocationURI() string {
	return b.locationURI
}

func (b *MemoryBackend) timeOf(name string, table func(*memoryTree) map[string]time.Time) (time.Time, error) {
	p, err := memPath(name)
	if err != nil {
		return time.Time{}, err
	}

	b.tree.mu.RLock()
	defer b.tree.mu.RUnlock()

	t, ok := table(b.tree)[p]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %s", interfaces.ErrContentNotFound, name)
	}
	return t, nil
}

func memPath(name string) (string, error) {
	cleaned, err := CleanName(name)
	if err != nil {
		return "", err
	}
	return "/" + cleaned, nil
}

func translateMemErr(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", interfaces.ErrContentNotFound, err)
	}
	return err
}

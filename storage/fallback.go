package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/ruteri/fallback-storage/interfaces"
)

// DefaultMaxNegotiationRounds bounds AvailableName negotiation.
const DefaultMaxNegotiationRounds = 100

// FallbackStorage presents an ordered list of storage backends as a single
// storage. Reads fall back through the list, existence and listings are
// aggregated, and names are negotiated so they are free everywhere.
//
// FallbackStorage itself implements every capability interface, so a
// FallbackStorage can be used as a backend of another one.
type FallbackStorage struct {
	registry  *Registry
	log       *slog.Logger
	recorder  DispatchRecorder
	maxRounds int
}

// Option configures a FallbackStorage.
type Option func(*FallbackStorage)

// WithMaxNegotiationRounds bounds the rounds AvailableName may take. Values below 1 are ignored.
func WithMaxNegotiationRounds(n int) Option {
	return func(s *FallbackStorage) {
		if n > 0 {
			s.maxRounds = n
		}
	}
}

// WithRecorder reports dispatch cycles to r.
func WithRecorder(r DispatchRecorder) Option {
	return func(s *FallbackStorage) {
		if r != nil {
			s.recorder = r
		}
	}
}

// NewFallbackStorage creates a façade over locations, in order. Backends are
// constructed by factory the first time an operation reaches them.
func NewFallbackStorage(locations []interfaces.StorageBackendLocation, factory interfaces.StorageBackendFactory, logger *slog.Logger, opts ...Option) (*FallbackStorage, error) {
	registry, err := NewRegistry(locations, factory)
	if err != nil {
		return nil, err
	}
	return NewFallbackStorageWithRegistry(registry, logger, opts...), nil
}

// NewFallbackStorageWithRegistry creates a façade over an existing registry.
func NewFallbackStorageWithRegistry(registry *Registry, logger *slog.Logger, opts ...Option) *FallbackStorage {
	// If no logger is provided, create a default one
	if logger == nil {
		logger = slog.Default()
	}

	s := &FallbackStorage{
		registry:  registry,
		log:       logger,
		recorder:  nopRecorder{},
		maxRounds: DefaultMaxNegotiationRounds,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the backend registry of the façade.
func (s *FallbackStorage) Registry() *Registry {
	return s.registry
}

// Open opens name for reading from the first backend that can.
func (s *FallbackStorage) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return firstSuccess(ctx, s, OpOpen, func(b interfaces.Opener) (io.ReadCloser, error) {
		return b.Open(ctx, name)
	})
}

// Save negotiates a name that is free in every backend and writes content
// to the first backend that accepts it. It returns the stored name.
func (s *FallbackStorage) Save(ctx context.Context, name string, content io.Reader) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("%w: empty name", interfaces.ErrInvalidName)
	}

	available, err := s.AvailableName(ctx, name)
	if err != nil {
		if !errors.Is(err, interfaces.ErrUnsupported) {
			return "", err
		}
		available = name
	}

	rs, err := rewindable(content)
	if err != nil {
		return "", fmt.Errorf("failed to read content: %w", err)
	}
	offset, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return "", fmt.Errorf("failed to read content: %w", err)
	}

	return firstSuccess(ctx, s, OpSave, func(b interfaces.Saver) (string, error) {
		if _, err := rs.Seek(offset, io.SeekStart); err != nil {
			return "", fmt.Errorf("failed to rewind content: %w", err)
		}
		return b.Save(ctx, available, rs)
	})
}

// Delete removes name from the first backend that deletes it successfully.
// Copies in later backends are left untouched.
func (s *FallbackStorage) Delete(ctx context.Context, name string) error {
	_, err := firstSuccess(ctx, s, OpDelete, func(b interfaces.Deleter) (struct{}, error) {
		return struct{}{}, b.Delete(ctx, name)
	})
	return err
}

// Exists reports whether any backend holds name.
func (s *FallbackStorage) Exists(ctx context.Context, name string) (bool, error) {
	return anyTrue(ctx, s, OpExists, name)
}

// Size returns the size of name from the first backend that can tell.
func (s *FallbackStorage) Size(ctx context.Context, name string) (int64, error) {
	return firstSuccess(ctx, s, OpSize, func(b interfaces.Sizer) (int64, error) {
		return b.Size(ctx, name)
	})
}

// AccessedTime returns the last access time of name.
func (s *FallbackStorage) AccessedTime(ctx context.Context, name string) (time.Time, error) {
	return firstSuccess(ctx, s, OpAccessedTime, func(b interfaces.AccessTimer) (time.Time, error) {
		return b.AccessedTime(ctx, name)
	})
}

// CreatedTime returns the creation time of name.
func (s *FallbackStorage) CreatedTime(ctx context.Context, name string) (time.Time, error) {
	return firstSuccess(ctx, s, OpCreatedTime, func(b interfaces.CreationTimer) (time.Time, error) {
		return b.CreatedTime(ctx, name)
	})
}

// ModifiedTime returns the last modification time of name.
func (s *FallbackStorage) ModifiedTime(ctx context.Context, name string) (time.Time, error) {
	return firstSuccess(ctx, s, OpModifiedTime, func(b interfaces.ModificationTimer) (time.Time, error) {
		return b.ModifiedTime(ctx, name)
	})
}

// ListDir concatenates the listings of every backend, in backend order.
// Entries present in several backends appear once per backend.
func (s *FallbackStorage) ListDir(ctx context.Context, path string) ([]string, []string, error) {
	return concatLists(ctx, s, OpListDir, path)
}

// URL returns the URL of name in the backend that holds it, or the URL the
// last backend would give it.
func (s *FallbackStorage) URL(ctx context.Context, name string) (string, error) {
	return existenceGated(ctx, s, OpURL, name)
}

// ValidName normalizes name using the first backend that can.
func (s *FallbackStorage) ValidName(name string) (string, error) {
	return firstSuccess(context.Background(), s, OpValidName, func(b interfaces.ValidNamer) (string, error) {
		return b.ValidName(name)
	})
}

// AvailableName returns a name derived from name that is free in every backend.
func (s *FallbackStorage) AvailableName(ctx context.Context, name string) (string, error) {
	return negotiate(ctx, s, OpAvailableName, name)
}

// Path returns the local path of name from the first filesystem-like backend.
func (s *FallbackStorage) Path(name string) (string, error) {
	return firstSuccess(context.Background(), s, OpPath, func(b interfaces.Pather) (string, error) {
		return b.Path(name)
	})
}

// Name returns the name of this backend
func (s *FallbackStorage) Name() string {
	return "fallback-storage"
}

// LocationURI returns the URI of this backend
func (s *FallbackStorage) LocationURI() string {
	// Build a combined location URI from all backends
	var locations []string
	for _, loc := range s.registry.Locations() {
		locations = append(locations, loc.Redacted())
	}

	return "fallback:[" + strings.Join(locations, ",") + "]"
}

// rewindable returns content as an io.ReadSeeker, buffering it when it cannot seek.
func rewindable(content io.Reader) (io.ReadSeeker, error) {
	if content == nil {
		return bytes.NewReader(nil), nil
	}
	if rs, ok := content.(io.ReadSeeker); ok {
		return rs, nil
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

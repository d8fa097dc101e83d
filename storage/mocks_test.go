package storage

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ruteri/fallback-storage/interfaces"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStorageBackend implements every capability interface for testing
type MockStorageBackend struct {
	mock.Mock
	name string
}

func (m *MockStorageBackend) Name() string {
	return m.name
}

func (m *MockStorageBackend) LocationURI() string {
	return "mock://" + m.name
}

func (m *MockStorageBackend) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockStorageBackend) Save(ctx context.Context, name string, content io.Reader) (string, error) {
	args := m.Called(ctx, name, content)
	return args.String(0), args.Error(1)
}

func (m *MockStorageBackend) Delete(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *MockStorageBackend) Exists(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorageBackend) Size(ctx context.Context, name string) (int64, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorageBackend) AccessedTime(ctx context.Context, name string) (time.Time, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockStorageBackend) CreatedTime(ctx context.Context, name string) (time.Time, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockStorageBackend) ModifiedTime(ctx context.Context, name string) (time.Time, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockStorageBackend) ListDir(ctx context.Context, path string) ([]string, []string, error) {
	args := m.Called(ctx, path)
	var dirs, files []string
	if args.Get(0) != nil {
		dirs = args.Get(0).([]string)
	}
	if args.Get(1) != nil {
		files = args.Get(1).([]string)
	}
	return dirs, files, args.Error(2)
}

func (m *MockStorageBackend) URL(ctx context.Context, name string) (string, error) {
	args := m.Called(ctx, name)
	return args.String(0), args.Error(1)
}

func (m *MockStorageBackend) ValidName(name string) (string, error) {
	args := m.Called(name)
	return args.String(0), args.Error(1)
}

func (m *MockStorageBackend) AvailableName(ctx context.Context, name string) (string, error) {
	args := m.Called(ctx, name)
	return args.String(0), args.Error(1)
}

func (m *MockStorageBackend) Path(name string) (string, error) {
	args := m.Called(name)
	return args.String(0), args.Error(1)
}

// bareBackend has no capabilities at all.
type bareBackend struct {
	name string
}

func (b *bareBackend) Name() string        { return b.name }
func (b *bareBackend) LocationURI() string { return "bare://" + b.name }

// existerOnly exposes only the Exists capability of a mock.
type existerOnly struct {
	m *MockStorageBackend
}

func (e existerOnly) Name() string        { return e.m.Name() }
func (e existerOnly) LocationURI() string { return e.m.LocationURI() }
func (e existerOnly) Exists(ctx context.Context, name string) (bool, error) {
	return e.m.Exists(ctx, name)
}

// urlOnly exposes only the URL capability of a mock.
type urlOnly struct {
	m *MockStorageBackend
}

func (u urlOnly) Name() string        { return u.m.Name() }
func (u urlOnly) LocationURI() string { return u.m.LocationURI() }
func (u urlOnly) URL(ctx context.Context, name string) (string, error) {
	return u.m.URL(ctx, name)
}

// switchableBackend is a mock that reports its availability.
type switchableBackend struct {
	*MockStorageBackend
	up bool
}

func (s *switchableBackend) Available(ctx context.Context) bool {
	return s.up
}

// staticFactory hands out pre-built backends by URI and counts constructions.
type staticFactory struct {
	mu       sync.Mutex
	backends map[string]interfaces.StorageBackend
	failures map[string]error
	calls    map[string]int
}

func newStaticFactory() *staticFactory {
	return &staticFactory{
		backends: map[string]interfaces.StorageBackend{},
		failures: map[string]error{},
		calls:    map[string]int{},
	}
}

func (f *staticFactory) StorageBackendFor(loc interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[loc.Raw]++
	if err, ok := f.failures[loc.Raw]; ok {
		return nil, err
	}
	b, ok := f.backends[loc.Raw]
	if !ok {
		return nil, fmt.Errorf("no backend registered for %s", loc.Raw)
	}
	return b, nil
}

func (f *staticFactory) WithTLSAuth(func() (tls.Certificate, error)) interfaces.StorageBackendFactory {
	return f
}

func (f *staticFactory) constructions(raw string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[raw]
}

// backendURI is the descriptor newTestStorage assigns to the i-th backend.
func backendURI(i int) string {
	return fmt.Sprintf("memory://backend-%d", i)
}

// newTestStorage builds a façade over backends, each registered under backendURI(i).
// A nil backend makes construction of that descriptor fail.
func newTestStorage(t *testing.T, factory *staticFactory, backends []interfaces.StorageBackend, opts ...Option) *FallbackStorage {
	t.Helper()

	var locations []interfaces.StorageBackendLocation
	for i, b := range backends {
		loc, err := interfaces.NewStorageBackendLocation(backendURI(i))
		require.NoError(t, err)
		locations = append(locations, loc)
		if b == nil {
			factory.failures[loc.Raw] = fmt.Errorf("backend %d is broken", i)
		} else {
			factory.backends[loc.Raw] = b
		}
	}

	fs, err := NewFallbackStorage(locations, factory, testLogger(), opts...)
	require.NoError(t, err)
	return fs
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type dispatchRecord struct {
	op      Operation
	outcome string
}

// recordingRecorder captures what a façade reports.
type recordingRecorder struct {
	mu           sync.Mutex
	dispatches   []dispatchRecord
	failures     []string
	negotiations []int
}

func (r *recordingRecorder) RecordDispatch(op Operation, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dispatches = append(r.dispatches, dispatchRecord{op: op, outcome: outcome})
}

func (r *recordingRecorder) RecordBackendFailure(op Operation, backend string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, backend)
}

func (r *recordingRecorder) RecordNegotiation(rounds int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.negotiations = append(r.negotiations, rounds)
}

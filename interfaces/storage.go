package interfaces

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"
)

// StorageBackendLocation represents URI for storage backend.
type StorageBackendLocation struct {
	Raw    string     // Original URI
	Scheme string     // Protocol
	Host   string     // Hostname
	Path   string     // Resource path
	Query  url.Values // Query parameters
	Auth   string     // Authentication info
}

// NewStorageBackendLocation creates a new storage location from a URI string with validation.
func NewStorageBackendLocation(uri string) (StorageBackendLocation, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return StorageBackendLocation{}, fmt.Errorf("%w: empty URI", ErrInvalidLocationURI)
	}

	parsed, err := url.Parse(uri)
	if err != nil {
		return StorageBackendLocation{}, fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}

	// Validate scheme is supported
	scheme := strings.ToLower(parsed.Scheme)
	switch scheme {
	case "file", "memory", "s3", "minio", "ipfs", "github", "vault", "remote":
		// Valid scheme
	default:
		return StorageBackendLocation{}, fmt.Errorf("%w: unsupported storage scheme %q", ErrInvalidLocationURI, parsed.Scheme)
	}

	// Parse authentication info if present
	var auth string
	if parsed.User != nil {
		auth = parsed.User.String()
	}

	return StorageBackendLocation{
		Raw:    uri,
		Scheme: scheme,
		Host:   parsed.Host,
		Path:   parsed.Path,
		Query:  parsed.Query(),
		Auth:   auth,
	}, nil
}

// ParseStorageBackendLocations parses an ordered list of URIs, failing on the first invalid one.
func ParseStorageBackendLocations(uris []string) ([]StorageBackendLocation, error) {
	locations := make([]StorageBackendLocation, 0, len(uris))
	for _, uri := range uris {
		loc, err := NewStorageBackendLocation(uri)
		if err != nil {
			return nil, err
		}
		locations = append(locations, loc)
	}
	return locations, nil
}

// String returns the original URI string.
func (loc StorageBackendLocation) String() string {
	return loc.Raw
}

// Redacted returns the URI with any password or token query parameter masked.
// It is the identifier used in logs and aggregated errors.
func (loc StorageBackendLocation) Redacted() string {
	u, err := url.Parse(loc.Raw)
	if err != nil {
		return loc.Raw
	}
	q := u.Query()
	if q.Has("token") {
		q.Set("token", "***")
		u.RawQuery = q.Encode()
	}
	return u.Redacted()
}

// IsFile checks if this is a file system storage location.
func (loc StorageBackendLocation) IsFile() bool {
	return loc.Scheme == "file"
}

// IsMemory checks if this is an in-memory storage location.
func (loc StorageBackendLocation) IsMemory() bool {
	return loc.Scheme == "memory"
}

// IsS3 checks if this is an S3 storage location.
func (loc StorageBackendLocation) IsS3() bool {
	return loc.Scheme == "s3"
}

// IsMinio checks if this is a MinIO storage location.
func (loc StorageBackendLocation) IsMinio() bool {
	return loc.Scheme == "minio"
}

// IsIPFS checks if this is an IPFS storage location.
func (loc StorageBackendLocation) IsIPFS() bool {
	return loc.Scheme == "ipfs"
}

// IsGitHub checks if this is a GitHub storage location.
func (loc StorageBackendLocation) IsGitHub() bool {
	return loc.Scheme == "github"
}

// IsVault checks if this is a Vault storage location.
func (loc StorageBackendLocation) IsVault() bool {
	return loc.Scheme == "vault"
}

// IsRemote checks if this is another fallback storage server.
func (loc StorageBackendLocation) IsRemote() bool {
	return loc.Scheme == "remote"
}

// GetParam returns a query parameter value.
func (loc StorageBackendLocation) GetParam(name string) string {
	return loc.Query.Get(name)
}

// GetParamBool returns a boolean query parameter value.
func (loc StorageBackendLocation) GetParamBool(name string) bool {
	value := loc.Query.Get(name)
	return value == "true" || value == "1" || value == "yes"
}

// GetParamDuration returns a duration query parameter value, or def if unset or malformed.
func (loc StorageBackendLocation) GetParamDuration(name string, def time.Duration) time.Duration {
	value := loc.Query.Get(name)
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return d
}

var (
	// ErrContentNotFound is returned when requested content cannot be found in the storage backend.
	ErrContentNotFound = errors.New("content not found")

	// ErrBackendUnavailable is returned when a storage backend is not accessible.
	// This could be due to network issues, authentication failures, or service outages.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrInvalidLocationURI is returned when a storage location URI is malformed or unsupported.
	// URIs must follow the format: [scheme]://[auth@]host[:port][/path][?params]
	ErrInvalidLocationURI = errors.New("invalid storage location URI")

	// ErrUnsupported is returned when no backend offers the requested operation.
	ErrUnsupported = errors.New("operation not supported")

	// ErrReadOnly is returned by backends that cannot accept writes.
	ErrReadOnly = errors.New("storage backend is read-only")

	// ErrInvalidName is returned for names that cannot be stored.
	ErrInvalidName = errors.New("invalid file name")
)

// StorageBackend is the base every backend implements. All file operations
// are optional capabilities, probed with type assertions.
type StorageBackend interface {
	// Name returns identifier for logging.
	Name() string

	// LocationURI returns URI identifying this backend.
	LocationURI() string
}

// Opener opens a stored file for reading.
type Opener interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// Saver writes content under name and returns the name actually used.
type Saver interface {
	Save(ctx context.Context, name string, content io.Reader) (string, error)
}

// Deleter removes a stored file.
type Deleter interface {
	Delete(ctx context.Context, name string) error
}

// Exister reports whether a file exists.
type Exister interface {
	Exists(ctx context.Context, name string) (bool, error)
}

// Sizer reports a file size in bytes.
type Sizer interface {
	Size(ctx context.Context, name string) (int64, error)
}

// AccessTimer reports the last access time of a file.
type AccessTimer interface {
	AccessedTime(ctx context.Context, name string) (time.Time, error)
}

// CreationTimer reports the creation time of a file.
type CreationTimer interface {
	CreatedTime(ctx context.Context, name string) (time.Time, error)
}

// ModificationTimer reports the last modification time of a file.
type ModificationTimer interface {
	ModifiedTime(ctx context.Context, name string) (time.Time, error)
}

// Lister lists the immediate subdirectories and files of a directory.
type Lister interface {
	ListDir(ctx context.Context, path string) (dirs []string, files []string, err error)
}

// URLProvider returns a URL where the file can be retrieved.
type URLProvider interface {
	URL(ctx context.Context, name string) (string, error)
}

// ValidNamer normalizes a name into one the backend can store.
type ValidNamer interface {
	ValidName(name string) (string, error)
}

// AvailableNamer returns a name, derived from name, that is free in the backend.
type AvailableNamer interface {
	AvailableName(ctx context.Context, name string) (string, error)
}

// Pather returns the local filesystem path of a file.
type Pather interface {
	Path(name string) (string, error)
}

// AvailabilityChecker is implemented by backends able to report their reachability.
type AvailabilityChecker interface {
	// Available checks if backend is accessible.
	Available(ctx context.Context) bool
}

// StorageBackendFactory creates storage backends.
type StorageBackendFactory interface {
	// StorageBackendFor creates backend from URI.
	// Supports file://, memory://, s3://, minio://, ipfs://, github://, vault://, remote://
	StorageBackendFor(location StorageBackendLocation) (StorageBackend, error)

	// WithTLSAuth configures TLS client authentication.
	WithTLSAuth(func() (tls.Certificate, error)) StorageBackendFactory
}

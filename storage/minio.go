package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/ruteri/fallback-storage/interfaces"
)

// MinioConfig holds MinIO backend configuration.
type MinioConfig struct {
	// Endpoint is the MinIO server address (e.g., "localhost:9000")
	Endpoint string

	// Bucket is the bucket name
	Bucket string

	// AccessKey and SecretKey authenticate the client
	AccessKey string
	SecretKey string

	// UseSSL enables HTTPS connections
	UseSSL bool

	// Prefix is an optional prefix for all object keys
	Prefix string

	// URLExpiry is the validity of presigned URLs returned by URL
	URLExpiry time.Duration
}

// MinioBackend implements a storage backend on a MinIO server using minio-go.
// URL returns presigned GET URLs.
type MinioBackend struct {
	client      *minio.Client
	cfg         MinioConfig
	log         *slog.Logger
	locationURI string
}

// NewMinioBackend creates a MinIO storage backend.
func NewMinioBackend(cfg MinioConfig, log *slog.Logger) (*MinioBackend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.URLExpiry <= 0 {
		cfg.URLExpiry = time.Hour
	}
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioBackend{
		client:      client,
		cfg:         cfg,
		log:         log,
		locationURI: fmt.Sprintf("minio://%s/%s/%s", cfg.Endpoint, cfg.Bucket, cfg.Prefix),
	}, nil
}

// Open streams the object for name.
func (b *MinioBackend) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	key, err := b.objectKey(name)
	if err != nil {
		return nil, err
	}

	// GetObject is lazy; stat first so a missing key fails here
	if _, err := b.stat(ctx, key); err != nil {
		return nil, err
	}
	obj, err := b.client.GetObject(ctx, b.cfg.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, translateMinioErr(err, key)
	}
	return obj, nil
}

// Save uploads content under name.
func (b *MinioBackend) Save(ctx context.Context, name string, content io.Reader) (string, error) {
	cleaned, err := CleanName(name)
	if err != nil {
		return "", err
	}
	key := b.keyFor(cleaned)

	info, err := b.client.PutObject(ctx, b.cfg.Bucket, key, content, -1, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object to minio: %w", err)
	}

	b.log.Debug("Stored content in minio",
		slog.String("bucket", b.cfg.Bucket),
		slog.String("key", key),
		slog.Int64("size", info.Size))

	return cleaned, nil
}

// Delete removes the object for name.
func (b *MinioBackend) Delete(ctx context.Context, name string) error {
	key, err := b.objectKey(name)
	if err != nil {
		return err
	}
	if err := b.client.RemoveObject(ctx, b.cfg.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object from minio: %w", err)
	}
	return nil
}

// Exists reports whether an object exists for name.
func (b *MinioBackend) Exists(ctx context.Context, name string) (bool, error) {
	key, err := b.objectKey(name)
	if err != nil {
		return false, err
	}
	_, err = b.client.StatObject(ctx, b.cfg.Bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat object in minio: %w", err)
}

// Size returns the object size in bytes.
func (b *MinioBackend) Size(ctx context.Context, name string) (int64, error) {
	key, err := b.objectKey(name)
	if err != nil {
		return 0, err
	}
	info, err := b.stat(ctx, key)
	if err != nil {
		return 0, err
	}
	return info.Size, nil
}

// ModifiedTime returns the object's last modification time.
func (b *MinioBackend) ModifiedTime(ctx context.Context, name string) (time.Time, error) {
	key, err := b.objectKey(name)
	if err != nil {
		return time.Time{}, err
	}
	info, err := b.stat(ctx, key)
	if err != nil {
		return time.Time{}, err
	}
	return info.LastModified, nil
}

// ListDir lists the prefixes and objects directly under dir.
func (b *MinioBackend) ListDir(ctx context.Context, dir string) ([]string, []string, error) {
	cleaned, err := CleanDir(dir)
	if err != nil {
		return nil, nil, err
	}
	prefix := b.keyFor(cleaned)
	if prefix != "" {
		prefix += "/"
	}

	dirs := []string{}
	files := []string{}
	for object := range b.client.ListObjects(ctx, b.cfg.Bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: false,
	}) {
		if object.Err != nil {
			return nil, nil, translateMinioErr(object.Err, prefix)
		}
		if object.Key == prefix {
			continue
		}
		rel := strings.TrimPrefix(object.Key, prefix)
		if strings.HasSuffix(rel, "/") {
			dirs = append(dirs, strings.TrimSuffix(rel, "/"))
		} else if rel != "" {
			files = append(files, rel)
		}
	}
	return dirs, files, nil
}

// URL returns a presigned GET URL for name.
func (b *MinioBackend) URL(ctx context.Context, name string) (string, error) {
	key, err := b.objectKey(name)
	if err != nil {
		return "", err
	}
	u, err := b.client.PresignedGetObject(ctx, b.cfg.Bucket, key, b.cfg.URLExpiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to presign minio URL: %w", err)
	}
	return u.String(), nil
}

// ValidName returns a name safe to store.
func (b *MinioBackend) ValidName(name string) (string, error) {
	return ValidName(name)
}

// AvailableName returns a name derived from name that has no object yet.
func (b *MinioBackend) AvailableName(ctx context.Context, name string) (string, error) {
	return AvailableName(ctx, name, b.Exists)
}

// Available checks that the bucket exists and is reachable.
func (b *MinioBackend) Available(ctx context.Context) bool {
	ok, err := b.client.BucketExists(ctx, b.cfg.Bucket)
	if err != nil {
		b.log.Warn("Minio backend unavailable",
			slog.String("bucket", b.cfg.Bucket),
			"err", err)
		return false
	}
	return ok
}

// Name returns a unique identifier for this storage backend.
func (b *MinioBackend) Name() string {
	return fmt.Sprintf("minio-%s", b.cfg.Bucket)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *MinioBackend) LocationURI() string {
	return b.locationURI
}

func (b *MinioBackend) stat(ctx context.Context, key string) (minio.ObjectInfo, error) {
	info, err := b.client.StatObject(ctx, b.cfg.Bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return minio.ObjectInfo{}, translateMinioErr(err, key)
	}
	return info, nil
}

func (b *MinioBackend) objectKey(name string) (string, error) {
	cleaned, err := CleanName(name)
	if err != nil {
		return "", err
	}
	return b.keyFor(cleaned), nil
}

func (b *MinioBackend) keyFor(cleaned string) string {
	if b.cfg.Prefix == "" {
		return cleaned
	}
	if cleaned == "" {
		return b.cfg.Prefix
	}
	return path.Join(b.cfg.Prefix, cleaned)
}

// translateMinioErr converts MinIO error responses to storage errors.
func translateMinioErr(err error, key string) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%w: %s", interfaces.ErrContentNotFound, key)
	}
	return fmt.Errorf("minio: %w", err)
}

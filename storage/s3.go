package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/ruteri/fallback-storage/interfaces"
)

// S3Config describes an S3 or S3-compatible bucket.
type S3Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	// ACL applied to uploaded objects, e.g. "public-read". Empty leaves the bucket default.
	ACL string
	// Presign makes URL return presigned GET URLs valid for PresignExpiry.
	Presign       bool
	PresignExpiry time.Duration
}

// S3Backend implements a storage backend using Amazon S3 or compatible services.
// It supports both public read-only access and authenticated write access.
type S3Backend struct {
	client         *s3.S3
	writeClient    *s3.S3
	uploader       *s3manager.Uploader
	cfg            S3Config
	log            *slog.Logger
	locationURI    string
	hasWriteAccess bool
}

// NewS3Backend creates a new S3 storage backend.
// If access and secret keys are provided, the backend will have write access.
// Otherwise, it will be read-only for publicly accessible objects.
func NewS3Backend(cfg S3Config, log *slog.Logger) (*S3Backend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.PresignExpiry <= 0 {
		cfg.PresignExpiry = 15 * time.Minute
	}
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")

	// Format the URI for tracking
	uri := fmt.Sprintf("s3://%s/%s?region=%s", cfg.Bucket, cfg.Prefix, cfg.Region)
	if cfg.AccessKey != "" {
		uri = fmt.Sprintf("s3://%s:***@%s/%s?region=%s", cfg.AccessKey, cfg.Bucket, cfg.Prefix, cfg.Region)
	}
	if cfg.Endpoint != "" {
		uri += fmt.Sprintf("&endpoint=%s", cfg.Endpoint)
	}

	// Configure base AWS SDK for read-only public access
	baseCfg := aws.Config{
		Region: aws.String(cfg.Region),
	}

	if cfg.Endpoint != "" {
		baseCfg.Endpoint = aws.String(cfg.Endpoint)
		baseCfg.S3ForcePathStyle = aws.Bool(true)
	}

	// Create AWS session for read operations (no credentials required for public buckets)
	baseSess, err := session.NewSession(&baseCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	// Create read-only S3 client
	readClient := s3.New(baseSess)

	// Check if we have write credentials
	hasWriteAccess := cfg.AccessKey != "" && cfg.SecretKey != ""
	writeClient := readClient

	if hasWriteAccess {
		// Configure AWS SDK with credentials for write access
		writeCfg := baseCfg.Copy()
		writeCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")

		// Create AWS session for write operations
		writeSess, err := session.NewSession(writeCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS write session: %w", err)
		}

		// Credentialed client serves reads too, private buckets need it
		writeClient = s3.New(writeSess)
		readClient = writeClient
	} else {
		log.Warn("No S3 credentials provided - write operations may fail unless bucket is public writable",
			slog.String("bucket", cfg.Bucket))
	}

	return &S3Backend{
		client:         readClient,
		writeClient:    writeClient,
		uploader:       s3manager.NewUploaderWithClient(writeClient),
		cfg:            cfg,
		log:            log,
		locationURI:    uri,
		hasWriteAccess: hasWriteAccess,
	}, nil
}

// Open streams an object from S3.
// Returns ErrContentNotFound if the object doesn't exist.
func (b *S3Backend) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	start := time.Now()
	key, err := b.objectKey(name)
	if err != nil {
		return nil, err
	}

	result, err := b.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			b.log.Debug("Content not found in S3",
				slog.String("bucket", b.cfg.Bucket),
				slog.String("key", key),
				slog.Duration("duration", time.Since(start)))
			return nil, fmt.Errorf("%w: %s", interfaces.ErrContentNotFound, key)
		}

		b.log.Error("Failed to get object from S3",
			slog.String("bucket", b.cfg.Bucket),
			slog.String("key", key),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}

	return result.Body, nil
}

// Save uploads content to S3 under name.
func (b *S3Backend) Save(ctx context.Context, name string, content io.Reader) (string, error) {
	cleaned, err := CleanName(name)
	if err != nil {
		return "", err
	}
	key := b.keyFor(cleaned)

	input := &s3manager.UploadInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(key),
		Body:   content,
	}
	if b.cfg.ACL != "" {
		input.ACL = aws.String(b.cfg.ACL)
	}

	if _, err := b.uploader.UploadWithContext(ctx, input); err != nil {
		if !b.hasWriteAccess {
			return "", fmt.Errorf("%w: no write credentials provided for bucket %s: %v", interfaces.ErrReadOnly, b.cfg.Bucket, err)
		}
		return "", fmt.Errorf("failed to upload object to S3: %w", err)
	}

	b.log.Debug("Stored content in S3",
		slog.String("bucket", b.cfg.Bucket),
		slog.String("key", key))

	return cleaned, nil
}

// Delete removes the object for name.
func (b *S3Backend) Delete(ctx context.Context, name string) error {
	key, err := b.objectKey(name)
	if err != nil {
		return err
	}
	_, err = b.writeClient.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}
	return nil
}

// Exists reports whether an object exists for name.
func (b *S3Backend) Exists(ctx context.Context, name string) (bool, error) {
	_, err := b.head(ctx, name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, interfaces.ErrContentNotFound) {
		return false, nil
	}
	return false, err
}

// Size returns the object size in bytes.
func (b *S3Backend) Size(ctx context.Context, name string) (int64, error) {
	out, err := b.head(ctx, name)
	if err != nil {
		return 0, err
	}
	return aws.Int64Value(out.ContentLength), nil
}

// ModifiedTime returns the object's last modification time.
func (b *S3Backend) ModifiedTime(ctx context.Context, name string) (time.Time, error) {
	out, err := b.head(ctx, name)
	if err != nil {
		return time.Time{}, err
	}
	return aws.TimeValue(out.LastModified), nil
}

// ListDir lists common prefixes and objects directly under dir.
func (b *S3Backend) ListDir(ctx context.Context, dir string) ([]string, []string, error) {
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
	err = b.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket:    aws.String(b.cfg.Bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.StringValue(cp.Prefix), prefix), "/")
			if name != "" {
				dirs = append(dirs, name)
			}
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.StringValue(obj.Key), prefix)
			if name != "" {
				files = append(files, name)
			}
		}
		return true
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list objects in S3: %w", err)
	}
	return dirs, files, nil
}

// URL returns a presigned or public URL for name.
func (b *S3Backend) URL(ctx context.Context, name string) (string, error) {
	key, err := b.objectKey(name)
	if err != nil {
		return "", err
	}

	if b.cfg.Presign {
		req, _ := b.client.GetObjectRequest(&s3.GetObjectInput{
			Bucket: aws.String(b.cfg.Bucket),
			Key:    aws.String(key),
		})
		signed, err := req.Presign(b.cfg.PresignExpiry)
		if err != nil {
			return "", fmt.Errorf("failed to presign S3 URL: %w", err)
		}
		return signed, nil
	}

	if b.cfg.Endpoint != "" {
		return joinURL(strings.TrimSuffix(b.cfg.Endpoint, "/")+"/"+b.cfg.Bucket, key), nil
	}
	return joinURL(fmt.Sprintf("https://%s.s3.%s.amazonaws.com", b.cfg.Bucket, b.cfg.Region), key), nil
}

// ValidName returns a name safe to store.
func (b *S3Backend) ValidName(name string) (string, error) {
	return ValidName(name)
}

// AvailableName returns a name derived from name that has no object yet.
func (b *S3Backend) AvailableName(ctx context.Context, name string) (string, error) {
	return AvailableName(ctx, name, b.Exists)
}

// Available checks if the S3 backend is accessible by attempting to head the bucket.
func (b *S3Backend) Available(ctx context.Context) bool {
	start := time.Now()

	// Try to head the bucket to check if it's accessible
	_, err := b.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.cfg.Bucket),
	})

	if err != nil {
		b.log.Warn("S3 backend unavailable",
			slog.String("bucket", b.cfg.Bucket),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return false
	}

	return true
}

// Name returns a unique identifier for this storage backend.
func (b *S3Backend) Name() string {
	return fmt.Sprintf("s3-%s", b.cfg.Bucket)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *S3Backend) LocationURI() string {
	return b.locationURI
}

func (b *S3Backend) head(ctx context.Context, name string) (*s3.HeadObjectOutput, error) {
	key, err := b.objectKey(name)
	if err != nil {
		return nil, err
	}
	out, err := b.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("%w: %s", interfaces.ErrContentNotFound, key)
		}
		return nil, fmt.Errorf("failed to head object in S3: %w", err)
	}
	return out, nil
}

// objectKey generates an S3 object key for name.
func (b *S3Backend) objectKey(name string) (string, error) {
	cleaned, err := CleanName(name)
	if err != nil {
		return "", err
	}
	return b.keyFor(cleaned), nil
}

func (b *S3Backend) keyFor(cleaned string) string {
	if b.cfg.Prefix == "" {
		return cleaned
	}
	if cleaned == "" {
		return b.cfg.Prefix
	}
	return path.Join(b.cfg.Prefix, cleaned)
}

func isS3NotFound(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return false
}

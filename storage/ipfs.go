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

	shell "github.com/ipfs/go-ipfs-api"
	"github.com/ruteri/fallback-storage/interfaces"
)

// IPFSBackend implements a storage backend on the mutable file system (MFS)
// of an IPFS node. Names map to MFS paths under a root directory; URL
// resolves the current CID of a file on a public gateway.
type IPFSBackend struct {
	shell       *shell.Shell
	host        string
	port        string
	root        string
	gatewayURL  string
	log         *slog.Logger
	locationURI string
}

// NewIPFSBackend creates a new IPFS storage backend connected to the specified host and port.
// Files are kept under root in MFS. gatewayURL is used to build URLs and may be empty.
func NewIPFSBackend(host, port, root, gatewayURL string, timeout time.Duration, log *slog.Logger) (*IPFSBackend, error) {
	// Construct API URL
	apiURL := fmt.Sprintf("%s:%s", host, port)

	if root == "" || root == "/" {
		root = "/fallback-storage"
	}
	root = "/" + strings.Trim(root, "/")

	sh := shell.NewShell(apiURL)
	sh.SetTimeout(timeout)

	// Format the URI for tracking
	uri := fmt.Sprintf("ipfs://%s%s?timeout=%s", apiURL, root, timeout)

	return &IPFSBackend{
		shell:       sh,
		host:        host,
		port:        port,
		root:        root,
		gatewayURL:  strings.TrimSuffix(gatewayURL, "/"),
		log:         log,
		locationURI: uri,
	}, nil
}

// Open reads a file from MFS.
func (b *IPFSBackend) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	start := time.Now()
	p, err := b.mfsPath(name)
	if err != nil {
		return nil, err
	}

	reader, err := b.shell.FilesRead(ctx, p)
	if err != nil {
		if isIPFSNotFound(err) {
			b.log.Debug("Content not found in IPFS",
				slog.String("path", p),
				slog.Duration("duration", time.Since(start)))
			return nil, fmt.Errorf("%w: %s", interfaces.ErrContentNotFound, p)
		}

		b.log.Error("Failed to read data from IPFS",
			slog.String("path", p),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("failed to read data from IPFS: %w", err)
	}
	return reader, nil
}

// Save writes content to MFS, creating parent directories.
func (b *IPFSBackend) Save(ctx context.Context, name string, content io.Reader) (string, error) {
	cleaned, err := CleanName(name)
	if err != nil {
		return "", err
	}
	p := path.Join(b.root, cleaned)

	err = b.shell.FilesWrite(ctx, p, content,
		shell.FilesWrite.Create(true),
		shell.FilesWrite.Parents(true),
		shell.FilesWrite.Truncate(true))
	if err != nil {
		return "", fmt.Errorf("failed to write data to IPFS: %w", err)
	}

	b.log.Debug("Stored content in IPFS", slog.String("path", p))
	return cleaned, nil
}

// Delete removes a file from MFS.
func (b *IPFSBackend) Delete(ctx context.Context, name string) error {
	p, err := b.mfsPath(name)
	if err != nil {
		return err
	}
	if err := b.shell.FilesRm(ctx, p, true); err != nil && !isIPFSNotFound(err) {
		return fmt.Errorf("failed to remove data from IPFS: %w", err)
	}
	return nil
}

// Exists reports whether name exists in MFS.
func (b *IPFSBackend) Exists(ctx context.Context, name string) (bool, error) {
	_, err := b.stat(ctx, name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, interfaces.ErrContentNotFound) {
		return false, nil
	}
	return false, err
}

// Size returns the file size in bytes.
func (b *IPFSBackend) Size(ctx context.Context, name string) (int64, error) {
	st, err := b.stat(ctx, name)
	if err != nil {
		return 0, err
	}
	return int64(st.Size), nil
}

// ListDir lists directories and files directly under dir.
func (b *IPFSBackend) ListDir(ctx context.Context, dir string) ([]string, []string, error) {
	cleaned, err := CleanDir(dir)
	if err != nil {
		return nil, nil, err
	}
	p := path.Join(b.root, cleaned)

	entries, err := b.shell.FilesLs(ctx, p)
	if err != nil {
		if isIPFSNotFound(err) {
			return nil, nil, fmt.Errorf("%w: %s", interfaces.ErrContentNotFound, p)
		}
		return nil, nil, fmt.Errorf("failed to list IPFS directory: %w", err)
	}

	dirs := []string{}
	files := []string{}
	for _, entry := range entries {
		st, err := b.shell.FilesStat(ctx, path.Join(p, entry.Name))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to stat IPFS entry: %w", err)
		}
		if st.Type == "directory" {
			dirs = append(dirs, entry.Name)
		} else {
			files = append(files, entry.Name)
		}
	}
	return dirs, files, nil
}

// URL returns the gateway URL of the file's current CID.
func (b *IPFSBackend) URL(ctx context.Context, name string) (string, error) {
	if b.gatewayURL == "" {
		return "", fmt.Errorf("%w: IPFS backend %s has no gateway", interfaces.ErrUnsupported, b.Name())
	}
	st, err := b.stat(ctx, name)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/ipfs/%s", b.gatewayURL, st.Hash), nil
}

// ValidName returns a name safe to store.
func (b *IPFSBackend) ValidName(name string) (string, error) {
	return ValidName(name)
}

// AvailableName returns a name derived from name that does not exist yet.
func (b *IPFSBackend) AvailableName(ctx context.Context, name string) (string, error) {
	return AvailableName(ctx, name, b.Exists)
}

// Available checks if the IPFS node is accessible.
func (b *IPFSBackend) Available(ctx context.Context) bool {
	return b.shell.IsUp()
}

// Name returns a unique identifier for this storage backend.
func (b *IPFSBackend) Name() string {
	return fmt.Sprintf("ipfs-%s-%s", b.host, b.port)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *IPFSBackend) LocationURI() string {
	return b.locationURI
}

func (b *IPFSBackend) stat(ctx context.Context, name string) (*shell.FilesStatObject, error) {
	p, err := b.mfsPath(name)
	if err != nil {
		return nil, err
	}
	st, err := b.shell.FilesStat(ctx, p)
	if err != nil {
		if isIPFSNotFound(err) {
			return nil, fmt.Errorf("%w: %s", interfaces.ErrContentNotFound, p)
		}
		return nil, fmt.Errorf("failed to stat IPFS file: %w", err)
	}
	return st, nil
}

// mfsPath generates the MFS path of name.
func (b *IPFSBackend) mfsPath(name string) (string, error) {
	cleaned, err := CleanName(name)
	if err != nil {
		return "", err
	}
	return path.Join(b.root, cleaned), nil
}

func isIPFSNotFound(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "file does not exist") || strings.Contains(msg, "no link named")
}

package storage

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/ruteri/fallback-storage/interfaces"
)

// VaultConfig describes a KV v2 secrets engine location.
type VaultConfig struct {
	// Address of the Vault server (e.g. https://vault.example.com:8200)
	Address string
	// MountPath of the KV v2 engine (e.g. "secret")
	MountPath string
	// DataPath within the mount under which files are kept
	DataPath string
	// Token authenticates the client. When empty VAULT_TOKEN is used.
	Token string
	// ClientCert, when set, is presented for TLS client certificate authentication.
	ClientCert *tls.Certificate
}

// VaultBackend implements a storage backend on a HashiCorp Vault KV v2 engine.
// Each file is one secret holding its base64 encoded content.
type VaultBackend struct {
	client      *api.Client
	mountPath   string
	dataPath    string
	log         *slog.Logger
	locationURI string
}

// NewVaultBackend creates a new Vault storage backend.
func NewVaultBackend(cfg VaultConfig, log *slog.Logger) (*VaultBackend, error) {
	// Create Vault config
	config := api.DefaultConfig()
	config.Address = cfg.Address

	if cfg.ClientCert != nil {
		// Create HTTP transport with TLS config
		transport := &http.Transport{
			TLSClientConfig: &tls.Config{
				Certificates: []tls.Certificate{*cfg.ClientCert},
			},
		}
		config.HttpClient = &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		}
	}

	// Create Vault client
	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}

	// Ensure paths are properly formatted
	mountPath := strings.Trim(cfg.MountPath, "/")
	if mountPath == "" {
		mountPath = "secret"
	}
	dataPath := strings.Trim(cfg.DataPath, "/")

	return &VaultBackend{
		client:      client,
		mountPath:   mountPath,
		dataPath:    dataPath,
		log:         log,
		locationURI: fmt.Sprintf("vault://%s/%s/%s", strings.TrimPrefix(strings.TrimPrefix(cfg.Address, "https://"), "http://"), mountPath, dataPath),
	}, nil
}

// Open reads the latest version of name.
func (b *VaultBackend) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	data, err := b.read(ctx, name)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Save writes content as a new version of name.
func (b *VaultBackend) Save(ctx context.Context, name string, content io.Reader) (string, error) {
	start := time.Now()
	cleaned, err := CleanName(name)
	if err != nil {
		return "", err
	}
	p := b.secretPath("data", cleaned)

	data, err := io.ReadAll(content)
	if err != nil {
		return "", fmt.Errorf("failed to read content: %w", err)
	}

	// Prepare data for Vault (KV v2 format)
	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"content":  base64.StdEncoding.EncodeToString(data),
			"encoding": "base64",
		},
	}

	if _, err := b.client.Logical().WriteWithContext(ctx, p, secretData); err != nil {
		b.log.Error("Failed to write to Vault",
			slog.String("path", p),
			"err", err)
		return "", fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	b.log.Info("Successfully stored content in Vault",
		slog.String("path", p),
		slog.Duration("duration", time.Since(start)))

	return cleaned, nil
}

// Delete removes every version and the metadata of name.
func (b *VaultBackend) Delete(ctx context.Context, name string) error {
	cleaned, err := CleanName(name)
	if err != nil {
		return err
	}
	if _, err := b.client.Logical().DeleteWithContext(ctx, b.secretPath("metadata", cleaned)); err != nil {
		return fmt.Errorf("failed to delete from Vault: %w", err)
	}
	return nil
}

// Exists reports whether a live version of name exists.
func (b *VaultBackend) Exists(ctx context.Context, name string) (bool, error) {
	cleaned, err := CleanName(name)
	if err != nil {
		return false, err
	}
	secret, err := b.client.Logical().ReadWithContext(ctx, b.secretPath("data", cleaned))
	if err != nil {
		return false, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	if secret == nil || secret.Data == nil {
		return false, nil
	}
	return secret.Data["data"] != nil, nil
}

// Size returns the decoded size of name in bytes.
func (b *VaultBackend) Size(ctx context.Context, name string) (int64, error) {
	data, err := b.read(ctx, name)
	if err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

// CreatedTime returns when name was first written.
func (b *VaultBackend) CreatedTime(ctx context.Context, name string) (time.Time, error) {
	return b.metadataTime(ctx, name, "created_time")
}

// ModifiedTime returns when the latest version of name was written.
func (b *VaultBackend) ModifiedTime(ctx context.Context, name string) (time.Time, error) {
	return b.metadataTime(ctx, name, "updated_time")
}

// ListDir lists the folders and secrets directly under dir.
func (b *VaultBackend) ListDir(ctx context.Context, dir string) ([]string, []string, error) {
	cleaned, err := CleanDir(dir)
	if err != nil {
		return nil, nil, err
	}

	secret, err := b.client.Logical().ListWithContext(ctx, b.secretPath("metadata", cleaned))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	dirs := []string{}
	files := []string{}
	if secret == nil || secret.Data == nil {
		if cleaned == "" {
			return dirs, files, nil
		}
		return nil, nil, fmt.Errorf("%w: %s", interfaces.ErrContentNotFound, cleaned)
	}

	keys, _ := secret.Data["keys"].([]interface{})
	for _, k := range keys {
		key, ok := k.(string)
		if !ok {
			continue
		}
		if strings.HasSuffix(key, "/") {
			dirs = append(dirs, strings.TrimSuffix(key, "/"))
		} else {
			files = append(files, key)
		}
	}
	return dirs, files, nil
}

// ValidName returns a name safe to store.
func (b *VaultBackend) ValidName(name string) (string, error) {
	return ValidName(name)
}

// AvailableName returns a name derived from name that does not exist yet.
func (b *VaultBackend) AvailableName(ctx context.Context, name string) (string, error) {
	return AvailableName(ctx, name, b.Exists)
}

// Available checks if the Vault backend is accessible.
// It uses the health endpoint to verify that Vault is initialized and unsealed.
func (b *VaultBackend) Available(ctx context.Context) bool {
	// Check if we can access the Vault server
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	health, err := b.client.Sys().HealthWithContext(healthCtx)
	if err != nil {
		b.log.Debug("Vault health check failed", "err", err)
		return false
	}

	// Check if Vault is initialized and unsealed
	if !health.Initialized || health.Sealed {
		b.log.Debug("Vault is not available",
			slog.Bool("initialized", health.Initialized),
			slog.Bool("sealed", health.Sealed))
		return false
	}

	return true
}

// Name returns a unique identifier for this storage backend.
func (b *VaultBackend) Name() string {
	return fmt.Sprintf("vault-%s-%s", b.mountPath, b.dataPath)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *VaultBackend) LocationURI() string {
	return b.locationURI
}

func (b *VaultBackend) read(ctx context.Context, name string) ([]byte, error) {
	cleaned, err := CleanName(name)
	if err != nil {
		return nil, err
	}
	p := b.secretPath("data", cleaned)

	secret, err := b.client.Logical().ReadWithContext(ctx, p)
	if err != nil {
		b.log.Error("Failed to read from Vault",
			slog.String("path", p),
			"err", err)
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	if secret == nil || secret.Data == nil || secret.Data["data"] == nil {
		b.log.Debug("Content not found in Vault", slog.String("path", p))
		return nil, fmt.Errorf("%w: %s", interfaces.ErrContentNotFound, cleaned)
	}

	// Extract data from the response (KV v2 format)
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid data format in Vault response")
	}

	content, ok := data["content"].(string)
	if !ok {
		return nil, fmt.Errorf("content key not found in Vault data")
	}

	if encoding, _ := data["encoding"].(string); encoding != "base64" {
		return []byte(content), nil
	}
	decoded, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return nil, fmt.Errorf("invalid content encoding in Vault data: %w", err)
	}
	return decoded, nil
}

func (b *VaultBackend) metadataTime(ctx context.Context, name, field string) (time.Time, error) {
	cleaned, err := CleanName(name)
	if err != nil {
		return time.Time{}, err
	}

	secret, err := b.client.Logical().ReadWithContext(ctx, b.secretPath("metadata", cleaned))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	if secret == nil || secret.Data == nil {
		return time.Time{}, fmt.Errorf("%w: %s", interfaces.ErrContentNotFound, cleaned)
	}

	raw, _ := secret.Data[field].(string)
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s in Vault metadata: %w", field, err)
	}
	return t, nil
}

// secretPath builds the KV v2 API path of kind ("data" or "metadata") for name.
func (b *VaultBackend) secretPath(kind, name string) string {
	return path.Join(b.mountPath, kind, b.dataPath, name)
}

package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/ruteri/fallback-storage/interfaces"
)

// DefaultGitHubAPI is the GitHub REST API base URL.
const DefaultGitHubAPI = "https://api.github.com"

// GitHubBackend implements a read-only storage backend on a repository's
// contents API. It cannot save or delete, so writes fall through to the
// next backend.
type GitHubBackend struct {
	owner       string
	repo        string
	ref         string
	root        string
	apiBase     string
	token       string
	client      *http.Client
	log         *slog.Logger
	locationURI string
}

// GitHubContent is a file or directory entry from GitHub's contents API.
type GitHubContent struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Path        string `json:"path"`
	SHA         string `json:"sha"`
	Size        int64  `json:"size"`
	Encoding    string `json:"encoding"`
	Content     string `json:"content"`
	DownloadURL string `json:"download_url"`
}

// NewGitHubBackend creates a new GitHub storage backend for reading from a repository.
// ref selects a branch, tag or commit (empty means the default branch), root a
// directory inside the repository and apiBase an alternative API endpoint.
func NewGitHubBackend(owner, repo, ref, root, apiBase, token string, log *slog.Logger) *GitHubBackend {
	if apiBase == "" {
		apiBase = DefaultGitHubAPI
	}
	uri := fmt.Sprintf("github://%s/%s", owner, repo)
	if root = strings.Trim(root, "/"); root != "" {
		uri += "/" + root
	}
	if ref != "" {
		uri += "?ref=" + url.QueryEscape(ref)
	}

	return &GitHubBackend{
		owner:       owner,
		repo:        repo,
		ref:         ref,
		root:        root,
		apiBase:     strings.TrimSuffix(apiBase, "/"),
		token:       token,
		client:      &http.Client{Timeout: 30 * time.Second},
		log:         log,
		locationURI: uri,
	}
}

// Open returns the content of a repository file.
func (b *GitHubBackend) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	file, err := b.file(ctx, name)
	if err != nil {
		return nil, err
	}

	// The contents API omits content for files over 1MB
	if file.Content == "" && file.Size > 0 && file.DownloadURL != "" {
		return b.download(ctx, file.DownloadURL)
	}

	if file.Encoding != "base64" {
		return nil, fmt.Errorf("unexpected content encoding: %s", file.Encoding)
	}
	data, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(file.Content, "\n", ""))
	if err != nil {
		return nil, fmt.Errorf("failed to decode file content: %w", err)
	}

	b.log.Debug("Fetched content from GitHub",
		slog.String("path", file.Path),
		slog.Int("size", len(data)))

	return io.NopCloser(bytes.NewReader(data)), nil
}

// Exists reports whether a file or directory exists at name.
func (b *GitHubBackend) Exists(ctx context.Context, name string) (bool, error) {
	cleaned, err := CleanName(name)
	if err != nil {
		return false, err
	}
	_, _, err = b.contents(ctx, cleaned)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, interfaces.ErrContentNotFound) {
		return false, nil
	}
	return false, err
}

// Size returns the size of a repository file.
func (b *GitHubBackend) Size(ctx context.Context, name string) (int64, error) {
	file, err := b.file(ctx, name)
	if err != nil {
		return 0, err
	}
	return file.Size, nil
}

// ListDir lists the directories and files directly under dir.
func (b *GitHubBackend) ListDir(ctx context.Context, dir string) ([]string, []string, error) {
	cleaned, err := CleanDir(dir)
	if err != nil {
		return nil, nil, err
	}
	_, entries, err := b.contents(ctx, cleaned)
	if err != nil {
		return nil, nil, err
	}
	if entries == nil {
		return nil, nil, fmt.Errorf("%s is not a directory", cleaned)
	}

	dirs := []string{}
	files := []string{}
	for _, entry := range entries {
		if entry.Type == "dir" {
			dirs = append(dirs, entry.Name)
		} else {
			files = append(files, entry.Name)
		}
	}
	return dirs, files, nil
}

// URL returns the raw download URL of a repository file.
func (b *GitHubBackend) URL(ctx context.Context, name string) (string, error) {
	file, err := b.file(ctx, name)
	if err != nil {
		return "", err
	}
	return file.DownloadURL, nil
}

// Available checks if the GitHub backend is accessible.
func (b *GitHubBackend) Available(ctx context.Context) bool {
	// Try to access the repository
	resp, err := b.get(ctx, fmt.Sprintf("%s/repos/%s/%s", b.apiBase, b.owner, b.repo))
	if err != nil {
		b.log.Debug("GitHub backend unavailable", "err", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b.log.Debug("GitHub backend unavailable",
			slog.String("status", resp.Status))
		return false
	}

	return true
}

// Name returns a unique identifier for this storage backend.
func (b *GitHubBackend) Name() string {
	return fmt.Sprintf("github-%s-%s", b.owner, b.repo)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *GitHubBackend) LocationURI() string {
	return b.locationURI
}

func (b *GitHubBackend) file(ctx context.Context, name string) (*GitHubContent, error) {
	cleaned, err := CleanName(name)
	if err != nil {
		return nil, err
	}
	file, _, err := b.contents(ctx, cleaned)
	if err != nil {
		return nil, err
	}
	if file == nil || file.Type != "file" {
		return nil, fmt.Errorf("%w: %s is not a file", interfaces.ErrContentNotFound, cleaned)
	}
	return file, nil
}

// contents fetches repository contents at p. Exactly one of the results is
// non-nil on success: a file entry or a directory listing.
func (b *GitHubBackend) contents(ctx context.Context, p string) (*GitHubContent, []GitHubContent, error) {
	repoPath := path.Join(b.root, p)
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s", b.apiBase, b.owner, b.repo, escapePath(repoPath))
	if b.ref != "" {
		u += "?ref=" + url.QueryEscape(b.ref)
	}

	resp, err := b.get(ctx, u)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil, fmt.Errorf("%w: %s", interfaces.ErrContentNotFound, repoPath)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, nil, fmt.Errorf("GitHub API error: %s, %s", resp.Status, string(body))
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, nil, fmt.Errorf("failed to decode contents: %w", err)
	}

	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		entries := []GitHubContent{}
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, nil, fmt.Errorf("failed to decode directory listing: %w", err)
		}
		return nil, entries, nil
	}

	var file GitHubContent
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, nil, fmt.Errorf("failed to decode file entry: %w", err)
	}
	return &file, nil, nil
}

func (b *GitHubBackend) download(ctx context.Context, u string) (io.ReadCloser, error) {
	resp, err := b.get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to download file: %s", resp.Status)
	}
	return resp.Body, nil
}

func (b *GitHubBackend) get(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}
	return b.client.Do(req)
}

func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

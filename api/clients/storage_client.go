package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ruteri/fallback-storage/api"
	"github.com/ruteri/fallback-storage/interfaces"
)

// maxErrorBody bounds how much of an error response is kept in the error.
const maxErrorBody = 4096

// StorageClient talks to a fallback storage HTTP server.
type StorageClient struct {
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

// NewStorageClient creates a client for the server at baseURL. A nil
// httpClient is replaced by one with a 30 second timeout.
func NewStorageClient(baseURL string, httpClient *http.Client, log *slog.Logger) *StorageClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &StorageClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		log:        log,
	}
}

// Open streams the content of name. The caller must close the reader.
func (c *StorageClient) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, http.MethodGet, "open", c.fileURL("files", name), nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Save uploads content and returns the name the server stored it under.
func (c *StorageClient) Save(ctx context.Context, name string, content io.Reader) (string, error) {
	var parsed api.NameResponse
	if err := c.doJSON(ctx, http.MethodPut, "save", c.fileURL("files", name), content, &parsed); err != nil {
		return "", err
	}
	return parsed.Name, nil
}

// Delete removes name on the server.
func (c *StorageClient) Delete(ctx context.Context, name string) error {
	resp, err := c.do(ctx, http.MethodDelete, "delete", c.fileURL("files", name), nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Exists reports whether the server holds name.
func (c *StorageClient) Exists(ctx context.Context, name string) (bool, error) {
	resp, err := c.do(ctx, http.MethodHead, "exists", c.fileURL("files", name), nil)
	if err != nil {
		if errors.Is(err, interfaces.ErrContentNotFound) {
			return false, nil
		}
		return false, err
	}
	resp.Body.Close()
	return true, nil
}

// Size returns the size of name in bytes.
func (c *StorageClient) Size(ctx context.Context, name string) (int64, error) {
	info, err := c.Stat(ctx, name)
	if err != nil {
		return 0, err
	}
	return info.Size, nil
}

func (c *StorageClient) AccessedTime(ctx context.Context, name string) (time.Time, error) {
	return c.statTime(ctx, name, "accessed", func(i *api.FileInfo) *time.Time { return i.AccessedTime })
}

func (c *StorageClient) CreatedTime(ctx context.Context, name string) (time.Time, error) {
	return c.statTime(ctx, name, "created", func(i *api.FileInfo) *time.Time { return i.CreatedTime })
}

func (c *StorageClient) ModifiedTime(ctx context.Context, name string) (time.Time, error) {
	return c.statTime(ctx, name, "modified", func(i *api.FileInfo) *time.Time { return i.ModifiedTime })
}

// Stat fetches everything the server knows about name in one request.
func (c *StorageClient) Stat(ctx context.Context, name string) (*api.FileInfo, error) {
	var info api.FileInfo
	if err := c.doJSON(ctx, http.MethodGet, "stat", c.fileURL("stat", name), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ListDir lists the directories and files under dir.
func (c *StorageClient) ListDir(ctx context.Context, dir string) ([]string, []string, error) {
	endpoint := c.baseURL + "/api/list"
	if dir = strings.Trim(dir, "/"); dir != "" {
		endpoint = c.fileURL("list", dir)
	}

	var listing api.Listing
	if err := c.doJSON(ctx, http.MethodGet, "listdir", endpoint, nil, &listing); err != nil {
		return nil, nil, err
	}
	if listing.Directories == nil {
		listing.Directories = []string{}
	}
	if listing.Files == nil {
		listing.Files = []string{}
	}
	return listing.Directories, listing.Files, nil
}

// URL returns the URL the server reports for name.
func (c *StorageClient) URL(ctx context.Context, name string) (string, error) {
	var parsed api.URLResponse
	if err := c.doJSON(ctx, http.MethodGet, "url", c.fileURL("url", name), nil, &parsed); err != nil {
		return "", err
	}
	return parsed.URL, nil
}

// ValidName asks the server to normalize name.
func (c *StorageClient) ValidName(name string) (string, error) {
	return c.name(context.Background(), "valid", name)
}

// AvailableName asks the server for a free name derived from name.
func (c *StorageClient) AvailableName(ctx context.Context, name string) (string, error) {
	return c.name(ctx, "available", name)
}

// Available reports whether the server is ready to take requests.
func (c *StorageClient) Available(ctx context.Context) bool {
	resp, err := c.do(ctx, http.MethodGet, "readyz", c.baseURL+"/readyz", nil)
	if err != nil {
		c.log.Debug("Remote storage not ready", slog.String("url", c.baseURL), "err", err)
		return false
	}
	resp.Body.Close()
	return true
}

// Name returns a unique identifier for this storage backend.
func (c *StorageClient) Name() string {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "remote"
	}
	return fmt.Sprintf("remote-%s%s", u.Host, u.Path)
}

// LocationURI returns the base URL of the server.
func (c *StorageClient) LocationURI() string {
	return c.baseURL
}

func (c *StorageClient) name(ctx context.Context, kind, name string) (string, error) {
	endpoint := fmt.Sprintf("%s/api/names/%s?%s", c.baseURL, kind, url.Values{"name": {name}}.Encode())

	var parsed api.NameResponse
	if err := c.doJSON(ctx, http.MethodGet, kind+"_name", endpoint, nil, &parsed); err != nil {
		return "", err
	}
	return parsed.Name, nil
}

func (c *StorageClient) statTime(ctx context.Context, name, kind string, pick func(*api.FileInfo) *time.Time) (time.Time, error) {
	info, err := c.Stat(ctx, name)
	if err != nil {
		return time.Time{}, err
	}
	t := pick(info)
	if t == nil {
		return time.Time{}, fmt.Errorf("%w: server has no %s time for %s", interfaces.ErrUnsupported, kind, name)
	}
	return *t, nil
}

func (c *StorageClient) fileURL(route, name string) string {
	segments := strings.Split(strings.TrimPrefix(name, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/api/%s/%s", c.baseURL, route, strings.Join(segments, "/"))
}

func (c *StorageClient) doJSON(ctx context.Context, method, op, endpoint string, body io.Reader, out any) error {
	resp, err := c.do(ctx, method, op, endpoint, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("could not parse %s response: %w", op, err)
	}
	return nil
}

// do sends the request and returns the response for 2xx statuses. Any other
// status is turned into an error and the body is closed.
func (c *StorageClient) do(ctx context.Context, method, op, endpoint string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: could not request %s endpoint: %w", interfaces.ErrBackendUnavailable, op, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	return nil, statusError(op, resp)
}

func statusError(op string, resp *http.Response) error {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := fmt.Sprintf("%s endpoint returned %d", op, resp.StatusCode)
	if text := strings.TrimSpace(string(bodyBytes)); text != "" {
		msg = fmt.Sprintf("%s: %s", msg, text)
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", interfaces.ErrContentNotFound, msg)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", interfaces.ErrInvalidName, msg)
	case http.StatusNotImplemented:
		return fmt.Errorf("%w: %s", interfaces.ErrUnsupported, msg)
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s", interfaces.ErrBackendUnavailable, msg)
	default:
		return errors.New(msg)
	}
}

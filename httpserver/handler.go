package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/fallback-storage/api"
	"github.com/ruteri/fallback-storage/interfaces"
	"github.com/ruteri/fallback-storage/storage"
)

// maxBodySize is the maximum allowed upload size (64MB).
const maxBodySize = 64 * 1024 * 1024

// FileStorage is the storage the handler serves. *storage.FallbackStorage implements it.
type FileStorage interface {
	interfaces.Opener
	interfaces.Saver
	interfaces.Deleter
	interfaces.Exister
	interfaces.Sizer
	interfaces.AccessTimer
	interfaces.CreationTimer
	interfaces.ModificationTimer
	interfaces.Lister
	interfaces.URLProvider
	interfaces.ValidNamer
	interfaces.AvailableNamer
	interfaces.Pather
}

// Handler serves a FileStorage over HTTP.
type Handler struct {
	storage FileStorage
	log     *slog.Logger
}

// NewHandler creates a new HTTP request handler serving storage.
func NewHandler(storage FileStorage, log *slog.Logger) *Handler {
	return &Handler{
		storage: storage,
		log:     log,
	}
}

// HandleOpen streams the content of a file.
func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	name, ok := h.fileName(w, r)
	if !ok {
		return
	}

	rc, err := h.storage.Open(r.Context(), name)
	if err != nil {
		h.writeError(w, "open", name, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.log.Error("Failed to stream content", slog.String("name", name), "err", err)
	}
}

// HandleSave stores the request body and returns the name it was stored under.
func (h *Handler) HandleSave(w http.ResponseWriter, r *http.Request) {
	name, ok := h.fileName(w, r)
	if !ok {
		return
	}

	body := http.MaxBytesReader(w, r.Body, maxBodySize)
	stored, err := h.storage.Save(r.Context(), name, body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		h.writeError(w, "save", name, err)
		return
	}

	h.log.Info("Stored file", slog.String("requested", name), slog.String("name", stored))
	writeJSON(w, http.StatusCreated, api.NameResponse{Name: stored})
}

// HandleDelete removes a file from the first backend that deletes it.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	name, ok := h.fileName(w, r)
	if !ok {
		return
	}

	if err := h.storage.Delete(r.Context(), name); err != nil {
		h.writeError(w, "delete", name, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleExists answers HEAD requests with 200 or 404.
func (h *Handler) HandleExists(w http.ResponseWriter, r *http.Request) {
	name, ok := h.fileName(w, r)
	if !ok {
		return
	}

	exists, err := h.storage.Exists(r.Context(), name)
	if err != nil {
		w.WriteHeader(statusFor(err))
		return
	}
	if !exists {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// HandleStat returns size, times and URL of a file.
func (h *Handler) HandleStat(w http.ResponseWriter, r *http.Request) {
	name, ok := h.fileName(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	size, err := h.storage.Size(ctx, name)
	if err != nil {
		h.writeError(w, "stat", name, err)
		return
	}

	info := api.FileInfo{
		Name:         name,
		Size:         size,
		AccessedTime: h.optionalTime(ctx, name, h.storage.AccessedTime),
		CreatedTime:  h.optionalTime(ctx, name, h.storage.CreatedTime),
		ModifiedTime: h.optionalTime(ctx, name, h.storage.ModifiedTime),
	}
	if u, err := h.storage.URL(ctx, name); err == nil {
		info.URL = u
	}

	writeJSON(w, http.StatusOK, info)
}

// HandleList lists a directory across all backends.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	dir := chi.URLParam(r, "*")

	dirs, files, err := h.storage.ListDir(r.Context(), dir)
	if err != nil {
		h.writeError(w, "listdir", dir, err)
		return
	}
	writeJSON(w, http.StatusOK, api.Listing{Directories: dirs, Files: files})
}

// HandleURL returns the URL a file is served at.
func (h *Handler) HandleURL(w http.ResponseWriter, r *http.Request) {
	name, ok := h.fileName(w, r)
	if !ok {
		return
	}

	u, err := h.storage.URL(r.Context(), name)
	if err != nil {
		h.writeError(w, "url", name, err)
		return
	}
	writeJSON(w, http.StatusOK, api.URLResponse{URL: u})
}

// HandlePath returns the local filesystem path of a file.
func (h *Handler) HandlePath(w http.ResponseWriter, r *http.Request) {
	name, ok := h.fileName(w, r)
	if !ok {
		return
	}

	p, err := h.storage.Path(name)
	if err != nil {
		h.writeError(w, "path", name, err)
		return
	}
	writeJSON(w, http.StatusOK, api.PathResponse{Path: p})
}

// HandleValidName normalizes the name query parameter.
func (h *Handler) HandleValidName(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "Missing name parameter", http.StatusBadRequest)
		return
	}

	valid, err := h.storage.ValidName(name)
	if err != nil {
		h.writeError(w, "get_valid_name", name, err)
		return
	}
	writeJSON(w, http.StatusOK, api.NameResponse{Name: valid})
}

// HandleAvailableName negotiates a free name for the name query parameter.
func (h *Handler) HandleAvailableName(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "Missing name parameter", http.StatusBadRequest)
		return
	}

	available, err := h.storage.AvailableName(r.Context(), name)
	if err != nil {
		h.writeError(w, "get_available_name", name, err)
		return
	}
	writeJSON(w, http.StatusOK, api.NameResponse{Name: available})
}

func (h *Handler) fileName(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if name == "" {
		http.Error(w, "Missing file name in URL", http.StatusBadRequest)
		return "", false
	}
	return name, true
}

func (h *Handler) optionalTime(ctx context.Context, name string, get func(context.Context, string) (time.Time, error)) *time.Time {
	t, err := get(ctx, name)
	if err != nil {
		return nil
	}
	return &t
}

func (h *Handler) writeError(w http.ResponseWriter, op, name string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusNotImplemented {
		h.log.Error("Storage operation failed",
			slog.String("op", op),
			slog.String("name", name),
			"err", err)
	} else {
		h.log.Debug("Storage operation rejected",
			slog.String("op", op),
			slog.String("name", name),
			slog.Int("status", status),
			"err", err)
	}
	http.Error(w, err.Error(), status)
}

// statusFor maps storage errors to HTTP status codes.
func statusFor(err error) int {
	var negotiation *storage.NegotiationFailedError
	var aggregate *storage.AggregateBackendError

	switch {
	case storage.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, interfaces.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, interfaces.ErrUnsupported):
		return http.StatusNotImplemented
	case errors.As(err, &negotiation):
		return http.StatusConflict
	case errors.Is(err, interfaces.ErrBackendUnavailable), errors.As(err, &aggregate):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

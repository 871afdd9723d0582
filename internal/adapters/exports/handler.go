package exports

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"gridboard/internal/blob"
)

// Handler provides HTTP access to dashboard exports.
//
//	POST /exports               {"formats":["json","csv","xlsx"]} -> 202 {"export": record}
//	GET  /exports/{id}          -> 200 {"export": record}
//	GET  /exports/{id}/{format} -> artifact bytes
type Handler struct {
	Exports Scheduler
	Blobs   blob.Store
}

// NewHandler constructs an export handler.
func NewHandler(exports Scheduler, blobs blob.Store) *Handler {
	return &Handler{Exports: exports, Blobs: blobs}
}

type exportRequest struct {
	Formats     []string `json:"formats"`
	RequestedBy string   `json:"requested_by"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Exports == nil {
		http.NotFound(w, r)
		return
	}
	path := strings.TrimSuffix(r.URL.Path, "/")
	if path == "/exports" {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.handleCreate(w, r)
		return
	}
	rest, ok := strings.CutPrefix(path, "/exports/")
	if !ok || rest == "" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id, format, hasFormat := strings.Cut(rest, "/")
	record, found := h.Exports.Get(id)
	if !found {
		writeError(w, http.StatusNotFound, "export not found")
		return
	}
	if !hasFormat {
		writeJSON(w, http.StatusOK, map[string]any{"export": record})
		return
	}
	h.handleDownload(w, r, record, format)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid export request payload")
		return
	}
	formats := make([]Format, 0, len(req.Formats))
	for _, name := range req.Formats {
		f, err := ParseFormat(name)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		formats = append(formats, f)
	}
	record, err := h.Exports.Enqueue(r.Context(), Input{Formats: formats, RequestedBy: req.RequestedBy})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"export": record})
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request, record Record, format string) {
	if h.Blobs == nil {
		http.NotFound(w, r)
		return
	}
	var key string
	for _, a := range record.Artifacts {
		if string(a.Format) == format {
			key = a.Key
		}
	}
	if key == "" {
		writeError(w, http.StatusNotFound, "artifact not found")
		return
	}
	info, body, err := h.Blobs.Get(r.Context(), key)
	if errors.Is(err, blob.ErrNotFound) {
		writeError(w, http.StatusNotFound, "artifact not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer func() { _ = body.Close() }()
	w.Header().Set("Content-Type", info.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="dashboard.`+format+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, body)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

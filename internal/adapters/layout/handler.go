// Package layout serves the layout sync API: the whole-dashboard snapshot at
// /layout and single widgets at /widget.
package layout

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"gridboard/pkg/dashboard"
)

// Handler provides HTTP access to a dashboard.Store.
type Handler struct {
	Store  dashboard.Store
	Logger *slog.Logger
}

// NewHandler constructs a layout sync handler.
func NewHandler(store dashboard.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{Store: store, Logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		writeError(w, http.StatusInternalServerError, "store not configured")
		return
	}
	path := strings.TrimSuffix(r.URL.Path, "/")
	switch path {
	case "/layout":
		switch r.Method {
		case http.MethodGet:
			h.handleGetLayout(w, r)
		case http.MethodPost:
			h.handlePostLayout(w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	case "/widget":
		switch r.Method {
		case http.MethodGet:
			h.handleGetWidget(w, r)
		case http.MethodDelete:
			h.handleDeleteWidget(w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleGetLayout(w http.ResponseWriter, r *http.Request) {
	state, err := h.Store.Read(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) handlePostLayout(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	replacement, err := dashboard.DecodeReplacement(body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	state, err := h.Store.Replace(r.Context(), replacement)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.Logger.DebugContext(r.Context(), "layout replaced",
		slog.Bool("layout", replacement.HasLayout), slog.Bool("widgets", replacement.HasWidgets),
		slog.Int("items", len(state.Layout)), slog.Int("configs", len(state.Widgets)))
	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) handleGetWidget(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Store.GetWidget(r.Context(), r.URL.Query().Get("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"widget": cfg})
}

type deleteResponse struct {
	OK      bool                              `json:"ok"`
	Layout  []dashboard.LayoutItem            `json:"layout"`
	Widgets map[string]dashboard.WidgetConfig `json:"widgets"`
}

func (h *Handler) handleDeleteWidget(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	state, err := h.Store.DeleteWidget(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.Logger.InfoContext(r.Context(), "widget deleted", slog.String("id", id))
	writeJSON(w, http.StatusOK, deleteResponse{OK: true, Layout: state.Layout, Widgets: state.Widgets})
}

// fail maps store sentinels onto status codes; anything else is a 500
// carrying the error text.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, dashboard.ErrInvalidPayload):
		writeError(w, http.StatusBadRequest, dashboard.ErrInvalidPayload.Error())
	case errors.Is(err, dashboard.ErrMissingID):
		writeError(w, http.StatusBadRequest, dashboard.ErrMissingID.Error())
	case errors.Is(err, dashboard.ErrNotFound):
		writeError(w, http.StatusNotFound, dashboard.ErrNotFound.Error())
	default:
		h.Logger.ErrorContext(r.Context(), "layout request failed",
			slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

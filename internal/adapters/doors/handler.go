// Package doors exposes the door catalog over HTTP.
package doors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"doorcore/internal/core"
	"doorcore/internal/forge"
	"doorcore/pkg/domain"
)

// Handler routes catalog requests to the service layer and shapes responses.
type Handler struct {
	service   *core.Service
	exporter  *core.Exporter
	tokens    *forge.TokenCache
	metrics   http.Handler
	devMode   bool
	startedAt time.Time
}

// HandlerOption customizes handler construction.
type HandlerOption func(*Handler)

// WithExporter enables the catalog export endpoints.
func WithExporter(e *core.Exporter) HandlerOption {
	return func(h *Handler) { h.exporter = e }
}

// WithTokenCache enables the /token proxy endpoint.
func WithTokenCache(t *forge.TokenCache) HandlerOption {
	return func(h *Handler) { h.tokens = t }
}

// WithMetricsHandler mounts a metrics exposition handler at /metrics.
func WithMetricsHandler(m http.Handler) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// WithDevMode includes internal error detail in 5xx responses.
func WithDevMode(enabled bool) HandlerOption {
	return func(h *Handler) { h.devMode = enabled }
}

// NewHandler constructs the catalog HTTP handler.
func NewHandler(service *core.Service, opts ...HandlerOption) *Handler {
	h := &Handler{service: service, startedAt: time.Now()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == "" && r.Method == http.MethodGet:
		h.handleBanner(w, r)
	case path == "/health" && r.Method == http.MethodGet:
		h.handleHealth(w, r)
	case path == "/token" && r.Method == http.MethodGet:
		h.handleToken(w, r)
	case path == "/metrics" && r.Method == http.MethodGet && h.metrics != nil:
		h.metrics.ServeHTTP(w, r)
	case path == "/api/doors" && r.Method == http.MethodGet:
		h.withStore(w, r, h.handleList)
	case path == "/api/doors/add" && r.Method == http.MethodPost:
		h.withStore(w, r, h.handleAdd)
	case path == "/api/doors/batch" && r.Method == http.MethodPost:
		h.withStore(w, r, h.handleBatch)
	case path == "/api/doors/update" && r.Method == http.MethodPatch:
		h.withStore(w, r, h.handleUpdate)
	case path == "/api/doors/bulk-update" && r.Method == http.MethodPatch:
		h.withStore(w, r, h.handleBulkUpdate)
	case path == "/api/doors/delete" && r.Method == http.MethodDelete:
		h.withStore(w, r, h.handleDelete)
	case path == "/api/doors/export" && r.Method == http.MethodPost && h.exporter != nil:
		h.withStore(w, r, h.handleExportCreate)
	case strings.HasPrefix(path, "/api/doors/export/") && r.Method == http.MethodGet && h.exporter != nil:
		h.handleExportFetch(w, r, strings.TrimPrefix(path, "/api/doors/export/"))
	default:
		writeError(w, http.StatusNotFound, "route_not_found", "route not found")
	}
}

// withStore gates store-touching endpoints on connectivity.
func (h *Handler) withStore(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request)) {
	if err := h.service.Store().Ping(r.Context()); err != nil {
		h.writeDomainError(w, domain.StoreUnavailableError{Err: err})
		return
	}
	next(w, r)
}

func (h *Handler) storeConnected(r *http.Request) string {
	if err := h.service.Store().Ping(r.Context()); err != nil {
		return "disconnected"
	}
	return "connected"
}

func (h *Handler) handleBanner(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "doorcore catalog service",
		"status":    "running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"database":  h.storeConnected(r),
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "healthy",
		"uptimeSeconds": int64(time.Since(h.startedAt).Seconds()),
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
		"database":      h.storeConnected(r),
	})
}

func (h *Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	if h.tokens == nil {
		writeError(w, http.StatusNotFound, "route_not_found", "token proxy not configured")
		return
	}
	tok, err := h.tokens.Get(r.Context())
	if err != nil {
		h.writeInternal(w, "token_fetch_failed", "failed to get token", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(tok)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	recs, err := h.service.ListRecords(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if recs == nil {
		recs = []domain.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	var rec domain.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "request body must be a door record")
		return
	}
	created, err := h.service.CreateRecord(r.Context(), rec)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	var recs []domain.Record
	if err := json.NewDecoder(r.Body).Decode(&recs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "request body must be an array of door records")
		return
	}
	created, err := h.service.CreateBatch(r.Context(), recs)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "request body must be a JSON object")
		return
	}
	targetID, body := core.SplitIdentifier(payload)
	out, err := h.service.PropagateUpdate(r.Context(), targetID, body)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":       "door update completed, all doors with the same material updated",
		"door":          out.Record,
		"updatedFields": out.UpdatedFields,
		"bulkUpdateResult": map[string]any{
			"groupingKey":  out.GroupingKey,
			"totalUpdated": out.TotalUpdated,
			"message":      fmt.Sprintf("updated %d doors with material %s", out.TotalUpdated, out.GroupingKey),
		},
	})
}

type bulkUpdateRequest struct {
	Criteria   map[string]any `json:"criteria"`
	UpdateData map[string]any `json:"updateData"`
}

func (h *Handler) handleBulkUpdate(w http.ResponseWriter, r *http.Request) {
	var req bulkUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "request body must carry criteria and updateData")
		return
	}
	out, err := h.service.BulkUpdate(r.Context(), req.Criteria, req.UpdateData)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":       "bulk update completed successfully",
		"matchedCount":  out.Matched,
		"modifiedCount": out.Modified,
		"criteria":      out.Criteria,
		"updatedFields": out.UpdatedFields,
	})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "request body must be a JSON object")
		return
	}
	id, _ := core.SplitIdentifier(payload)
	if err := h.service.DeleteRecord(r.Context(), id); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("door %s deleted successfully", id),
	})
}

func (h *Handler) handleExportCreate(w http.ResponseWriter, r *http.Request) {
	info, err := h.exporter.Export(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "catalog export created",
		"export":  info,
	})
}

func (h *Handler) handleExportFetch(w http.ResponseWriter, r *http.Request, key string) {
	if key == "" {
		writeError(w, http.StatusNotFound, "route_not_found", "export key required")
		return
	}
	info, raw, err := h.exporter.Fetch(r.Context(), "exports/"+key)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

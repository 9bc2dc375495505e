package doors

import (
	"encoding/json"
	"errors"
	"net/http"

	"doorcore/internal/infra/blob"
	"doorcore/pkg/domain"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{"error": code, "message": message})
}

// writeDomainError maps the error taxonomy onto HTTP statuses with a stable
// machine code plus a human message. Internal detail is attached only in dev
// mode.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var (
		invalidInput domain.InvalidInputError
		invalidID    domain.InvalidIdentifierError
		notFound     domain.NotFoundError
		unavailable  domain.StoreUnavailableError
		opFailed     domain.StoreOperationError
	)
	switch {
	case errors.As(err, &invalidInput):
		body := map[string]any{"error": "invalid_input", "message": invalidInput.Error()}
		if len(invalidInput.Missing) > 0 {
			body["missingFields"] = invalidInput.Missing
		}
		writeJSON(w, http.StatusBadRequest, body)
	case errors.As(err, &invalidID):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "invalid_identifier",
			"message": invalidID.Error(),
			"id":      invalidID.Raw,
		})
	case errors.As(err, &notFound):
		body := map[string]any{"error": "not_found", "message": notFound.Error()}
		if notFound.Criteria != nil {
			body["criteria"] = notFound.Criteria
		}
		writeJSON(w, http.StatusNotFound, body)
	case errors.As(err, &unavailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error":   "store_unavailable",
			"message": "database not connected, please try again later",
		})
	case errors.As(err, &opFailed):
		h.writeInternal(w, "store_operation_failed", opFailed.Error(), opFailed.Err)
	case errors.Is(err, blob.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "export not found")
	default:
		h.writeInternal(w, "internal_error", "internal server error", err)
	}
}

func (h *Handler) writeInternal(w http.ResponseWriter, code, message string, cause error) {
	body := map[string]any{"error": code, "message": message}
	if h.devMode && cause != nil {
		body["details"] = cause.Error()
	}
	writeJSON(w, http.StatusInternalServerError, body)
}

package dashboard

import (
	"encoding/json"
	"errors"
	"net/http"

	"stockroom/internal/adapters/exports"
	"stockroom/internal/core"
)

// statusFor maps service and export errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case core.IsValidation(err):
		return http.StatusBadRequest
	case core.IsNotFound(err), errors.Is(err, exports.ErrUnknownExport):
		return http.StatusNotFound
	case core.IsConflict(err), errors.Is(err, exports.ErrNotReady):
		return http.StatusConflict
	case errors.Is(err, exports.ErrQueueFull):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "operation", op, "error", err)
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

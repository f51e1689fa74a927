// Package transport provides HTTP handlers for attestation pre-checks.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pendergraft/sealreg/internal/verification/domain"
)

// Service defines the check service interface for HTTP transport.
type Service interface {
	Check(ctx context.Context, req domain.CheckRequest) (*domain.CheckResult, error)
}

// Handler handles HTTP requests for attestation checks.
type Handler struct {
	svc Service
}

// NewHandler creates a new attestation check HTTP handler.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the check routes on a chi router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/attestations/check", h.handleCheck)
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64*1024)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read request body")
		return
	}

	var req domain.CheckRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON")
		return
	}

	result, err := h.svc.Check(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrBackendNotFound) {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Sealing backend not supported")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to check attestation")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}

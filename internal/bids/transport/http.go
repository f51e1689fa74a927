// Package transport provides HTTP handlers for the bids domain.
package transport

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pendergraft/sealreg/internal/auth"
	"github.com/pendergraft/sealreg/internal/bids/domain"
)

// maxBodySize caps bid request bodies. Sealed blobs are small; anything
// larger is garbage.
const maxBodySize = 64 * 1024

// anonymousBidder is the bidder identity when auth is disabled (AUTH_TYPE=none
// dev servers). With auth enabled the middleware rejects unauthenticated
// requests before the handler runs.
const anonymousBidder = "anonymous"

func bidderFrom(r *http.Request) string {
	if id := auth.GetOwnerIDFromContext(r.Context()); id != "" {
		return id
	}
	return anonymousBidder
}

// Handler handles HTTP requests for bids.
type Handler struct {
	svc domain.Service
}

// NewHandler creates a new bids HTTP handler.
func NewHandler(svc domain.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterReadRoutes registers read-only bid routes (no auth required).
func (h *Handler) RegisterReadRoutes(r chi.Router) {
	r.Get("/bids", h.handleListActive)
	r.Get("/bids/{domain}", h.handleGet)
	r.Get("/bids/{domain}/sealed", h.handleGetSealed)
	r.Get("/domains/{domain}", h.handleDomainStatus)
}

// RegisterWriteRoutes registers bid routes that act on behalf of a bidder
// (auth required). The authenticated key ID is the bidder identity.
func (h *Handler) RegisterWriteRoutes(r chi.Router) {
	r.Post("/bids/{domain}", h.handlePlace)
	r.Post("/bids/{domain}/withdraw", h.handleWithdraw)
}

// RegisterSettlementRoutes registers the verification and registration
// routes. Anyone holding a valid oracle attestation can drive settlement, so
// these carry no bidder auth.
func (h *Handler) RegisterSettlementRoutes(r chi.Router) {
	r.Post("/bids/{domain}/verify", h.handleVerify)
	r.Post("/bids/{domain}/register", h.handleRegister)
}

func (h *Handler) handlePlace(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "domain")

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read request body")
		return
	}

	var req PlaceRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON")
		return
	}

	if err := h.svc.Place(r.Context(), name, bidderFrom(r), req.ToDomain()); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidName),
			errors.Is(err, domain.ErrInvalidBidder),
			errors.Is(err, domain.ErrNoDeposit),
			errors.Is(err, domain.ErrInvalidExpiration):
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		case errors.Is(err, domain.ErrMalformedAmount):
			writeError(w, http.StatusBadRequest, "MALFORMED_AMOUNT", err.Error())
		case errors.Is(err, domain.ErrAlreadyBid):
			writeError(w, http.StatusConflict, "BID_EXISTS", "A live bid already exists for this domain")
		case errors.Is(err, domain.ErrAlreadyRegistered):
			writeError(w, http.StatusConflict, "DOMAIN_REGISTERED", "Domain is already registered")
		case errors.Is(err, domain.ErrInsufficientFunds):
			writeError(w, http.StatusPaymentRequired, "INSUFFICIENT_FUNDS", "Insufficient funds for deposit")
		default:
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to place bid")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"domain":  name,
		"message": "Bid placed",
	})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "domain")

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON")
		return
	}

	if err := h.svc.Verify(r.Context(), name, req.ClearAmount, req.Attestation); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "No bid for this domain")
		case errors.Is(err, domain.ErrBadAttestation):
			writeError(w, http.StatusBadRequest, "ATTESTATION_REJECTED", err.Error())
		case errors.Is(err, domain.ErrAlreadyVerified):
			writeError(w, http.StatusConflict, "ALREADY_VERIFIED", "Bid is already verified")
		case errors.Is(err, domain.ErrExpired):
			writeError(w, http.StatusConflict, "BID_EXPIRED", "Bid has expired")
		default:
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to verify bid")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"domain":      name,
		"clearAmount": req.ClearAmount,
		"message":     "Bid verified",
	})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "domain")

	if err := h.svc.Register(r.Context(), name); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "No bid for this domain")
		case errors.Is(err, domain.ErrNotVerified):
			writeError(w, http.StatusConflict, "NOT_VERIFIED", "Bid has not been verified")
		case errors.Is(err, domain.ErrExpired):
			writeError(w, http.StatusConflict, "BID_EXPIRED", "Bid has expired")
		case errors.Is(err, domain.ErrAlreadyRegistered):
			writeError(w, http.StatusConflict, "DOMAIN_REGISTERED", "Domain is already registered")
		default:
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to register domain")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"domain":  name,
		"message": "Domain registered",
	})
}

func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "domain")

	if err := h.svc.Withdraw(r.Context(), name, bidderFrom(r)); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "No bid for this domain")
		case errors.Is(err, domain.ErrNotYetExpired):
			writeError(w, http.StatusConflict, "BID_NOT_EXPIRED", "Bid has not expired yet")
		case errors.Is(err, domain.ErrNotBidder):
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Caller did not place this bid")
		case errors.Is(err, domain.ErrAlreadyRegistered):
			writeError(w, http.StatusConflict, "DOMAIN_REGISTERED", "Domain is already registered")
		default:
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to withdraw bid")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"domain":  name,
		"message": "Bid withdrawn",
	})
}

func (h *Handler) handleListActive(w http.ResponseWriter, r *http.Request) {
	domains, err := h.svc.ListActive(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list bids")
		return
	}
	if domains == nil {
		domains = []string{}
	}
	writeJSON(w, http.StatusOK, ListResponse{Domains: domains})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "domain")

	bid, err := h.svc.Get(r.Context(), name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "No bid for this domain")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get bid")
		return
	}

	writeJSON(w, http.StatusOK, toBidResponse(bid))
}

func (h *Handler) handleGetSealed(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "domain")

	sealed, err := h.svc.GetSealed(r.Context(), name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "No bid for this domain")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get sealed amount")
		return
	}

	writeJSON(w, http.StatusOK, SealedResponse{Domain: name, Sealed: sealed})
}

func (h *Handler) handleDomainStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "domain")

	registered, err := h.svc.IsRegistered(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to check domain")
		return
	}

	writeJSON(w, http.StatusOK, DomainStatusResponse{Domain: name, Registered: registered})
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
	json.NewEncoder(w).Encode(ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

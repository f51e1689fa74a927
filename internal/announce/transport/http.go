// Package transport provides HTTP handlers for the announcement feed.
package transport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pendergraft/sealreg/internal/announce/domain"
)

// Handler handles HTTP requests for the announcement feed.
type Handler struct {
	svc domain.Service
}

// NewHandler creates a new announcements HTTP handler.
func NewHandler(svc domain.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the feed routes on a chi router. The feed is
// read-only and public; the oracle authenticates its results through
// attestations, not through this endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/announcements", h.handleList)
	r.Get("/announcements/{domain}", h.handleGet)
}

// AnnouncementResponse is a single feed entry.
type AnnouncementResponse struct {
	Seq       int64     `json:"seq"`
	ID        string    `json:"id"`
	Domain    string    `json:"domain"`
	Sealed    []byte    `json:"sealed"`
	CreatedAt time.Time `json:"createdAt"`
}

// FeedResponse is a page of the announcement feed. NextSeq is the cursor to
// pass as ?since= for the following page.
type FeedResponse struct {
	Announcements []AnnouncementResponse `json:"announcements"`
	NextSeq       int64                  `json:"nextSeq"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	var sinceSeq int64
	if s := r.URL.Query().Get("since"); s != "" {
		parsed, err := strconv.ParseInt(s, 10, 64)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "since must be a non-negative integer")
			return
		}
		sinceSeq = parsed
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	anns, err := h.svc.List(r.Context(), sinceSeq, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list announcements")
		return
	}

	resp := FeedResponse{
		Announcements: make([]AnnouncementResponse, len(anns)),
		NextSeq:       sinceSeq,
	}
	for i, a := range anns {
		resp.Announcements[i] = toResponse(a)
		if a.Seq > resp.NextSeq {
			resp.NextSeq = a.Seq
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "domain")

	a, err := h.svc.Get(r.Context(), name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "No announcement for this domain")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get announcement")
		return
	}

	writeJSON(w, http.StatusOK, toResponse(*a))
}

func toResponse(a domain.Announcement) AnnouncementResponse {
	return AnnouncementResponse{
		Seq:       a.Seq,
		ID:        a.ID,
		Domain:    a.Domain,
		Sealed:    a.Sealed,
		CreatedAt: a.CreatedAt,
	}
}

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

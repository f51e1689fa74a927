package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/sealreg/internal/announce/domain"
)

type mockService struct {
	feed []domain.Announcement
}

func (m *mockService) List(ctx context.Context, sinceSeq int64, limit int) ([]domain.Announcement, error) {
	var out []domain.Announcement
	for _, a := range m.feed {
		if a.Seq <= sinceSeq {
			continue
		}
		out = append(out, a)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *mockService) Get(ctx context.Context, name string) (*domain.Announcement, error) {
	for i := len(m.feed) - 1; i >= 0; i-- {
		if m.feed[i].Domain == name {
			return &m.feed[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func setupRouter(svc domain.Service) *chi.Mux {
	r := chi.NewRouter()
	h := NewHandler(svc)
	r.Route("/api/v1", h.RegisterRoutes)
	return r
}

func testFeed() *mockService {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &mockService{feed: []domain.Announcement{
		{Seq: 1, ID: "id-1", Domain: "a.eth", Sealed: []byte("s1"), CreatedAt: now},
		{Seq: 2, ID: "id-2", Domain: "b.eth", Sealed: []byte("s2"), CreatedAt: now},
		{Seq: 3, ID: "id-3", Domain: "c.eth", Sealed: []byte("s3"), CreatedAt: now},
	}}
}

func TestHandleList(t *testing.T) {
	router := setupRouter(testFeed())

	get := func(t *testing.T, url string) FeedResponse {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, url, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp FeedResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp
	}

	t.Run("full feed", func(t *testing.T) {
		resp := get(t, "/api/v1/announcements")
		require.Len(t, resp.Announcements, 3)
		assert.Equal(t, int64(3), resp.NextSeq)
	})

	t.Run("cursor resumes", func(t *testing.T) {
		resp := get(t, "/api/v1/announcements?since=1")
		require.Len(t, resp.Announcements, 2)
		assert.Equal(t, "b.eth", resp.Announcements[0].Domain)
	})

	t.Run("limit", func(t *testing.T) {
		resp := get(t, "/api/v1/announcements?limit=1")
		require.Len(t, resp.Announcements, 1)
		assert.Equal(t, int64(1), resp.NextSeq)
	})

	t.Run("empty page keeps cursor", func(t *testing.T) {
		resp := get(t, "/api/v1/announcements?since=3")
		assert.Empty(t, resp.Announcements)
		assert.Equal(t, int64(3), resp.NextSeq)
	})

	t.Run("invalid cursor", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/announcements?since=bogus", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleGet(t *testing.T) {
	router := setupRouter(testFeed())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/announcements/b.eth", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp AnnouncementResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []byte("s2"), resp.Sealed)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/announcements/missing.eth", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

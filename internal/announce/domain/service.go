// Package domain contains the business logic for the announcement feed. Every
// placed bid publishes its sealed amount here so the off-system decryption
// oracle can observe new work by polling a sequence cursor. Announcements are
// append-only history: withdrawal deletes the bid record, never the
// announcement.
package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pendergraft/sealreg/internal/storage"
)

// ErrNotFound is returned when no announcement exists for a domain.
var ErrNotFound = errors.New("announcement not found")

// DefaultLimit bounds feed pages when the caller does not ask for a size.
const DefaultLimit = 100

// MaxLimit is the largest page a single feed request may return.
const MaxLimit = 1000

// Announcement is a published sealed amount.
type Announcement struct {
	Seq       int64
	ID        string
	Domain    string
	Sealed    []byte
	CreatedAt time.Time
}

// AnnouncementStore defines the storage operations needed by the feed.
type AnnouncementStore interface {
	ListAnnouncements(ctx context.Context, sinceSeq int64, limit int) ([]storage.Announcement, error)
	GetAnnouncement(ctx context.Context, domain string) (*storage.Announcement, error)
}

// Service is the announcement feed's business interface.
type Service interface {
	// List returns announcements with sequence numbers greater than
	// sinceSeq, oldest first.
	List(ctx context.Context, sinceSeq int64, limit int) ([]Announcement, error)

	// Get returns the most recent announcement for a domain.
	Get(ctx context.Context, domain string) (*Announcement, error)
}

type service struct {
	store AnnouncementStore
}

// NewService creates a new announcement feed service.
func NewService(store AnnouncementStore) *service {
	return &service{store: store}
}

func (s *service) List(ctx context.Context, sinceSeq int64, limit int) ([]Announcement, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	rows, err := s.store.ListAnnouncements(ctx, sinceSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("listing announcements: %w", err)
	}

	out := make([]Announcement, len(rows))
	for i, a := range rows {
		out[i] = toAnnouncement(&a)
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, domain string) (*Announcement, error) {
	a, err := s.store.GetAnnouncement(ctx, domain)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("getting announcement: %w", err)
	}
	out := toAnnouncement(a)
	return &out, nil
}

func toAnnouncement(a *storage.Announcement) Announcement {
	return Announcement{
		Seq:       a.Seq,
		ID:        a.ID,
		Domain:    a.Domain,
		Sealed:    a.Sealed,
		CreatedAt: a.CreatedAt,
	}
}

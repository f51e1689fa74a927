package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pendergraft/sealreg/internal/config"
)

// BidStore handles bid lifecycle operations. Each mutating method executes
// as one atomic transaction: guard checks, the bid state change, the ledger
// movement, and any announcement commit or roll back together. Deposits move
// at most once per bid record: the escrow debit happens in CreateBid and the
// single payout credit happens in whichever of RegisterDomain or WithdrawBid
// runs first.
type BidStore interface {
	// CreateBid records a new bid and debits the bidder's account by
	// bid.Deposit. It also records an announcement of the sealed amount for
	// the oracle feed. Fails with ErrDomainRegistered, ErrBidExists or
	// ErrInsufficientFunds.
	CreateBid(ctx context.Context, bid *Bid) error

	// GetBid returns the live bid for a domain, or ErrNotFound.
	GetBid(ctx context.Context, domain string) (*Bid, error)

	// MarkVerified stores the revealed clear amount and flips the verified
	// flag. Fails with ErrNotFound, ErrAlreadyVerified or ErrBidExpired.
	MarkVerified(ctx context.Context, domain string, clearAmount uint64, now time.Time) error

	// RegisterDomain finalizes a verified, unexpired bid: marks the domain
	// registered, credits the deposit to the bidder's account, and settles
	// the record so it can never pay out again. The record is retained but
	// leaves the active index. Fails with ErrNotFound, ErrNotVerified,
	// ErrBidExpired or ErrDomainRegistered (settled record).
	RegisterDomain(ctx context.Context, domain string, now time.Time) error

	// WithdrawBid reclaims the deposit of an expired bid: credits the
	// deposit to the caller, deletes the record, and removes the key from
	// the active index. Fails with ErrNotFound, ErrBidNotExpired,
	// ErrNotBidder or ErrDomainRegistered (settled record).
	WithdrawBid(ctx context.Context, domain, caller string, now time.Time) error

	// ListActiveDomains enumerates domains with a live bid record.
	// Ordering is not guaranteed.
	ListActiveDomains(ctx context.Context) ([]string, error)

	// IsRegistered reports whether a domain has been finalized.
	IsRegistered(ctx context.Context, domain string) (bool, error)
}

// AnnouncementStore exposes the published-sealed-amount feed that the
// external oracle tails.
type AnnouncementStore interface {
	// ListAnnouncements returns announcements with Seq > sinceSeq, in
	// sequence order, up to limit.
	ListAnnouncements(ctx context.Context, sinceSeq int64, limit int) ([]Announcement, error)

	// GetAnnouncement returns the most recent announcement for a domain.
	GetAnnouncement(ctx context.Context, domain string) (*Announcement, error)
}

// AccountStore is the ledger collaborator. Escrow and payout movements run
// inside BidStore transactions; these methods cover funding and inspection.
type AccountStore interface {
	CreditAccount(ctx context.Context, id string, amount uint64) error
	GetBalance(ctx context.Context, id string) (uint64, error)
}

// APIKeyStore handles API key operations. Key IDs double as bidder and
// ledger account identities.
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, name string) (key string, err error)
	ValidateAPIKey(ctx context.Context, key string) (*APIKey, error)
	ListAPIKeys(ctx context.Context) ([]APIKey, error)
	RevokeAPIKey(ctx context.Context, id string) error
}

// Store combines all storage interfaces with lifecycle methods.
// Domain services define their own minimal interfaces based on their actual usage.
type Store interface {
	BidStore
	AnnouncementStore
	AccountStore
	APIKeyStore

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}

// Bid is one sealed bid record, keyed by domain name.
type Bid struct {
	Domain      string
	Sealed      []byte // opaque amount, write-once
	Deposit     uint64 // escrowed value, write-once; zeroed when settled
	Expiration  time.Time
	Bidder      string
	PlacedAt    time.Time
	ClearAmount uint64 // meaningful only when Verified
	Verified    bool
	Settled     bool // deposit paid out via registration; record retained
}

// Announcement is one published sealed amount, sequenced for feed cursors.
type Announcement struct {
	Seq       int64
	ID        string
	Domain    string
	Sealed    []byte
	CreatedAt time.Time
}

// APIKey represents an API key
type APIKey struct {
	ID         string
	Name       string
	KeyHash    string
	CreatedAt  string
	LastUsedAt string
	RevokedAt  string
}

// New creates a new store based on configuration
func New(cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(logger), nil
	case "sqlite":
		return NewSQLiteStore(cfg.SQLite.Path, logger)
	case "postgres":
		return NewPostgresStore(cfg.Postgres.URL, logger)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	schema := `
	-- Bid records, one live record per domain key.
	-- Timestamps are unix microseconds so temporal guards compare exactly.
	CREATE TABLE IF NOT EXISTS bids (
		domain TEXT PRIMARY KEY,
		sealed BLOB NOT NULL,
		deposit INTEGER NOT NULL,
		expiration INTEGER NOT NULL,
		bidder TEXT NOT NULL,
		placed_at INTEGER NOT NULL,
		clear_amount INTEGER NOT NULL DEFAULT 0,
		verified INTEGER NOT NULL DEFAULT 0,
		settled INTEGER NOT NULL DEFAULT 0
	);

	-- Finalized domains; rows are never deleted.
	CREATE TABLE IF NOT EXISTS registered_domains (
		domain TEXT PRIMARY KEY,
		registered_at INTEGER NOT NULL
	);

	-- Published sealed amounts, sequenced for oracle feed cursors.
	CREATE TABLE IF NOT EXISTS announcements (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL,
		domain TEXT NOT NULL,
		sealed BLOB NOT NULL,
		created_at INTEGER NOT NULL
	);

	-- Ledger accounts backing deposits.
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		balance INTEGER NOT NULL DEFAULT 0
	);

	-- API keys
	CREATE TABLE IF NOT EXISTS api_keys (
		id TEXT PRIMARY KEY,
		key_hash TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		created_at TEXT DEFAULT (datetime('now')),
		last_used_at TEXT,
		revoked_at TEXT
	);

	-- Indexes
	CREATE INDEX IF NOT EXISTS idx_announcements_domain ON announcements(domain);
	CREATE INDEX IF NOT EXISTS idx_bids_bidder ON bids(bidder);
	`

	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.logger.Info("database migrations complete")
	return nil
}

// withTx runs fn inside a transaction, committing on nil error.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

type bidRow struct {
	domain      string
	sealed      []byte
	deposit     int64
	expiration  int64
	bidder      string
	placedAt    int64
	clearAmount int64
	verified    bool
	settled     bool
}

func scanBid(row *sql.Row) (*bidRow, error) {
	var b bidRow
	err := row.Scan(&b.domain, &b.sealed, &b.deposit, &b.expiration, &b.bidder, &b.placedAt, &b.clearAmount, &b.verified, &b.settled)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

const bidColumns = "domain, sealed, deposit, expiration, bidder, placed_at, clear_amount, verified, settled"

func (b *bidRow) toBid() *Bid {
	return &Bid{
		Domain:      b.domain,
		Sealed:      b.sealed,
		Deposit:     uint64(b.deposit),
		Expiration:  time.UnixMicro(b.expiration).UTC(),
		Bidder:      b.bidder,
		PlacedAt:    time.UnixMicro(b.placedAt).UTC(),
		ClearAmount: uint64(b.clearAmount),
		Verified:    b.verified,
		Settled:     b.settled,
	}
}

// CreateBid records a new bid, escrows the deposit, and announces the sealed
// amount, in one transaction.
func (s *SQLiteStore) CreateBid(ctx context.Context, bid *Bid) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM registered_domains WHERE domain = ?", bid.Domain).Scan(&exists); err != nil {
			return err
		}
		if exists > 0 {
			return ErrDomainRegistered
		}

		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM bids WHERE domain = ?", bid.Domain).Scan(&exists); err != nil {
			return err
		}
		if exists > 0 {
			return ErrBidExists
		}

		var balance int64
		err := tx.QueryRowContext(ctx, "SELECT balance FROM accounts WHERE id = ?", bid.Bidder).Scan(&balance)
		if err == sql.ErrNoRows {
			return ErrInsufficientFunds
		}
		if err != nil {
			return err
		}
		if balance < int64(bid.Deposit) {
			return ErrInsufficientFunds
		}

		if _, err := tx.ExecContext(ctx, "UPDATE accounts SET balance = balance - ? WHERE id = ?", int64(bid.Deposit), bid.Bidder); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO bids ("+bidColumns+") VALUES (?, ?, ?, ?, ?, ?, 0, 0, 0)",
			bid.Domain, bid.Sealed, int64(bid.Deposit), bid.Expiration.UnixMicro(), bid.Bidder, bid.PlacedAt.UnixMicro(),
		); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO announcements (id, domain, sealed, created_at) VALUES (?, ?, ?, ?)",
			generateID(), bid.Domain, bid.Sealed, bid.PlacedAt.UnixMicro(),
		)
		return err
	})
}

// GetBid returns the live bid for a domain.
func (s *SQLiteStore) GetBid(ctx context.Context, domain string) (*Bid, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+bidColumns+" FROM bids WHERE domain = ?", domain)
	b, err := scanBid(row)
	if err != nil {
		return nil, err
	}
	return b.toBid(), nil
}

// MarkVerified stores the revealed clear amount and flips the verified flag.
func (s *SQLiteStore) MarkVerified(ctx context.Context, domain string, clearAmount uint64, now time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		b, err := scanBid(tx.QueryRowContext(ctx, "SELECT "+bidColumns+" FROM bids WHERE domain = ?", domain))
		if err != nil {
			return err
		}
		if b.verified {
			return ErrAlreadyVerified
		}
		if now.UnixMicro() >= b.expiration {
			return ErrBidExpired
		}
		_, err = tx.ExecContext(ctx, "UPDATE bids SET clear_amount = ?, verified = 1 WHERE domain = ?", int64(clearAmount), domain)
		return err
	})
}

// RegisterDomain finalizes a verified, unexpired bid and settles the record.
func (s *SQLiteStore) RegisterDomain(ctx context.Context, domain string, now time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		b, err := scanBid(tx.QueryRowContext(ctx, "SELECT "+bidColumns+" FROM bids WHERE domain = ?", domain))
		if err != nil {
			return err
		}
		if b.settled {
			return ErrDomainRegistered
		}
		if !b.verified {
			return ErrNotVerified
		}
		if now.UnixMicro() >= b.expiration {
			return ErrBidExpired
		}

		if _, err := tx.ExecContext(ctx, "INSERT INTO registered_domains (domain, registered_at) VALUES (?, ?)", domain, now.UnixMicro()); err != nil {
			return err
		}
		if err := creditTx(ctx, tx, b.bidder, b.deposit, false); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, "UPDATE bids SET deposit = 0, settled = 1 WHERE domain = ?", domain)
		return err
	})
}

// WithdrawBid reclaims the deposit of an expired bid and deletes the record.
func (s *SQLiteStore) WithdrawBid(ctx context.Context, domain, caller string, now time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		b, err := scanBid(tx.QueryRowContext(ctx, "SELECT "+bidColumns+" FROM bids WHERE domain = ?", domain))
		if err != nil {
			return err
		}
		if b.settled {
			return ErrDomainRegistered
		}
		if now.UnixMicro() < b.expiration {
			return ErrBidNotExpired
		}
		if b.bidder != caller {
			return ErrNotBidder
		}

		if err := creditTx(ctx, tx, caller, b.deposit, false); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, "DELETE FROM bids WHERE domain = ?", domain)
		return err
	})
}

// ListActiveDomains enumerates domains with a live (unsettled) bid record.
func (s *SQLiteStore) ListActiveDomains(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT domain FROM bids WHERE settled = 0")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var domains []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

// IsRegistered reports whether the domain has been finalized.
func (s *SQLiteStore) IsRegistered(ctx context.Context, domain string) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM registered_domains WHERE domain = ?", domain).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListAnnouncements returns announcements after sinceSeq, oldest first.
func (s *SQLiteStore) ListAnnouncements(ctx context.Context, sinceSeq int64, limit int) ([]Announcement, error) {
	if limit <= 0 {
		limit = -1 // no limit in SQLite
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT seq, id, domain, sealed, created_at FROM announcements WHERE seq > ? ORDER BY seq LIMIT ?",
		sinceSeq, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAnnouncements(rows)
}

// GetAnnouncement returns the most recent announcement for a domain.
func (s *SQLiteStore) GetAnnouncement(ctx context.Context, domain string) (*Announcement, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT seq, id, domain, sealed, created_at FROM announcements WHERE domain = ? ORDER BY seq DESC LIMIT 1",
		domain,
	)
	var a Announcement
	var createdAt int64
	err := row.Scan(&a.Seq, &a.ID, &a.Domain, &a.Sealed, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.CreatedAt = time.UnixMicro(createdAt).UTC()
	return &a, nil
}

func scanAnnouncements(rows *sql.Rows) ([]Announcement, error) {
	var out []Announcement
	for rows.Next() {
		var a Announcement
		var createdAt int64
		if err := rows.Scan(&a.Seq, &a.ID, &a.Domain, &a.Sealed, &createdAt); err != nil {
			return nil, err
		}
		a.CreatedAt = time.UnixMicro(createdAt).UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

// creditTx adds funds to an account inside an existing transaction. Uses
// SQLite upsert syntax; postgres passes usePg for $n placeholders.
func creditTx(ctx context.Context, tx *sql.Tx, id string, amount int64, usePg bool) error {
	query := "INSERT INTO accounts (id, balance) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET balance = balance + excluded.balance"
	if usePg {
		query = "INSERT INTO accounts (id, balance) VALUES ($1, $2) ON CONFLICT(id) DO UPDATE SET balance = accounts.balance + excluded.balance"
	}
	_, err := tx.ExecContext(ctx, query, id, amount)
	return err
}

// CreditAccount adds funds to a ledger account, creating it if needed.
func (s *SQLiteStore) CreditAccount(ctx context.Context, id string, amount uint64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return creditTx(ctx, tx, id, int64(amount), false)
	})
}

// GetBalance returns the current balance of a ledger account.
func (s *SQLiteStore) GetBalance(ctx context.Context, id string) (uint64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx, "SELECT balance FROM accounts WHERE id = ?", id).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return uint64(balance), nil
}

// CreateAPIKey creates a new API key
func (s *SQLiteStore) CreateAPIKey(ctx context.Context, name string) (string, error) {
	key := generateAPIKey()
	hash := hashAPIKey(key)
	id := generateID()
	_, err := s.db.ExecContext(ctx, "INSERT INTO api_keys (id, key_hash, name, created_at) VALUES (?, ?, ?, datetime('now'))", id, hash, name)
	if err != nil {
		return "", err
	}
	return key, nil
}

// ValidateAPIKey validates an API key
func (s *SQLiteStore) ValidateAPIKey(ctx context.Context, key string) (*APIKey, error) {
	hash := hashAPIKey(key)
	var ak APIKey
	err := s.db.QueryRowContext(ctx, "SELECT id, key_hash, name, created_at FROM api_keys WHERE key_hash = ? AND revoked_at IS NULL", hash).Scan(
		&ak.ID, &ak.KeyHash, &ak.Name, &ak.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	// Update last used
	_, _ = s.db.ExecContext(ctx, "UPDATE api_keys SET last_used_at = datetime('now') WHERE id = ?", ak.ID)
	return &ak, nil
}

// ListAPIKeys lists all API keys
func (s *SQLiteStore) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, created_at, last_used_at FROM api_keys WHERE revoked_at IS NULL")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []APIKey
	for rows.Next() {
		var k APIKey
		var lastUsed sql.NullString
		if err := rows.Scan(&k.ID, &k.Name, &k.CreatedAt, &lastUsed); err != nil {
			return nil, err
		}
		if lastUsed.Valid {
			k.LastUsedAt = lastUsed.String
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// RevokeAPIKey revokes an API key
func (s *SQLiteStore) RevokeAPIKey(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE api_keys SET revoked_at = datetime('now') WHERE id = ? AND revoked_at IS NULL", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

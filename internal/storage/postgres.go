package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new Postgres store
func NewPostgresStore(url string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *PostgresStore) Migrate(ctx context.Context) error {
	schema := `
	-- Bid records, one live record per domain key.
	-- Timestamps are unix microseconds so temporal guards compare exactly.
	CREATE TABLE IF NOT EXISTS bids (
		domain TEXT PRIMARY KEY,
		sealed BYTEA NOT NULL,
		deposit BIGINT NOT NULL,
		expiration BIGINT NOT NULL,
		bidder TEXT NOT NULL,
		placed_at BIGINT NOT NULL,
		clear_amount BIGINT NOT NULL DEFAULT 0,
		verified BOOLEAN NOT NULL DEFAULT FALSE,
		settled BOOLEAN NOT NULL DEFAULT FALSE
	);

	-- Finalized domains; rows are never deleted.
	CREATE TABLE IF NOT EXISTS registered_domains (
		domain TEXT PRIMARY KEY,
		registered_at BIGINT NOT NULL
	);

	-- Published sealed amounts, sequenced for oracle feed cursors.
	CREATE TABLE IF NOT EXISTS announcements (
		seq BIGSERIAL PRIMARY KEY,
		id UUID NOT NULL,
		domain TEXT NOT NULL,
		sealed BYTEA NOT NULL,
		created_at BIGINT NOT NULL
	);

	-- Ledger accounts backing deposits.
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		balance BIGINT NOT NULL DEFAULT 0
	);

	-- API keys
	CREATE TABLE IF NOT EXISTS api_keys (
		id UUID PRIMARY KEY,
		key_hash TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		created_at TIMESTAMPTZ DEFAULT NOW(),
		last_used_at TIMESTAMPTZ,
		revoked_at TIMESTAMPTZ
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
func (s *PostgresStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
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

// selectBidForUpdate locks the bid row for the remainder of the transaction,
// serializing same-key lifecycle transitions.
func selectBidForUpdate(ctx context.Context, tx *sql.Tx, domain string) (*bidRow, error) {
	row := tx.QueryRowContext(ctx, "SELECT "+bidColumns+" FROM bids WHERE domain = $1 FOR UPDATE", domain)
	return scanBid(row)
}

// CreateBid records a new bid, escrows the deposit, and announces the sealed
// amount, in one transaction.
func (s *PostgresStore) CreateBid(ctx context.Context, bid *Bid) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM registered_domains WHERE domain = $1", bid.Domain).Scan(&exists); err != nil {
			return err
		}
		if exists > 0 {
			return ErrDomainRegistered
		}

		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM bids WHERE domain = $1", bid.Domain).Scan(&exists); err != nil {
			return err
		}
		if exists > 0 {
			return ErrBidExists
		}

		var balance int64
		err := tx.QueryRowContext(ctx, "SELECT balance FROM accounts WHERE id = $1 FOR UPDATE", bid.Bidder).Scan(&balance)
		if err == sql.ErrNoRows {
			return ErrInsufficientFunds
		}
		if err != nil {
			return err
		}
		if balance < int64(bid.Deposit) {
			return ErrInsufficientFunds
		}

		if _, err := tx.ExecContext(ctx, "UPDATE accounts SET balance = balance - $1 WHERE id = $2", int64(bid.Deposit), bid.Bidder); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO bids ("+bidColumns+") VALUES ($1, $2, $3, $4, $5, $6, 0, FALSE, FALSE)",
			bid.Domain, bid.Sealed, int64(bid.Deposit), bid.Expiration.UnixMicro(), bid.Bidder, bid.PlacedAt.UnixMicro(),
		); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO announcements (id, domain, sealed, created_at) VALUES ($1, $2, $3, $4)",
			generateID(), bid.Domain, bid.Sealed, bid.PlacedAt.UnixMicro(),
		)
		return err
	})
}

// GetBid returns the live bid for a domain.
func (s *PostgresStore) GetBid(ctx context.Context, domain string) (*Bid, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+bidColumns+" FROM bids WHERE domain = $1", domain)
	b, err := scanBid(row)
	if err != nil {
		return nil, err
	}
	return b.toBid(), nil
}

// MarkVerified stores the revealed clear amount and flips the verified flag.
func (s *PostgresStore) MarkVerified(ctx context.Context, domain string, clearAmount uint64, now time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		b, err := selectBidForUpdate(ctx, tx, domain)
		if err != nil {
			return err
		}
		if b.verified {
			return ErrAlreadyVerified
		}
		if now.UnixMicro() >= b.expiration {
			return ErrBidExpired
		}
		_, err = tx.ExecContext(ctx, "UPDATE bids SET clear_amount = $1, verified = TRUE WHERE domain = $2", int64(clearAmount), domain)
		return err
	})
}

// RegisterDomain finalizes a verified, unexpired bid and settles the record.
func (s *PostgresStore) RegisterDomain(ctx context.Context, domain string, now time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		b, err := selectBidForUpdate(ctx, tx, domain)
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

		if _, err := tx.ExecContext(ctx, "INSERT INTO registered_domains (domain, registered_at) VALUES ($1, $2)", domain, now.UnixMicro()); err != nil {
			return err
		}
		if err := creditTx(ctx, tx, b.bidder, b.deposit, true); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, "UPDATE bids SET deposit = 0, settled = TRUE WHERE domain = $1", domain)
		return err
	})
}

// WithdrawBid reclaims the deposit of an expired bid and deletes the record.
func (s *PostgresStore) WithdrawBid(ctx context.Context, domain, caller string, now time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		b, err := selectBidForUpdate(ctx, tx, domain)
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

		if err := creditTx(ctx, tx, caller, b.deposit, true); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, "DELETE FROM bids WHERE domain = $1", domain)
		return err
	})
}

// ListActiveDomains enumerates domains with a live (unsettled) bid record.
func (s *PostgresStore) ListActiveDomains(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT domain FROM bids WHERE NOT settled")
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
func (s *PostgresStore) IsRegistered(ctx context.Context, domain string) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM registered_domains WHERE domain = $1", domain).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListAnnouncements returns announcements after sinceSeq, oldest first.
func (s *PostgresStore) ListAnnouncements(ctx context.Context, sinceSeq int64, limit int) ([]Announcement, error) {
	query := "SELECT seq, id, domain, sealed, created_at FROM announcements WHERE seq > $1 ORDER BY seq"
	args := []any{sinceSeq}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAnnouncements(rows)
}

// GetAnnouncement returns the most recent announcement for a domain.
func (s *PostgresStore) GetAnnouncement(ctx context.Context, domain string) (*Announcement, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT seq, id, domain, sealed, created_at FROM announcements WHERE domain = $1 ORDER BY seq DESC LIMIT 1",
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

// CreditAccount adds funds to a ledger account, creating it if needed.
func (s *PostgresStore) CreditAccount(ctx context.Context, id string, amount uint64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return creditTx(ctx, tx, id, int64(amount), true)
	})
}

// GetBalance returns the current balance of a ledger account.
func (s *PostgresStore) GetBalance(ctx context.Context, id string) (uint64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx, "SELECT balance FROM accounts WHERE id = $1", id).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return uint64(balance), nil
}

// CreateAPIKey creates a new API key
func (s *PostgresStore) CreateAPIKey(ctx context.Context, name string) (string, error) {
	key := generateAPIKey()
	hash := hashAPIKey(key)
	id := generateID()
	_, err := s.db.ExecContext(ctx, "INSERT INTO api_keys (id, key_hash, name) VALUES ($1, $2, $3)", id, hash, name)
	if err != nil {
		return "", err
	}
	return key, nil
}

// ValidateAPIKey validates an API key
func (s *PostgresStore) ValidateAPIKey(ctx context.Context, key string) (*APIKey, error) {
	hash := hashAPIKey(key)
	var ak APIKey
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx, "SELECT id, key_hash, name, created_at FROM api_keys WHERE key_hash = $1 AND revoked_at IS NULL", hash).Scan(
		&ak.ID, &ak.KeyHash, &ak.Name, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	ak.CreatedAt = createdAt.UTC().Format(time.RFC3339)
	// Update last used
	_, _ = s.db.ExecContext(ctx, "UPDATE api_keys SET last_used_at = NOW() WHERE id = $1", ak.ID)
	return &ak, nil
}

// ListAPIKeys lists all API keys
func (s *PostgresStore) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, created_at, last_used_at FROM api_keys WHERE revoked_at IS NULL")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []APIKey
	for rows.Next() {
		var k APIKey
		var createdAt time.Time
		var lastUsed sql.NullTime
		if err := rows.Scan(&k.ID, &k.Name, &createdAt, &lastUsed); err != nil {
			return nil, err
		}
		k.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		if lastUsed.Valid {
			k.LastUsedAt = lastUsed.Time.UTC().Format(time.RFC3339)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// RevokeAPIKey revokes an API key
func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE api_keys SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL", id)
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

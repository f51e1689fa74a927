package storage

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MemoryStore implements Store with in-process maps. One mutex covers every
// operation, so each lifecycle transition observes and updates the store
// atomically; same-key contenders serialize and the loser fails its guard.
// Used for tests and STORAGE_TYPE=memory dev servers.
type MemoryStore struct {
	mu     sync.Mutex
	logger *slog.Logger

	bids       map[string]*Bid
	registered map[string]time.Time

	// Active-key index: a growable slice paired with a key→position map.
	// Removal swaps the last element into the vacated slot and truncates,
	// so enumeration order is not preserved.
	activeKeys []string
	keyPos     map[string]int

	announcements []Announcement
	nextSeq       int64

	balances map[string]uint64

	apiKeys map[string]*APIKey // by key hash
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	return &MemoryStore{
		logger:     logger,
		bids:       make(map[string]*Bid),
		registered: make(map[string]time.Time),
		keyPos:     make(map[string]int),
		nextSeq:    1,
		balances:   make(map[string]uint64),
		apiKeys:    make(map[string]*APIKey),
	}
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error { return nil }

// Migrate is a no-op for the memory store.
func (s *MemoryStore) Migrate(ctx context.Context) error { return nil }

// CreateBid records a new bid, debits the bidder's balance, and announces
// the sealed amount.
func (s *MemoryStore) CreateBid(ctx context.Context, bid *Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.registered[bid.Domain]; ok {
		return ErrDomainRegistered
	}
	if _, ok := s.bids[bid.Domain]; ok {
		return ErrBidExists
	}
	if s.balances[bid.Bidder] < bid.Deposit {
		return ErrInsufficientFunds
	}

	s.balances[bid.Bidder] -= bid.Deposit

	stored := *bid
	stored.Sealed = append([]byte(nil), bid.Sealed...)
	s.bids[bid.Domain] = &stored

	s.keyPos[bid.Domain] = len(s.activeKeys)
	s.activeKeys = append(s.activeKeys, bid.Domain)

	s.announcements = append(s.announcements, Announcement{
		Seq:       s.nextSeq,
		ID:        generateID(),
		Domain:    bid.Domain,
		Sealed:    stored.Sealed,
		CreatedAt: bid.PlacedAt,
	})
	s.nextSeq++

	return nil
}

// GetBid returns a copy of the live bid for a domain.
func (s *MemoryStore) GetBid(ctx context.Context, domain string) (*Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bid, ok := s.bids[domain]
	if !ok {
		return nil, ErrNotFound
	}
	out := *bid
	out.Sealed = append([]byte(nil), bid.Sealed...)
	return &out, nil
}

// MarkVerified stores the revealed value and flips the verified flag.
func (s *MemoryStore) MarkVerified(ctx context.Context, domain string, clearAmount uint64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bid, ok := s.bids[domain]
	if !ok {
		return ErrNotFound
	}
	if bid.Verified {
		return ErrAlreadyVerified
	}
	if !now.Before(bid.Expiration) {
		return ErrBidExpired
	}

	bid.ClearAmount = clearAmount
	bid.Verified = true
	return nil
}

// RegisterDomain finalizes a verified, unexpired bid and settles the record.
func (s *MemoryStore) RegisterDomain(ctx context.Context, domain string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bid, ok := s.bids[domain]
	if !ok {
		return ErrNotFound
	}
	if bid.Settled {
		return ErrDomainRegistered
	}
	if !bid.Verified {
		return ErrNotVerified
	}
	if !now.Before(bid.Expiration) {
		return ErrBidExpired
	}

	s.registered[domain] = now
	s.balances[bid.Bidder] += bid.Deposit
	bid.Deposit = 0
	bid.Settled = true
	s.removeActiveKey(domain)
	return nil
}

// WithdrawBid reclaims an expired deposit and deletes the record.
func (s *MemoryStore) WithdrawBid(ctx context.Context, domain, caller string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bid, ok := s.bids[domain]
	if !ok {
		return ErrNotFound
	}
	if bid.Settled {
		return ErrDomainRegistered
	}
	if now.Before(bid.Expiration) {
		return ErrBidNotExpired
	}
	if bid.Bidder != caller {
		return ErrNotBidder
	}

	s.balances[caller] += bid.Deposit
	delete(s.bids, domain)
	s.removeActiveKey(domain)
	return nil
}

// removeActiveKey swap-removes a key from the active index. Caller holds mu.
func (s *MemoryStore) removeActiveKey(domain string) {
	pos, ok := s.keyPos[domain]
	if !ok {
		return
	}
	last := len(s.activeKeys) - 1
	moved := s.activeKeys[last]
	s.activeKeys[pos] = moved
	s.keyPos[moved] = pos
	s.activeKeys = s.activeKeys[:last]
	delete(s.keyPos, domain)
}

// ListActiveDomains returns the active-key index contents.
func (s *MemoryStore) ListActiveDomains(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.activeKeys...), nil
}

// IsRegistered reports whether the domain has been finalized.
func (s *MemoryStore) IsRegistered(ctx context.Context, domain string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.registered[domain]
	return ok, nil
}

// ListAnnouncements returns announcements after sinceSeq, oldest first.
func (s *MemoryStore) ListAnnouncements(ctx context.Context, sinceSeq int64, limit int) ([]Announcement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Announcement
	for _, a := range s.announcements {
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

// GetAnnouncement returns the most recent announcement for a domain.
func (s *MemoryStore) GetAnnouncement(ctx context.Context, domain string) (*Announcement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.announcements) - 1; i >= 0; i-- {
		if s.announcements[i].Domain == domain {
			a := s.announcements[i]
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

// CreditAccount adds funds to a ledger account, creating it if needed.
func (s *MemoryStore) CreditAccount(ctx context.Context, id string, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[id] += amount
	return nil
}

// GetBalance returns the current balance of a ledger account.
func (s *MemoryStore) GetBalance(ctx context.Context, id string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[id], nil
}

// CreateAPIKey creates a new API key
func (s *MemoryStore) CreateAPIKey(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := generateAPIKey()
	hash := hashAPIKey(key)
	s.apiKeys[hash] = &APIKey{
		ID:        generateID(),
		Name:      name,
		KeyHash:   hash,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	return key, nil
}

// ValidateAPIKey validates an API key
func (s *MemoryStore) ValidateAPIKey(ctx context.Context, key string) (*APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ak, ok := s.apiKeys[hashAPIKey(key)]
	if !ok || ak.RevokedAt != "" {
		return nil, ErrNotFound
	}
	ak.LastUsedAt = time.Now().UTC().Format(time.RFC3339)
	out := *ak
	return &out, nil
}

// ListAPIKeys lists all API keys
func (s *MemoryStore) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []APIKey
	for _, ak := range s.apiKeys {
		if ak.RevokedAt == "" {
			keys = append(keys, *ak)
		}
	}
	return keys, nil
}

// RevokeAPIKey revokes an API key
func (s *MemoryStore) RevokeAPIKey(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ak := range s.apiKeys {
		if ak.ID == id && ak.RevokedAt == "" {
			ak.RevokedAt = time.Now().UTC().Format(time.RFC3339)
			return nil
		}
	}
	return ErrNotFound
}

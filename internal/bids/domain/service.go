package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pendergraft/sealreg/internal/sealing"
	"github.com/pendergraft/sealreg/internal/storage"
	"github.com/pendergraft/sealreg/internal/validation"
)

// Common errors returned by the bid service.
var (
	ErrNotFound          = errors.New("no bid for this domain")
	ErrAlreadyBid        = errors.New("a live bid already exists for this domain")
	ErrAlreadyRegistered = errors.New("domain is already registered")
	ErrInvalidName       = errors.New("invalid domain name")
	ErrInvalidBidder     = errors.New("invalid bidder id")
	ErrNoDeposit         = errors.New("deposit must be positive")
	ErrInvalidExpiration = errors.New("expiration must be in the future")
	ErrMalformedAmount   = errors.New("sealed amount failed well-formedness check")
	ErrAlreadyVerified   = errors.New("bid is already verified")
	ErrNotVerified       = errors.New("bid has not been verified")
	ErrExpired           = errors.New("bid has expired")
	ErrNotYetExpired     = errors.New("bid has not expired yet")
	ErrNotBidder         = errors.New("caller did not place this bid")
	ErrBadAttestation    = errors.New("attestation rejected")
	ErrInsufficientFunds = errors.New("insufficient funds for deposit")
)

// Service is the bid registry's business interface.
type Service interface {
	// Place creates a new bid for a domain, escrowing the deposit.
	Place(ctx context.Context, domain, bidder string, req PlaceRequest) error

	// Verify records an attested cleartext amount for a live bid.
	Verify(ctx context.Context, domain string, claimedClear uint64, attestation []byte) error

	// Register finalizes a verified, unexpired bid.
	Register(ctx context.Context, domain string) error

	// Withdraw reclaims the deposit of an expired bid.
	Withdraw(ctx context.Context, domain, caller string) error

	// Get returns the public view of the bid for a domain.
	Get(ctx context.Context, domain string) (*Bid, error)

	// GetSealed returns the opaque sealed amount for a domain's bid.
	GetSealed(ctx context.Context, domain string) ([]byte, error)

	// ListActive returns the domains with live bid records.
	ListActive(ctx context.Context) ([]string, error)

	// IsRegistered reports whether a domain has been permanently registered.
	IsRegistered(ctx context.Context, domain string) (bool, error)
}

// BidStore defines the storage operations needed by the bids domain.
type BidStore interface {
	CreateBid(ctx context.Context, bid *storage.Bid) error
	GetBid(ctx context.Context, domain string) (*storage.Bid, error)
	MarkVerified(ctx context.Context, domain string, clearAmount uint64, now time.Time) error
	RegisterDomain(ctx context.Context, domain string, now time.Time) error
	WithdrawBid(ctx context.Context, domain, caller string, now time.Time) error
	ListActiveDomains(ctx context.Context) ([]string, error)
	IsRegistered(ctx context.Context, domain string) (bool, error)
}

type service struct {
	store   BidStore
	gateway sealing.Backend
	now     func() time.Time
}

// NewService creates a new bid service backed by the given store and
// verification gateway.
func NewService(store BidStore, gateway sealing.Backend) *service {
	return &service{
		store:   store,
		gateway: gateway,
		now:     time.Now,
	}
}

// Place creates a new bid for a domain, escrowing the deposit. The sealed
// amount must pass the gateway's well-formedness check before any record is
// written.
func (s *service) Place(ctx context.Context, domain, bidder string, req PlaceRequest) error {
	if err := validation.ValidateDomainName(domain); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	if err := validation.ValidateAccountID(bidder); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBidder, err)
	}
	if req.Deposit == 0 {
		return ErrNoDeposit
	}

	now := s.now()
	if !req.Expiration.After(now) {
		return ErrInvalidExpiration
	}

	if err := s.gateway.CheckWellFormed(req.Sealed, req.Proof); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedAmount, err)
	}

	err := s.store.CreateBid(ctx, &storage.Bid{
		Domain:     domain,
		Sealed:     req.Sealed,
		Deposit:    req.Deposit,
		Expiration: req.Expiration,
		Bidder:     bidder,
		PlacedAt:   now,
	})
	switch {
	case errors.Is(err, storage.ErrBidExists):
		return ErrAlreadyBid
	case errors.Is(err, storage.ErrDomainRegistered):
		return ErrAlreadyRegistered
	case errors.Is(err, storage.ErrInsufficientFunds):
		return ErrInsufficientFunds
	case err != nil:
		return fmt.Errorf("creating bid: %w", err)
	}
	return nil
}

// Verify records the cleartext amount for a live bid after checking the
// oracle attestation against the stored sealed blob. Verification is
// irreversible: a verified bid can never be re-verified with a different
// value.
func (s *service) Verify(ctx context.Context, domain string, claimedClear uint64, attestation []byte) error {
	bid, err := s.store.GetBid(ctx, domain)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	} else if err != nil {
		return fmt.Errorf("getting bid: %w", err)
	}
	if bid.Verified {
		return ErrAlreadyVerified
	}
	if !s.now().Before(bid.Expiration) {
		return ErrExpired
	}

	// The sealed blob is write-once, so checking the attestation outside the
	// store's critical section is safe. The store re-checks the temporal
	// guard under lock.
	if err := s.gateway.CheckAttestation(bid.Sealed, claimedClear, attestation); err != nil {
		return fmt.Errorf("%w: %v", ErrBadAttestation, err)
	}

	err = s.store.MarkVerified(ctx, domain, claimedClear, s.now())
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, storage.ErrAlreadyVerified):
		return ErrAlreadyVerified
	case errors.Is(err, storage.ErrBidExpired):
		return ErrExpired
	case err != nil:
		return fmt.Errorf("marking verified: %w", err)
	}
	return nil
}

// Register finalizes a verified, unexpired bid: the domain becomes
// registered, the deposit is returned to the bidder, and the record is
// settled. A settled record is terminal; neither payout path can touch it
// again.
func (s *service) Register(ctx context.Context, domain string) error {
	err := s.store.RegisterDomain(ctx, domain, s.now())
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, storage.ErrDomainRegistered):
		return ErrAlreadyRegistered
	case errors.Is(err, storage.ErrNotVerified):
		return ErrNotVerified
	case errors.Is(err, storage.ErrBidExpired):
		return ErrExpired
	case err != nil:
		return fmt.Errorf("registering domain: %w", err)
	}
	return nil
}

// Withdraw reclaims the deposit of an expired bid. Only the original bidder
// may withdraw, and only once the expiration time has been reached.
func (s *service) Withdraw(ctx context.Context, domain, caller string) error {
	err := s.store.WithdrawBid(ctx, domain, caller, s.now())
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, storage.ErrDomainRegistered):
		return ErrAlreadyRegistered
	case errors.Is(err, storage.ErrBidNotExpired):
		return ErrNotYetExpired
	case errors.Is(err, storage.ErrNotBidder):
		return ErrNotBidder
	case err != nil:
		return fmt.Errorf("withdrawing bid: %w", err)
	}
	return nil
}

// Get returns the public view of the bid for a domain.
func (s *service) Get(ctx context.Context, domain string) (*Bid, error) {
	bid, err := s.store.GetBid(ctx, domain)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("getting bid: %w", err)
	}
	return toBid(bid), nil
}

// GetSealed returns the opaque sealed amount for a domain's bid.
func (s *service) GetSealed(ctx context.Context, domain string) ([]byte, error) {
	bid, err := s.store.GetBid(ctx, domain)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("getting bid: %w", err)
	}
	return bid.Sealed, nil
}

// ListActive returns the domains with live bid records. Order is not
// specified.
func (s *service) ListActive(ctx context.Context) ([]string, error) {
	domains, err := s.store.ListActiveDomains(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing active domains: %w", err)
	}
	return domains, nil
}

// IsRegistered reports whether a domain has been permanently registered.
func (s *service) IsRegistered(ctx context.Context, domain string) (bool, error) {
	registered, err := s.store.IsRegistered(ctx, domain)
	if err != nil {
		return false, fmt.Errorf("checking registration: %w", err)
	}
	return registered, nil
}

func toBid(b *storage.Bid) *Bid {
	out := &Bid{
		Domain:     b.Domain,
		Deposit:    b.Deposit,
		Expiration: b.Expiration,
		Bidder:     b.Bidder,
		PlacedAt:   b.PlacedAt,
		Verified:   b.Verified,
		Settled:    b.Settled,
	}
	if b.Verified {
		out.ClearAmount = b.ClearAmount
	}
	return out
}

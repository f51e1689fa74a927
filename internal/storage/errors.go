package storage

import "errors"

// Common storage errors. Lifecycle transitions evaluate their guard
// predicates inside the same transaction as the state change and report
// which precondition failed through these sentinels.
var (
	ErrNotFound          = errors.New("not found")
	ErrBidExists         = errors.New("bid already exists")
	ErrDomainRegistered  = errors.New("domain already registered")
	ErrAlreadyVerified   = errors.New("bid already verified")
	ErrNotVerified       = errors.New("bid not verified")
	ErrBidExpired        = errors.New("bid expired")
	ErrBidNotExpired     = errors.New("bid not yet expired")
	ErrNotBidder         = errors.New("caller is not the bidder")
	ErrInsufficientFunds = errors.New("insufficient account balance")
)

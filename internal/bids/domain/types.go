// Package domain contains the business logic for the bid registry.
package domain

import "time"

// Bid is the public view of a bid record. The sealed amount is not included;
// it is served separately so list and status responses stay small.
type Bid struct {
	Domain      string
	Deposit     uint64
	Expiration  time.Time
	Bidder      string
	PlacedAt    time.Time
	Verified    bool
	ClearAmount uint64 // meaningful only when Verified
	Settled     bool
}

// PlaceRequest is the request to place a new bid on a domain name.
type PlaceRequest struct {
	Sealed     []byte
	Proof      []byte
	Deposit    uint64
	Expiration time.Time
}

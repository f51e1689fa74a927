// Package transport provides HTTP request/response types for the bids domain.
package transport

import (
	"time"

	"github.com/pendergraft/sealreg/internal/bids/domain"
)

// PlaceRequest is the HTTP request body for placing a bid. Sealed, Proof and
// Attestation byte fields travel as base64 strings.
type PlaceRequest struct {
	Sealed     []byte    `json:"sealed"`
	Proof      []byte    `json:"proof"`
	Deposit    uint64    `json:"deposit"`
	Expiration time.Time `json:"expiration"`
}

// ToDomain converts PlaceRequest to domain.PlaceRequest.
func (r PlaceRequest) ToDomain() domain.PlaceRequest {
	return domain.PlaceRequest{
		Sealed:     r.Sealed,
		Proof:      r.Proof,
		Deposit:    r.Deposit,
		Expiration: r.Expiration,
	}
}

// VerifyRequest is the HTTP request body for verifying a bid.
type VerifyRequest struct {
	ClearAmount uint64 `json:"clearAmount"`
	Attestation []byte `json:"attestation"`
}

// BidResponse is the public view of a bid.
type BidResponse struct {
	Domain      string    `json:"domain"`
	Deposit     uint64    `json:"deposit"`
	Expiration  time.Time `json:"expiration"`
	Bidder      string    `json:"bidder"`
	PlacedAt    time.Time `json:"placedAt"`
	Verified    bool      `json:"verified"`
	ClearAmount uint64    `json:"clearAmount,omitempty"`
	Settled     bool      `json:"settled"`
}

func toBidResponse(b *domain.Bid) BidResponse {
	return BidResponse{
		Domain:      b.Domain,
		Deposit:     b.Deposit,
		Expiration:  b.Expiration,
		Bidder:      b.Bidder,
		PlacedAt:    b.PlacedAt,
		Verified:    b.Verified,
		ClearAmount: b.ClearAmount,
		Settled:     b.Settled,
	}
}

// SealedResponse carries the opaque sealed amount for a bid.
type SealedResponse struct {
	Domain string `json:"domain"`
	Sealed []byte `json:"sealed"`
}

// ListResponse is the response for listing active bid domains.
type ListResponse struct {
	Domains []string `json:"domains"`
}

// DomainStatusResponse reports a domain's registration status.
type DomainStatusResponse struct {
	Domain     string `json:"domain"`
	Registered bool   `json:"registered"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Package domain contains the business logic for attestation pre-checks. The
// check endpoint lets a client (or the oracle itself) dry-run the
// verification gateway against any sealed blob and attestation without
// touching bid state. The backend registry mirrors what the bid registry
// enforces at verification time.
package domain

import (
	"context"
	"errors"

	"github.com/pendergraft/sealreg/internal/observability/metrics"
	"github.com/pendergraft/sealreg/internal/sealing"
)

// Common errors returned by the check service.
var ErrBackendNotFound = errors.New("sealing backend not supported")

// CheckRequest asks whether an attestation authenticates a claimed value for
// a sealed blob under a named backend.
type CheckRequest struct {
	Backend     string `json:"backend,omitempty"` // defaults to the registry's only backend
	Sealed      []byte `json:"sealed"`
	Proof       []byte `json:"proof,omitempty"`
	ClearAmount uint64 `json:"clearAmount"`
	Attestation []byte `json:"attestation"`
}

// CheckResult reports the outcome of both gateway checks.
type CheckResult struct {
	Backend         string `json:"backend"`
	WellFormed      bool   `json:"wellFormed"`
	Attested        bool   `json:"attested"`
	WellFormedError string `json:"wellFormedError,omitempty"`
	AttestError     string `json:"attestError,omitempty"`
}

type service struct {
	registry *sealing.Registry
}

// NewService creates a new attestation check service.
func NewService(registry *sealing.Registry) *service {
	return &service{registry: registry}
}

// Check runs the gateway's well-formedness and attestation checks against
// the supplied material. It never mutates anything and accepts blobs that
// belong to no bid; rejection reasons are reported in the result, not as
// errors.
func (s *service) Check(ctx context.Context, req CheckRequest) (*CheckResult, error) {
	name := req.Backend
	if name == "" {
		if names := s.registry.List(); len(names) == 1 {
			name = names[0]
		}
	}

	backend, ok := s.registry.Get(name)
	if !ok {
		return nil, ErrBackendNotFound
	}

	result := &CheckResult{Backend: backend.Name()}

	// The proof is optional here: a caller holding only the blob and an
	// attestation can still check the attestation.
	if req.Proof != nil {
		if err := backend.CheckWellFormed(req.Sealed, req.Proof); err != nil {
			result.WellFormedError = err.Error()
		} else {
			result.WellFormed = true
		}
	}

	if err := backend.CheckAttestation(req.Sealed, req.ClearAmount, req.Attestation); err != nil {
		result.AttestError = err.Error()
		metrics.AttestationCheck("rejected")
	} else {
		result.Attested = true
		metrics.AttestationCheck("accepted")
	}

	return result, nil
}

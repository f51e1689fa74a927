// Package sealing provides the verification gateway between the bid registry
// and the external decryption oracle. A sealed amount is an opaque
// authenticated blob; the gateway can check that a blob is well-formed for
// this registry instance, and that an oracle attestation authenticates a
// claimed cleartext value for a specific blob. It never decrypts anything
// itself and holds no state.
package sealing

import (
	"errors"
	"fmt"
)

// Common errors returned by sealing backends.
var (
	ErrMalformed          = errors.New("malformed sealed amount")
	ErrWrongInstance      = errors.New("sealed amount bound to a different instance")
	ErrProofMismatch      = errors.New("well-formedness proof mismatch")
	ErrAttestationInvalid = errors.New("attestation does not authenticate the claimed value")
)

// Backend verifies sealed amounts produced for one confidential-computation
// scheme. Implementations must be deterministic and side-effect free: the
// registry calls them inside its transactional critical section.
//
// Any backend satisfying these two checks is substitutable, for example a
// threshold decryption service or a TEE attestation scheme.
type Backend interface {
	// Name returns the backend identifier, e.g. "x25519".
	Name() string

	// CheckWellFormed validates that a sealed amount submitted at placement
	// time is a structurally valid ciphertext bound to this registry
	// instance. It rejects garbage early, before a bid record is created.
	CheckWellFormed(sealed, proof []byte) error

	// CheckAttestation validates that claimedClear is the authentic
	// decryption of sealed, as attested by the external oracle.
	CheckAttestation(sealed []byte, claimedClear uint64, attestation []byte) error
}

// Registry holds the available sealing backends, keyed by name.
type Registry struct {
	backends map[string]Backend
}

// NewRegistry creates an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

// Register adds a backend to the registry.
func (r *Registry) Register(b Backend) {
	r.backends[b.Name()] = b
}

// Get retrieves a backend by name.
func (r *Registry) Get(name string) (Backend, bool) {
	b, ok := r.backends[name]
	return b, ok
}

// List returns the names of all registered backends.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	return names
}

// FromConfig builds a registry containing the configured default backend.
func FromConfig(backend string, instanceID []byte, oracleAttestKey []byte) (*Registry, error) {
	r := NewRegistry()
	switch backend {
	case BackendX25519:
		b, err := NewX25519Backend(instanceID, oracleAttestKey)
		if err != nil {
			return nil, err
		}
		r.Register(b)
	default:
		return nil, fmt.Errorf("unknown sealing backend: %s", backend)
	}
	return r, nil
}

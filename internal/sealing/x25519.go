package sealing

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
)

// BackendX25519 is the name of the default sealing backend.
const BackendX25519 = "x25519"

// X25519Backend verifies envelopes sealed to an X25519 oracle key and
// attestations signed with the oracle's Ed25519 key.
type X25519Backend struct {
	instanceID []byte
	attestKey  ed25519.PublicKey
}

// NewX25519Backend creates the default backend for a registry instance.
func NewX25519Backend(instanceID, oracleAttestKey []byte) (*X25519Backend, error) {
	if len(instanceID) != InstanceIDSize {
		return nil, fmt.Errorf("instance id must be %d bytes", InstanceIDSize)
	}
	if len(oracleAttestKey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("oracle attestation key must be %d bytes", ed25519.PublicKeySize)
	}
	return &X25519Backend{
		instanceID: append([]byte(nil), instanceID...),
		attestKey:  ed25519.PublicKey(append([]byte(nil), oracleAttestKey...)),
	}, nil
}

// Name returns the backend identifier.
func (b *X25519Backend) Name() string { return BackendX25519 }

// CheckWellFormed validates envelope structure, instance binding, and the
// placement-time proof.
func (b *X25519Backend) CheckWellFormed(sealed, proof []byte) error {
	env, err := ParseEnvelope(sealed)
	if err != nil {
		return err
	}
	if !bytes.Equal(env.InstanceID, b.instanceID) {
		return ErrWrongInstance
	}
	if !bytes.Equal(proof, Proof(sealed)) {
		return ErrProofMismatch
	}
	return nil
}

// CheckAttestation verifies the oracle's Ed25519 signature over the canonical
// attestation message for (sealed, claimedClear).
func (b *X25519Backend) CheckAttestation(sealed []byte, claimedClear uint64, attestation []byte) error {
	if _, err := ParseEnvelope(sealed); err != nil {
		return err
	}
	if len(attestation) != ed25519.SignatureSize {
		return ErrAttestationInvalid
	}
	if !ed25519.Verify(b.attestKey, AttestationMessage(sealed, claimedClear), attestation) {
		return ErrAttestationInvalid
	}
	return nil
}

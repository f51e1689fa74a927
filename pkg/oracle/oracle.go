// Package oracle implements a reference decryption oracle for sealreg. The
// oracle holds the X25519 key bid amounts are sealed to and an Ed25519 key it
// signs attestations with. A production deployment would keep both inside a
// TEE or threshold service; this implementation is for development, testing
// and small private registries.
package oracle

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/curve25519"

	"github.com/pendergraft/sealreg/internal/sealing"
)

// Keys is the oracle's key material.
type Keys struct {
	BoxPriv    []byte             // X25519 private key, 32 bytes
	BoxPub     []byte             // X25519 public key, 32 bytes
	AttestPriv ed25519.PrivateKey // Ed25519 signing key
	AttestPub  ed25519.PublicKey  // Ed25519 verification key
}

// GenerateKeys creates a fresh oracle key pair set.
func GenerateKeys() (*Keys, error) {
	boxPriv := make([]byte, 32)
	if _, err := rand.Read(boxPriv); err != nil {
		return nil, fmt.Errorf("generating box key: %w", err)
	}
	boxPub, err := curve25519.X25519(boxPriv, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("deriving box public key: %w", err)
	}

	attestPub, attestPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating attestation key: %w", err)
	}

	return &Keys{
		BoxPriv:    boxPriv,
		BoxPub:     boxPub,
		AttestPriv: attestPriv,
		AttestPub:  attestPub,
	}, nil
}

// LoadKeys reconstructs oracle keys from hex-encoded private key material.
func LoadKeys(boxPrivHex, attestSeedHex string) (*Keys, error) {
	boxPriv, err := hex.DecodeString(boxPrivHex)
	if err != nil || len(boxPriv) != 32 {
		return nil, fmt.Errorf("box private key must be 32 hex-encoded bytes")
	}
	boxPub, err := curve25519.X25519(boxPriv, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("deriving box public key: %w", err)
	}

	seed, err := hex.DecodeString(attestSeedHex)
	if err != nil || len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("attestation seed must be %d hex-encoded bytes", ed25519.SeedSize)
	}
	attestPriv := ed25519.NewKeyFromSeed(seed)

	return &Keys{
		BoxPriv:    boxPriv,
		BoxPub:     boxPub,
		AttestPriv: attestPriv,
		AttestPub:  attestPriv.Public().(ed25519.PublicKey),
	}, nil
}

// Oracle decrypts sealed amounts and signs attestations.
type Oracle struct {
	keys *Keys
}

// New creates an oracle from its key material.
func New(keys *Keys) *Oracle {
	return &Oracle{keys: keys}
}

// Keys returns the oracle's key material.
func (o *Oracle) Keys() *Keys {
	return o.keys
}

// Decrypt opens a sealed amount.
func (o *Oracle) Decrypt(sealed []byte) (uint64, error) {
	return sealing.Open(o.keys.BoxPriv, sealed)
}

// Attest decrypts a sealed amount and signs an attestation binding the
// cleartext value to the blob. The registry accepts the returned signature
// only for this exact sealed blob.
func (o *Oracle) Attest(sealed []byte) (clear uint64, attestation []byte, err error) {
	clear, err = o.Decrypt(sealed)
	if err != nil {
		return 0, nil, fmt.Errorf("decrypting sealed amount: %w", err)
	}
	attestation = ed25519.Sign(o.keys.AttestPriv, sealing.AttestationMessage(sealed, clear))
	return clear, attestation, nil
}

package sealing

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// Wire format of a sealed amount:
//
//	version(1) || instanceID(16) || ephemeralPub(32) || nonce(24) || box(8+16)
//
// The box is the bid amount (uint64, big endian) sealed to the oracle's
// X25519 key with XChaCha20-Poly1305. The AEAD additional data binds the
// instance ID and ephemeral key, so an envelope cannot be replayed against
// another registry instance.
const (
	envelopeVersion = 0x01

	InstanceIDSize = 16

	amountSize   = 8
	envelopeSize = 1 + InstanceIDSize + curve25519.PointSize + chacha20poly1305.NonceSizeX + amountSize + chacha20poly1305.Overhead
)

const (
	hkdfInfo    = "sealreg/envelope/v1"
	proofLabel  = "sealreg/proof/v1"
	attestLabel = "sealreg/attest/v1"
)

// NewInstanceID generates a random registry instance identifier.
func NewInstanceID() ([]byte, error) {
	id := make([]byte, InstanceIDSize)
	if _, err := rand.Read(id); err != nil {
		return nil, fmt.Errorf("generating instance id: %w", err)
	}
	return id, nil
}

// Envelope is a parsed sealed amount.
type Envelope struct {
	InstanceID   []byte
	EphemeralPub []byte
	Nonce        []byte
	Box          []byte
}

// ParseEnvelope validates the structural layout of a sealed amount.
func ParseEnvelope(sealed []byte) (*Envelope, error) {
	if len(sealed) != envelopeSize {
		return nil, fmt.Errorf("%w: length %d, want %d", ErrMalformed, len(sealed), envelopeSize)
	}
	if sealed[0] != envelopeVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformed, sealed[0])
	}
	off := 1
	env := &Envelope{}
	env.InstanceID = sealed[off : off+InstanceIDSize]
	off += InstanceIDSize
	env.EphemeralPub = sealed[off : off+curve25519.PointSize]
	off += curve25519.PointSize
	env.Nonce = sealed[off : off+chacha20poly1305.NonceSizeX]
	off += chacha20poly1305.NonceSizeX
	env.Box = sealed[off:]
	return env, nil
}

// Seal encrypts a bid amount to the oracle's X25519 public key, bound to the
// given registry instance. It returns the sealed blob and the placement-time
// well-formedness proof. Used by clients and by tests; the registry itself
// never seals.
func Seal(instanceID, oracleBoxPub []byte, amount uint64) (sealed, proof []byte, err error) {
	if len(instanceID) != InstanceIDSize {
		return nil, nil, fmt.Errorf("instance id must be %d bytes", InstanceIDSize)
	}
	if len(oracleBoxPub) != curve25519.PointSize {
		return nil, nil, fmt.Errorf("oracle box key must be %d bytes", curve25519.PointSize)
	}

	var ephPriv [32]byte
	if _, err := rand.Read(ephPriv[:]); err != nil {
		return nil, nil, fmt.Errorf("generating ephemeral key: %w", err)
	}
	ephPub, err := curve25519.X25519(ephPriv[:], curve25519.Basepoint)
	if err != nil {
		return nil, nil, fmt.Errorf("deriving ephemeral public key: %w", err)
	}

	key, err := deriveKey(ephPriv[:], oracleBoxPub, instanceID)
	if err != nil {
		return nil, nil, err
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, nil, fmt.Errorf("creating AEAD: %w", err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("generating nonce: %w", err)
	}

	var plaintext [amountSize]byte
	binary.BigEndian.PutUint64(plaintext[:], amount)

	box := aead.Seal(nil, nonce, plaintext[:], aad(instanceID, ephPub))

	sealed = make([]byte, 0, envelopeSize)
	sealed = append(sealed, envelopeVersion)
	sealed = append(sealed, instanceID...)
	sealed = append(sealed, ephPub...)
	sealed = append(sealed, nonce...)
	sealed = append(sealed, box...)

	return sealed, Proof(sealed), nil
}

// Open decrypts a sealed amount with the oracle's X25519 private key.
// Only the oracle calls this; the registry consumes attestations instead.
func Open(oracleBoxPriv, sealed []byte) (uint64, error) {
	env, err := ParseEnvelope(sealed)
	if err != nil {
		return 0, err
	}

	key, err := deriveKey(oracleBoxPriv, env.EphemeralPub, env.InstanceID)
	if err != nil {
		return 0, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return 0, fmt.Errorf("creating AEAD: %w", err)
	}

	plaintext, err := aead.Open(nil, env.Nonce, env.Box, aad(env.InstanceID, env.EphemeralPub))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(plaintext) != amountSize {
		return 0, fmt.Errorf("%w: plaintext length %d", ErrMalformed, len(plaintext))
	}
	return binary.BigEndian.Uint64(plaintext), nil
}

// Proof computes the placement-time well-formedness proof for a sealed blob.
func Proof(sealed []byte) []byte {
	h := sha256.New()
	h.Write([]byte(proofLabel))
	h.Write(sealed)
	return h.Sum(nil)
}

// AttestationMessage is the canonical byte string an oracle signs to attest
// that claimedClear is the decryption of sealed.
func AttestationMessage(sealed []byte, claimedClear uint64) []byte {
	digest := sha256.Sum256(sealed)
	msg := make([]byte, 0, len(attestLabel)+sha256.Size+amountSize)
	msg = append(msg, attestLabel...)
	msg = append(msg, digest[:]...)
	msg = binary.BigEndian.AppendUint64(msg, claimedClear)
	return msg
}

func deriveKey(priv, pub, instanceID []byte) ([]byte, error) {
	shared, err := curve25519.X25519(priv, pub)
	if err != nil {
		return nil, fmt.Errorf("X25519: %w", err)
	}
	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, shared, instanceID, []byte(hkdfInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("HKDF: %w", err)
	}
	return key, nil
}

func aad(instanceID, ephPub []byte) []byte {
	out := make([]byte, 0, len(instanceID)+len(ephPub))
	out = append(out, instanceID...)
	out = append(out, ephPub...)
	return out
}

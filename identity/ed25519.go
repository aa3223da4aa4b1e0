package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// ed25519PublicID is the default PublicID implementation, adapted from the
// ed25519 key handling the rest of this codebase's ancestor used for
// blockchain validator identities.
type ed25519PublicID struct {
	key ed25519.PublicKey
}

// NewPublicID wraps raw ed25519 public key bytes as a PublicID.
func NewPublicID(raw []byte) (PublicID, error) {
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("identity: public key must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return ed25519PublicID{key: cp}, nil
}

// PublicIDFromHex decodes a hex-encoded ed25519 public key.
func PublicIDFromHex(s string) (PublicID, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("identity: invalid public id hex: %w", err)
	}
	return NewPublicID(b)
}

func (p ed25519PublicID) Bytes() []byte { return p.key }
func (p ed25519PublicID) Hex() string   { return hex.EncodeToString(p.key) }

func (p ed25519PublicID) Equal(other PublicID) bool {
	o, ok := other.(ed25519PublicID)
	if !ok {
		return false
	}
	return string(p.key) == string(o.key)
}

func (p ed25519PublicID) Less(other PublicID) bool {
	return p.Hex() < other.Hex()
}

func (p ed25519PublicID) Verify(msg, sig []byte) error {
	if !ed25519.Verify(p.key, msg, sig) {
		return fmt.Errorf("identity: signature verification failed for %s", p.Hex())
	}
	return nil
}

// ed25519SecretID is the default SecretID implementation.
type ed25519SecretID struct {
	priv ed25519.PrivateKey
	pub  ed25519PublicID
}

// GenerateSecretID creates a fresh ed25519 SecretID.
func GenerateSecretID() (SecretID, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return ed25519SecretID{priv: priv, pub: ed25519PublicID{key: pub}}, nil
}

// SecretIDFromSeed deterministically derives a SecretID from a 32-byte seed,
// primarily for tests that need stable, reproducible identities.
func SecretIDFromSeed(seed []byte) (SecretID, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("identity: seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return ed25519SecretID{priv: priv, pub: ed25519PublicID{key: pub}}, nil
}

func (s ed25519SecretID) PublicID() PublicID { return s.pub }

func (s ed25519SecretID) Sign(msg []byte) []byte {
	return ed25519.Sign(s.priv, msg)
}

// rawBytes exposes the private key bytes for keystore encryption. Kept
// unexported and accessed only through SaveKey/LoadKey in keystore.go.
func (s ed25519SecretID) rawBytes() []byte { return s.priv }

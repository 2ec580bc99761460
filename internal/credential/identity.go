package credential

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/rs/zerolog"
)

// Identity is the service account that signs assertions. It is constructed
// fresh for each exchange and is never persisted.
//
// Exactly one of PrivateKey and KeyARN is set.
type Identity struct {
	Email string

	// PrivateKey is the DER encoding of the RSA signing key.
	PrivateKey []byte

	// KeyARN identifies an AWS KMS key that holds the signing key.
	KeyARN string
}

// KeySource describes where the signing key is held without revealing it.
func (i Identity) KeySource() string {
	if i.KeyARN != "" {
		return "kms"
	}
	return "der"
}

// Fingerprint is a short, non-reversible identifier of the signing key,
// suitable for logs when tracking key rotation.
func (i Identity) Fingerprint() string {
	if i.KeyARN != "" {
		return i.KeyARN
	}
	if len(i.PrivateKey) == 0 {
		return ""
	}
	sum := sha256.Sum256(i.PrivateKey)
	return hex.EncodeToString(sum[:8])
}

// MarshalZerologObject writes the identity without any key material.
func (i Identity) MarshalZerologObject(e *zerolog.Event) {
	e.Str("email", i.Email).
		Str("keySource", i.KeySource()).
		Str("keyFingerprint", i.Fingerprint())
}

// String omits key material.
func (i Identity) String() string {
	return "Identity{" + i.Email + ", " + i.KeySource() + "}"
}

// GoString covers %#v formatting.
func (i Identity) GoString() string {
	return i.String()
}

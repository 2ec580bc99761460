package testhelpers

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	keyOnce   sync.Once
	sharedKey *rsa.PrivateKey
	keyErr    error
)

// GenerateKey returns an RSA 2048-bit key and its PKCS#8 PEM encoding. The
// key is generated once per test binary as generation is slow.
func GenerateKey(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()

	keyOnce.Do(func() {
		sharedKey, keyErr = rsa.GenerateKey(rand.Reader, 2048)
	})
	require.NoError(t, keyErr, "failed to generate private key")

	return sharedKey, EncodePKCS8(t, sharedKey)
}

// EncodePKCS8 returns the "PRIVATE KEY" PEM encoding of the key, the form
// used in Google service account key files.
func EncodePKCS8(t *testing.T, key *rsa.PrivateKey) string {
	t.Helper()

	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err, "failed to marshal private key")

	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
}

// EncodePKCS1 returns the "RSA PRIVATE KEY" PEM encoding of the key.
func EncodePKCS1(key *rsa.PrivateKey) string {
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}))
}

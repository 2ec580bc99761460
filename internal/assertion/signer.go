package assertion

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/chinmina/google-token-provider/internal/credential"
	"github.com/golang-jwt/jwt/v4"
)

// Signer produces the base64url-encoded RS256 signature of a signing input.
// RS256 (RSASSA-PKCS1-v1_5 with SHA-256) is the only algorithm Google accepts
// for the JWT-bearer grant.
type Signer interface {
	Sign(ctx context.Context, signingInput string) (string, error)
}

// NewSigner returns the signer for the identity's key: an in-process RSA
// signer for DER key material, or a KMS signer when the key is held in AWS
// KMS. The KMS client is only required for the latter.
func NewSigner(id credential.Identity, client KMSClient) (Signer, error) {
	if id.KeyARN != "" {
		if client == nil {
			return nil, CryptoError{Op: "kms", Err: errors.New("no KMS client available")}
		}
		return NewKMSSigner(client, id.KeyARN), nil
	}

	return NewRSASigner(id.PrivateKey)
}

// RSASigner signs with an in-process RSA private key.
type RSASigner struct {
	key *rsa.PrivateKey
}

// NewRSASigner imports a DER-encoded private key in PKCS#8 or PKCS#1 form.
func NewRSASigner(der []byte) (*RSASigner, error) {
	if len(der) == 0 {
		return nil, CryptoError{Op: "import key", Err: errors.New("key is empty")}
	}

	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		pkcs1, pkcs1Err := x509.ParsePKCS1PrivateKey(der)
		if pkcs1Err != nil {
			return nil, CryptoError{Op: "import key", Err: errors.New("key is neither PKCS#8 nor PKCS#1 DER")}
		}
		parsed = pkcs1
	}

	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, CryptoError{Op: "import key", Err: fmt.Errorf("key type %T is not RSA", parsed)}
	}

	return &RSASigner{key: key}, nil
}

// Sign implements Signer.
func (s *RSASigner) Sign(_ context.Context, signingInput string) (string, error) {
	sig, err := jwt.SigningMethodRS256.Sign(signingInput, s.key)
	if err != nil {
		return "", CryptoError{Op: "sign", Err: err}
	}
	return sig, nil
}

// Sign signs the assertion, returning the compact JWT.
func Sign(ctx context.Context, signer Signer, unsigned Unsigned) (string, error) {
	sig, err := signer.Sign(ctx, unsigned.SigningInput)
	if err != nil {
		return "", err
	}

	return unsigned.SigningInput + "." + sig, nil
}

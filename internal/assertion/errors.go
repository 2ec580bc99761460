package assertion

import "fmt"

// CryptoError indicates the signing key could not be imported or used. It
// is fatal and not retryable: the key material is misconfigured.
type CryptoError struct {
	Op  string
	Err error
}

func (e CryptoError) Error() string {
	return fmt.Sprintf("assertion signing failed: %s: %v", e.Op, e.Err)
}

func (e CryptoError) Unwrap() error {
	return e.Err
}

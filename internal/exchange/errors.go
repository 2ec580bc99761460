package exchange

import (
	"fmt"
	"net/http"
)

// TokenExchangeError indicates the token endpoint rejected the assertion or
// returned an unusable response. It may be transient or permanent: retry
// policy is left to the caller.
type TokenExchangeError struct {
	StatusCode int
	Status     string

	// Description is the most specific diagnostic found in the response:
	// "error: error_description", either field alone, or the truncated raw
	// body.
	Description string

	Err error
}

func (e TokenExchangeError) Error() string {
	status := e.Status
	if status == "" && e.StatusCode != 0 {
		status = fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}

	msg := "token exchange failed"
	if status != "" {
		msg = fmt.Sprintf("%s: %s", msg, status)
	}
	if e.Description != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Description)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e TokenExchangeError) Unwrap() error {
	return e.Err
}

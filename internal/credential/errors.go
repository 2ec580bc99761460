package credential

import "fmt"

// ConfigurationError indicates that credential configuration is missing or
// unusable. It is not retryable: the enclosing operation should fail
// immediately, as this is a deployment or setup defect.
type ConfigurationError struct {
	// Field is the configuration field at fault, if a single field applies.
	Field  string
	Reason string
	Err    error
}

func (e ConfigurationError) Error() string {
	msg := "service account configuration invalid"
	if e.Field != "" {
		msg = fmt.Sprintf("%s: field %s", msg, e.Field)
	}
	if e.Reason != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e ConfigurationError) Unwrap() error {
	return e.Err
}

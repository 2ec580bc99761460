package credential

import (
	"strings"

	"github.com/sethvargo/go-envconfig"
)

// Fields names the configuration values that hold service account
// credentials. Empty names are not consulted.
type Fields struct {
	Email string

	// PrivateKey holds the complete key.
	PrivateKey string

	// PrivateKeyParts hold a key split in two, for platforms that limit the
	// length of a single value. They are concatenated in order.
	PrivateKeyParts [2]string

	// PrivateKeyARN holds the ARN of an AWS KMS signing key. When set it
	// takes precedence over inline key material.
	PrivateKeyARN string
}

// DefaultFields returns the conventional field names.
func DefaultFields() Fields {
	return Fields{
		Email:      "GOOGLE_SERVICE_ACCOUNT_EMAIL",
		PrivateKey: "GOOGLE_PRIVATE_KEY",
		PrivateKeyParts: [2]string{
			"GOOGLE_PRIVATE_KEY_PART1",
			"GOOGLE_PRIVATE_KEY_PART2",
		},
		PrivateKeyARN: "GOOGLE_PRIVATE_KEY_ARN",
	}
}

// Load resolves the service account identity from the supplied values.
// Failures are always a ConfigurationError.
func Load(values envconfig.Lookuper, fields Fields) (Identity, error) {
	email := Value(values, fields.Email)
	if email == "" {
		return Identity{}, ConfigurationError{
			Field:  fields.Email,
			Reason: "service account email not set",
		}
	}

	if arn := Value(values, fields.PrivateKeyARN); arn != "" {
		return Identity{Email: email, KeyARN: arn}, nil
	}

	raw, field := rawKey(values, fields)
	if raw == "" {
		return Identity{}, ConfigurationError{
			Field:  fields.PrivateKey,
			Reason: "no private key material configured",
		}
	}

	der, _, err := NormalizeKey(raw)
	if err != nil {
		return Identity{}, ConfigurationError{
			Field:  field,
			Reason: "private key material unusable",
			Err:    err,
		}
	}

	return Identity{Email: email, PrivateKey: der}, nil
}

// rawKey returns the configured key text and the field it came from,
// preferring the full key over the partial fields.
func rawKey(values envconfig.Lookuper, fields Fields) (string, string) {
	if full := Value(values, fields.PrivateKey); full != "" {
		return full, fields.PrivateKey
	}

	var b strings.Builder
	for _, name := range fields.PrivateKeyParts {
		b.WriteString(Value(values, name))
	}

	if len(fields.PrivateKeyParts) == 0 {
		return b.String(), fields.PrivateKey
	}
	return b.String(), fields.PrivateKeyParts[0]
}

// Value returns the trimmed value of the named field, or "" when the name is
// empty or the field is absent.
func Value(values envconfig.Lookuper, name string) string {
	if values == nil || name == "" {
		return ""
	}

	v, ok := values.Lookup(name)
	if !ok {
		return ""
	}

	return strings.TrimSpace(v)
}

// FirstValue returns the first non-blank value among the named fields.
func FirstValue(values envconfig.Lookuper, names []string) string {
	for _, name := range names {
		if v := Value(values, name); v != "" {
			return v
		}
	}
	return ""
}

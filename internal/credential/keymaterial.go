package credential

import (
	"encoding/base64"
	"errors"
	"regexp"
	"strings"
)

// keyEncoding is one accepted representation of private key material. The
// decode function returns the PEM text, or false when the raw value is not
// in this representation.
type keyEncoding struct {
	name   string
	decode func(raw string) (string, bool)
}

// keyEncodings are attempted in order; the first to accept the value wins.
// The raw PEM encoding accepts everything, so it must remain last.
var keyEncodings = []keyEncoding{
	{name: "base64-pem", decode: decodeBase64PEM},
	{name: "pem", decode: decodeRawPEM},
}

var (
	pemBoundary = regexp.MustCompile(`-----(BEGIN|END)[^-]*-----`)

	errNoKeyBody = errors.New("key body is empty")
)

const pemHeader = "-----BEGIN"

// decodeBase64PEM accepts a PEM document that has itself been base64
// encoded, as some secret stores require single-line values.
func decodeBase64PEM(raw string) (string, bool) {
	decoded, err := decodeBase64(compact(raw))
	if err != nil {
		return "", false
	}

	text := string(decoded)
	if !strings.Contains(text, pemHeader) {
		return "", false
	}

	return unescapeNewlines(text), true
}

// decodeRawPEM interprets the value literally, expanding escaped newlines.
func decodeRawPEM(raw string) (string, bool) {
	return unescapeNewlines(raw), true
}

// NormalizeKey converts configured key material in any accepted encoding to
// DER bytes. It returns the name of the encoding that was recognised.
func NormalizeKey(raw string) ([]byte, string, error) {
	for _, enc := range keyEncodings {
		text, ok := enc.decode(raw)
		if !ok {
			continue
		}

		der, err := pemBody(text)
		if err != nil {
			return nil, enc.name, err
		}

		return der, enc.name, nil
	}

	return nil, "", errors.New("unrecognised key encoding")
}

// pemBody strips PEM boundaries and whitespace, returning the decoded body.
// Parsing is lenient: keys whose line breaks were lost in transit are
// accepted.
func pemBody(text string) ([]byte, error) {
	body := compact(pemBoundary.ReplaceAllString(text, ""))
	if body == "" {
		return nil, errNoKeyBody
	}

	der, err := decodeBase64(body)
	if err != nil {
		return nil, errors.New("key body is not valid base64")
	}

	return der, nil
}

func decodeBase64(s string) ([]byte, error) {
	if s == "" {
		return nil, errNoKeyBody
	}

	b, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return b, nil
	}

	return base64.RawStdEncoding.DecodeString(s)
}

func unescapeNewlines(s string) string {
	s = strings.ReplaceAll(s, `\r\n`, "\n")
	return strings.ReplaceAll(s, `\n`, "\n")
}

// compact removes all whitespace, including escaped newlines.
func compact(s string) string {
	s = strings.ReplaceAll(s, `\r`, "")
	s = strings.ReplaceAll(s, `\n`, "")
	return strings.Join(strings.Fields(s), "")
}

package cache

import (
	"net/url"
	"strings"
)

// Key derives the cache key for a token request. Scopes must already be
// canonical (see assertion.CanonicalScopes) so that requests differing only
// in scope order share a key.
//
// Structure:
//   - serviceaccount://<email>/<subject>?scope=<scope>&scope=<scope>
//
// The subject segment is empty when the service account acts as itself.
func Key(email, subject string, scopes []string) string {
	var b strings.Builder

	b.WriteString("serviceaccount://")
	b.WriteString(url.PathEscape(email))
	b.WriteString("/")
	b.WriteString(url.PathEscape(subject))

	for i, s := range scopes {
		if i == 0 {
			b.WriteString("?")
		} else {
			b.WriteString("&")
		}
		b.WriteString("scope=")
		b.WriteString(url.QueryEscape(s))
	}

	return b.String()
}

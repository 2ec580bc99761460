package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		subject  string
		scopes   []string
		expected string
	}{
		{
			name:     "no subject",
			email:    "robot@project.iam.gserviceaccount.com",
			scopes:   []string{"https://mail.google.com/"},
			expected: "serviceaccount://robot@project.iam.gserviceaccount.com/?scope=https%3A%2F%2Fmail.google.com%2F",
		},
		{
			name:     "subject and scopes",
			email:    "robot@project.iam.gserviceaccount.com",
			subject:  "someone@example.com",
			scopes:   []string{"a", "b"},
			expected: "serviceaccount://robot@project.iam.gserviceaccount.com/someone@example.com?scope=a&scope=b",
		},
		{
			name:     "no scopes",
			email:    "robot@project.iam.gserviceaccount.com",
			expected: "serviceaccount://robot@project.iam.gserviceaccount.com/",
		},
		{
			name:     "separators escaped",
			email:    "a/b@example.com",
			subject:  "c?d@example.com",
			scopes:   []string{"x&y"},
			expected: "serviceaccount://a%2Fb@example.com/c%3Fd@example.com?scope=x%26y",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Key(tt.email, tt.subject, tt.scopes))
		})
	}
}

func TestKey_DistinguishesSubject(t *testing.T) {
	scopes := []string{"https://mail.google.com/"}

	assert.NotEqual(t,
		Key("robot@project.iam.gserviceaccount.com", "", scopes),
		Key("robot@project.iam.gserviceaccount.com", "someone@example.com", scopes),
	)
}

package testhelpers

import (
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-jose/go-jose/v4"
)

// MockTokenServer provides a configurable mock OAuth2 token endpoint.
//
// Configure fields before issuing requests; they are read by the handler
// without synchronization.
type MockTokenServer struct {
	Server *httptest.Server

	// Tokens are returned in sequence; the last is repeated once exhausted.
	Tokens    []string
	ExpiresIn int64 // expires_in to return; omitted when zero

	StatusCode int    // HTTP status code to return (200 if not set)
	Body       string // raw body to return instead of a token response

	// VerifyKey, when set, is used to verify each assertion's signature.
	// Requests with an invalid signature are rejected with invalid_grant.
	VerifyKey *rsa.PublicKey

	// Started receives a value as each request arrives, if set. Release, if
	// set, blocks each request until it is closed.
	Started chan struct{}
	Release chan struct{}

	requests atomic.Int32

	mu     sync.Mutex
	claims []map[string]any
}

// SetupMockTokenServer creates a mock token endpoint. The server is closed
// when the test completes.
func SetupMockTokenServer(t *testing.T) *MockTokenServer {
	t.Helper()

	mock := &MockTokenServer{
		Tokens:     []string{"ya29.test-access-token"},
		ExpiresIn:  3599,
		StatusCode: http.StatusOK,
	}

	router := http.NewServeMux()
	router.HandleFunc("POST /token", mock.handleToken)

	mock.Server = httptest.NewServer(router)
	t.Cleanup(mock.Server.Close)

	return mock
}

// URL is the token endpoint URL.
func (m *MockTokenServer) URL() string {
	return m.Server.URL + "/token"
}

// RequestCount is the number of token requests received.
func (m *MockTokenServer) RequestCount() int {
	return int(m.requests.Load())
}

// Claims returns the decoded claim sets of the assertions received, in
// arrival order.
func (m *MockTokenServer) Claims() []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]map[string]any(nil), m.claims...)
}

func (m *MockTokenServer) handleToken(w http.ResponseWriter, r *http.Request) {
	n := int(m.requests.Add(1))

	if m.Started != nil {
		m.Started <- struct{}{}
	}
	if m.Release != nil {
		<-m.Release
	}

	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if gt := r.PostForm.Get("grant_type"); gt != "urn:ietf:params:oauth:grant-type:jwt-bearer" {
		writeOAuthError(w, http.StatusBadRequest, "unsupported_grant_type", gt)
		return
	}

	payload, err := m.readAssertion(r.PostForm.Get("assertion"))
	if err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", err.Error())
		return
	}

	claims := map[string]any{}
	if err := json.Unmarshal(payload, &claims); err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "claims are not JSON")
		return
	}

	m.mu.Lock()
	m.claims = append(m.claims, claims)
	m.mu.Unlock()

	if m.StatusCode != http.StatusOK || m.Body != "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(m.StatusCode)
		_, _ = w.Write([]byte(m.Body))
		return
	}

	token := m.Tokens[min(n, len(m.Tokens))-1]
	response := map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
	}
	if m.ExpiresIn != 0 {
		response["expires_in"] = m.ExpiresIn
	}

	WriteJSON(w, response)
}

func (m *MockTokenServer) readAssertion(assertion string) ([]byte, error) {
	jws, err := jose.ParseSigned(assertion, []jose.SignatureAlgorithm{jose.RS256})
	if err != nil {
		return nil, fmt.Errorf("assertion is not an RS256 JWS: %w", err)
	}

	if m.VerifyKey == nil {
		return jws.UnsafePayloadWithoutVerification(), nil
	}

	return jws.Verify(m.VerifyKey)
}

func writeOAuthError(w http.ResponseWriter, status int, code, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             code,
		"error_description": description,
	})
}

// WriteJSON is a helper function that writes a JSON response.
// It sets the Content-Type header and marshals the payload to JSON.
func WriteJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(payload)
	if err != nil {
		// In test context, this should never happen with valid test data
		http.Error(w, fmt.Sprintf("failed to marshal JSON: %v", err), http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(data)
}

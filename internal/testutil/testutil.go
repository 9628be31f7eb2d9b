// Package testutil provides shared helpers for handler and service tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

// NewTestRequest builds an httptest request with the given body.
func NewTestRequest(method, target string, body io.Reader) *http.Request {
	return httptest.NewRequest(method, target, body)
}

// NewTestRequestWithJSON builds a request whose body is the JSON
// encoding of v, with the Content-Type header set.
func NewTestRequestWithJSON(t *testing.T, method, target string, v any) *http.Request {
	t.Helper()

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshaling request body: %v", err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// ParseJSONResponse decodes a JSON response body into a generic map.
func ParseJSONResponse(t *testing.T, body []byte) map[string]any {
	t.Helper()

	var got map[string]any
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("unmarshaling response body %q: %v", body, err)
	}
	return got
}

// AssertStatusCode fails the test when the recorded status differs
// from want.
func AssertStatusCode(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()

	if rr.Code != want {
		t.Fatalf("expected status %d, got %d (body: %s)", want, rr.Code, rr.Body.String())
	}
}

// AssertJSONContains fails the test unless the JSON body has the given
// key with the given value.
func AssertJSONContains(t *testing.T, body []byte, key string, want any) {
	t.Helper()

	got := ParseJSONResponse(t, body)
	v, ok := got[key]
	if !ok {
		t.Fatalf("expected key %q in response %q", key, body)
	}
	if v != want {
		t.Fatalf("expected %q=%v, got %v", key, want, v)
	}
}

// RandomUUID returns a fresh UUID for use as a test ID.
func RandomUUID() uuid.UUID {
	return uuid.New()
}

// RandomEmail returns a unique email address.
func RandomEmail() string {
	return fmt.Sprintf("user-%s@example.com", uuid.New().String()[:8])
}

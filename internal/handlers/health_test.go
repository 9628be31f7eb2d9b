package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeChecker struct {
	err error
}

func (f *fakeChecker) Health(ctx context.Context) error { return f.err }

func decodeHealth(t *testing.T, rr *httptest.ResponseRecorder) healthResponse {
	t.Helper()
	var resp healthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding health response: %v", err)
	}
	return resp
}

func TestHealthHandler_Live(t *testing.T) {
	handler := NewHealthHandler(&fakeChecker{}, &fakeChecker{})

	rr := httptest.NewRecorder()
	handler.Live(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if resp := decodeHealth(t, rr); resp.Status != "ok" {
		t.Fatalf("unexpected status: %q", resp.Status)
	}
}

func TestHealthHandler_Ready(t *testing.T) {
	handler := NewHealthHandler(&fakeChecker{}, &fakeChecker{})

	rr := httptest.NewRecorder()
	handler.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	resp := decodeHealth(t, rr)
	if resp.Checks["postgres"] != "ok" || resp.Checks["redis"] != "ok" {
		t.Fatalf("unexpected checks: %v", resp.Checks)
	}
}

func TestHealthHandler_Ready_DatabaseDown(t *testing.T) {
	handler := NewHealthHandler(&fakeChecker{err: errors.New("connection refused")}, &fakeChecker{})

	rr := httptest.NewRecorder()
	handler.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	resp := decodeHealth(t, rr)
	if resp.Status != "unavailable" {
		t.Fatalf("unexpected status: %q", resp.Status)
	}
	if resp.Checks["postgres"] != "connection refused" {
		t.Fatalf("unexpected postgres check: %q", resp.Checks["postgres"])
	}
	if resp.Checks["redis"] != "ok" {
		t.Fatalf("unexpected redis check: %q", resp.Checks["redis"])
	}
}

func TestHealthHandler_Ready_RedisDown(t *testing.T) {
	handler := NewHealthHandler(&fakeChecker{}, &fakeChecker{err: errors.New("redis: ping timeout")})

	rr := httptest.NewRecorder()
	handler.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if resp := decodeHealth(t, rr); resp.Checks["redis"] != "redis: ping timeout" {
		t.Fatalf("unexpected redis check: %q", resp.Checks["redis"])
	}
}

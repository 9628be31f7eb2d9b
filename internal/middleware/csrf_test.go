package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestCSRFMiddleware_AllowsSafeMethods(t *testing.T) {
	m := NewCSRFMiddleware(false)
	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		t.Run(method, func(t *testing.T) {
			called := false
			rr := httptest.NewRecorder()
			m.Protect(okHandler(&called)).ServeHTTP(rr, httptest.NewRequest(method, "/api/posts", nil))

			if !called {
				t.Fatal("expected handler to run without a token")
			}
		})
	}
}

func TestCSRFMiddleware_SkipsNonAPIPaths(t *testing.T) {
	m := NewCSRFMiddleware(false)
	called := false
	rr := httptest.NewRecorder()
	m.Protect(okHandler(&called)).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/static/upload", nil))

	if !called {
		t.Fatal("expected non-API paths to pass through")
	}
}

func TestCSRFMiddleware_MissingCookie(t *testing.T) {
	m := NewCSRFMiddleware(false)
	called := false
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/posts", nil)
	req.Header.Set("X-CSRF-Token", "abc")
	m.Protect(okHandler(&called)).ServeHTTP(rr, req)

	if called {
		t.Fatal("handler should not run without the cookie")
	}
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestCSRFMiddleware_HeaderMismatch(t *testing.T) {
	m := NewCSRFMiddleware(false)
	called := false
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/posts", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "expected"})
	req.Header.Set(csrfHeaderName, "forged")
	m.Protect(okHandler(&called)).ServeHTTP(rr, req)

	if called {
		t.Fatal("handler should not run on a token mismatch")
	}
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestCSRFMiddleware_MatchingToken(t *testing.T) {
	m := NewCSRFMiddleware(false)
	called := false
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/posts", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "tok-abc"})
	req.Header.Set(csrfHeaderName, "tok-abc")
	m.Protect(okHandler(&called)).ServeHTTP(rr, req)

	if !called {
		t.Fatal("expected handler to run with a matching token")
	}
}

func TestCSRFMiddleware_GetToken(t *testing.T) {
	m := NewCSRFMiddleware(false)
	rr := httptest.NewRecorder()
	m.GetToken(rr, httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	token, _ := body["csrf_token"].(string)
	if token == "" {
		t.Fatal("expected a token in the response body")
	}

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != csrfCookieName {
		t.Fatalf("expected a csrf cookie, got %v", cookies)
	}
	if cookies[0].Value != token {
		t.Fatal("cookie and body token should match")
	}
	if cookies[0].HttpOnly {
		t.Fatal("csrf cookie must be readable by script")
	}
}

package middleware

import (
	"net/http"
	"strings"
)

// CacheControl lets static assets and uploaded images cache while keeping
// API responses fresh.
type CacheControl struct{}

func NewCacheControl() *CacheControl {
	return &CacheControl{}
}

func (c *CacheControl) Apply(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/uploads/"):
			// Upload filenames are random UUIDs, so long cache windows are safe.
			w.Header().Set("Cache-Control", "public, max-age=604800, immutable")
		case strings.HasPrefix(r.URL.Path, "/static/"):
			w.Header().Set("Cache-Control", "public, max-age=3600")
		case strings.HasPrefix(r.URL.Path, "/api/"):
			w.Header().Set("Cache-Control", "no-store")
		}
		next.ServeHTTP(w, r)
	})
}

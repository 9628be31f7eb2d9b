// A fake Google-shaped OIDC provider for local and docker-compose testing
// of the provider login flow. It serves discovery, auth-code, token, and
// JWKS endpoints, signing ID tokens with a throwaway RSA key.
//
// Test accounts are queued out of band:
//
//	curl -X POST http://localhost:5556/stub/accounts \
//	  -d '{"email":"alice@example.com","email_verified":true,"name":"Alice Miller"}'
//
// Each /auth request consumes one queued account.
package main

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

type account struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Subject       string `json:"sub"`
}

type pendingCode struct {
	account     account
	nonce       string
	clientID    string
	redirectURI string
}

type stubProvider struct {
	issuer      string
	clientID    string
	redirectURI string
	signingKey  *rsa.PrivateKey
	keyID       string

	mu       sync.Mutex
	accounts []account
	codes    map[string]pendingCode
}

func main() {
	stub, err := newStubProvider()
	if err != nil {
		log.Fatalf("oidc stub: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", stub.discovery)
	mux.HandleFunc("GET /auth", stub.authorize)
	mux.HandleFunc("POST /token", stub.token)
	mux.HandleFunc("GET /jwks", stub.jwks)
	mux.HandleFunc("POST /stub/accounts", stub.queueAccount)

	addr := envOr("OIDC_STUB_ADDR", ":5556")
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	log.Printf("oidc stub listening on %s", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

func newStubProvider() (*stubProvider, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("generating signing key: %w", err)
	}
	keyID, err := randomString(8)
	if err != nil {
		return nil, fmt.Errorf("generating key id: %w", err)
	}

	return &stubProvider{
		issuer:      envOr("OIDC_ISSUER_URL", "http://oidc:5556"),
		clientID:    envOr("GOOGLE_CLIENT_ID", "socialspace-local"),
		redirectURI: envOr("GOOGLE_REDIRECT_URL", "http://localhost:8080/api/auth/google/callback"),
		signingKey:  key,
		keyID:       keyID,
		codes:       map[string]pendingCode{},
	}, nil
}

func (s *stubProvider) discovery(w http.ResponseWriter, r *http.Request) {
	respond(w, map[string]any{
		"issuer":                                s.issuer,
		"authorization_endpoint":                s.issuer + "/auth",
		"token_endpoint":                        s.issuer + "/token",
		"jwks_uri":                              s.issuer + "/jwks",
		"response_types_supported":              []string{"code"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
		"scopes_supported":                      []string{"openid", "email", "profile"},
		"token_endpoint_auth_methods_supported": []string{"client_secret_basic", "client_secret_post"},
	})
}

func (s *stubProvider) queueAccount(w http.ResponseWriter, r *http.Request) {
	var a account
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	if a.Email == "" {
		http.Error(w, "email required", http.StatusBadRequest)
		return
	}
	if a.Subject == "" {
		a.Subject = "stub-" + a.Email
	}

	s.mu.Lock()
	s.accounts = append(s.accounts, a)
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *stubProvider) authorize(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if query.Get("response_type") != "code" {
		http.Error(w, "unsupported response_type", http.StatusBadRequest)
		return
	}
	state := query.Get("state")
	redirectURI := query.Get("redirect_uri")
	if query.Get("client_id") == "" || redirectURI == "" || state == "" {
		http.Error(w, "missing parameters", http.StatusBadRequest)
		return
	}
	if redirectURI != s.redirectURI {
		http.Error(w, "invalid redirect_uri", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if len(s.accounts) == 0 {
		s.mu.Unlock()
		http.Error(w, "no queued account; POST /stub/accounts first", http.StatusBadRequest)
		return
	}
	a := s.accounts[0]
	s.accounts = s.accounts[1:]
	s.mu.Unlock()

	code, err := randomString(16)
	if err != nil {
		http.Error(w, "failed to mint code", http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	s.codes[code] = pendingCode{
		account:     a,
		nonce:       query.Get("nonce"),
		clientID:    query.Get("client_id"),
		redirectURI: redirectURI,
	}
	s.mu.Unlock()

	target, err := url.Parse(redirectURI)
	if err != nil {
		http.Error(w, "invalid redirect_uri", http.StatusBadRequest)
		return
	}
	params := target.Query()
	params.Set("code", code)
	params.Set("state", state)
	target.RawQuery = params.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}

func (s *stubProvider) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	if r.Form.Get("grant_type") != "authorization_code" {
		http.Error(w, "unsupported grant_type", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	pending, ok := s.codes[r.Form.Get("code")]
	delete(s.codes, r.Form.Get("code"))
	s.mu.Unlock()
	if !ok {
		http.Error(w, "invalid code", http.StatusBadRequest)
		return
	}

	clientID := r.Form.Get("client_id")
	if clientID == "" {
		if id, _, found := basicAuthClient(r.Header.Get("Authorization")); found {
			clientID = id
		}
	}
	// Any client secret is accepted; only the code and client id are checked.
	if clientID != "" && clientID != pending.clientID {
		http.Error(w, "invalid client_id", http.StatusUnauthorized)
		return
	}
	if uri := r.Form.Get("redirect_uri"); uri != "" && uri != pending.redirectURI {
		http.Error(w, "redirect_uri mismatch", http.StatusBadRequest)
		return
	}

	idToken, err := s.signIDToken(pending)
	if err != nil {
		http.Error(w, "failed to sign token", http.StatusInternalServerError)
		return
	}
	accessToken, err := randomString(16)
	if err != nil {
		http.Error(w, "failed to mint token", http.StatusInternalServerError)
		return
	}

	respond(w, map[string]any{
		"access_token": accessToken,
		"token_type":   "Bearer",
		"expires_in":   600,
		"id_token":     idToken,
	})
}

func (s *stubProvider) jwks(w http.ResponseWriter, r *http.Request) {
	respond(w, map[string]any{
		"keys": []map[string]any{{
			"kty": "RSA",
			"use": "sig",
			"alg": "RS256",
			"kid": s.keyID,
			"n":   base64.RawURLEncoding.EncodeToString(s.signingKey.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(s.signingKey.PublicKey.E)).Bytes()),
		}},
	})
}

func (s *stubProvider) signIDToken(pending pendingCode) (string, error) {
	now := time.Now()
	claims := map[string]any{
		"iss":            s.issuer,
		"sub":            pending.account.Subject,
		"aud":            pending.clientID,
		"exp":            now.Add(10 * time.Minute).Unix(),
		"iat":            now.Unix(),
		"email":          pending.account.Email,
		"email_verified": pending.account.EmailVerified,
		"name":           pending.account.Name,
		"nonce":          pending.nonce,
	}
	header := map[string]any{
		"alg": "RS256",
		"typ": "JWT",
		"kid": s.keyID,
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", err
	}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}

	signingInput := base64.RawURLEncoding.EncodeToString(headerJSON) + "." + base64.RawURLEncoding.EncodeToString(claimsJSON)
	hash := sha256.Sum256([]byte(signingInput))
	signature, err := rsa.SignPKCS1v15(rand.Reader, s.signingKey, crypto.SHA256, hash[:])
	if err != nil {
		return "", err
	}

	return signingInput + "." + base64.RawURLEncoding.EncodeToString(signature), nil
}

func basicAuthClient(header string) (string, string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Basic") {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", "", false
	}
	creds := strings.SplitN(string(decoded), ":", 2)
	if len(creds) != 2 {
		return "", "", false
	}
	return creds[0], creds[1], true
}

func randomString(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func respond(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func envOr(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

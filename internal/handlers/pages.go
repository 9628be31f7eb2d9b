package handlers

import (
	"context"
	"errors"
	"html/template"
	"log"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/socialspace/socialspace/internal/middleware"
	"github.com/socialspace/socialspace/internal/models"
	"github.com/socialspace/socialspace/internal/services"
)

// PageOAuthConfig controls which external sign-in buttons the login
// page renders.
type PageOAuthConfig struct {
	GoogleEnabled bool
}

type PageHandler struct {
	templates *template.Template
	oauth     PageOAuthConfig

	posts   services.PostServiceInterface
	users   services.UserServiceInterface
	friends services.FriendServiceInterface
}

func NewPageHandler(templatesDir string, oauth PageOAuthConfig) (*PageHandler, error) {
	templates, err := template.ParseGlob(filepath.Join(templatesDir, "*.html"))
	if err != nil {
		return nil, err
	}

	return &PageHandler{
		templates: templates,
		oauth:     oauth,
	}, nil
}

// SetServices wires the domain services the dashboard and profile pages
// read to render their initial state. Without them the pages render empty
// shells and the scripts fetch everything instead.
func (h *PageHandler) SetServices(
	posts services.PostServiceInterface,
	users services.UserServiceInterface,
	friends services.FriendServiceInterface,
) {
	h.posts = posts
	h.users = users
	h.friends = friends
}

type PageData struct {
	Title           string
	User            *models.User
	BaseURL         string
	GoogleEnabled   bool
	ProfileUsername string

	// Initial state embedded into the page so the first paint does not
	// wait on a round trip. Scripts fall back to fetching when nil.
	InitialFeed    []models.PostWithAuthor
	InitialProfile *ProfileResponse
}

// Index serves the login and registration page. Signed-in users are
// sent straight to their dashboard.
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	if user := middleware.UserFromContext(r.Context()); user != nil {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}

	h.render(w, r, "index.html", PageData{
		Title:         "Social Space",
		BaseURL:       resolveBaseURL(r),
		GoogleEnabled: h.oauth.GoogleEnabled,
	})
}

func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	data := PageData{
		Title:   "Dashboard - Social Space",
		User:    user,
		BaseURL: resolveBaseURL(r),
	}

	if h.posts != nil && user != nil {
		posts, err := h.posts.Feed(r.Context(), user.ID)
		if err != nil {
			log.Printf("Error loading initial feed: %v", err)
		} else {
			data.InitialFeed = posts
		}
	}

	h.render(w, r, "dashboard.html", data)
}

func (h *PageHandler) Profile(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	viewer := middleware.UserFromContext(r.Context())
	data := PageData{
		Title:           username + " - Social Space",
		User:            viewer,
		BaseURL:         resolveBaseURL(r),
		ProfileUsername: username,
	}

	if h.users != nil && viewer != nil {
		profile, err := h.profileState(r.Context(), viewer, username)
		if errors.Is(err, services.ErrUserNotFound) {
			h.NotFound(w, r)
			return
		}
		if err != nil {
			log.Printf("Error loading initial profile: %v", err)
		} else {
			data.InitialProfile = profile
		}
	}

	h.render(w, r, "profile.html", data)
}

// profileState assembles the same payload the profile API serves, so the
// page and the script render from one shape.
func (h *PageHandler) profileState(ctx context.Context, viewer *models.User, username string) (*ProfileResponse, error) {
	user, err := h.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	postCount, friendCount, err := h.users.Stats(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	status := models.FriendshipStateNone
	if user.ID != viewer.ID {
		status, err = h.friends.StatusFor(ctx, viewer.ID, user.ID)
		if err != nil {
			return nil, err
		}
	}

	posts, err := h.posts.UserPosts(ctx, viewer.ID, user.ID)
	if err != nil {
		return nil, err
	}

	return &ProfileResponse{
		Success:          true,
		User:             user,
		PostCount:        postCount,
		FriendCount:      friendCount,
		FriendshipStatus: status,
		Posts:            posts,
	}, nil
}

func (h *PageHandler) Messages(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "messages.html", PageData{
		Title:   "Messages - Social Space",
		User:    middleware.UserFromContext(r.Context()),
		BaseURL: resolveBaseURL(r),
	})
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, name string, data PageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		http.Error(w, "Template error: "+err.Error(), http.StatusInternalServerError)
	}
}

func resolveBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if v := sanitizeProto(firstForwardedValue(r.Header.Get("X-Forwarded-Proto"))); v != "" {
		scheme = v
	}

	host := sanitizeHost(r.Host)
	if v := sanitizeHost(firstForwardedValue(r.Header.Get("X-Forwarded-Host"))); v != "" {
		host = v
	}

	if host == "" {
		host = "localhost"
	}
	return scheme + "://" + host
}

func firstForwardedValue(v string) string {
	if v == "" {
		return ""
	}
	parts := strings.Split(v, ",")
	if len(parts) == 0 {
		return ""
	}
	return strings.TrimSpace(parts[0])
}

func sanitizeProto(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "http":
		return "http"
	case "https":
		return "https"
	default:
		return ""
	}
}

func sanitizeHost(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if strings.Contains(raw, "://") {
		return ""
	}
	if strings.ContainsAny(raw, " \t\r\n/\\?#") {
		return ""
	}
	if strings.Contains(raw, "@") {
		return ""
	}

	host := raw
	port := ""

	if strings.HasPrefix(raw, "[") {
		parsedHost, parsedPort, err := net.SplitHostPort(raw)
		if err != nil {
			if strings.HasSuffix(raw, "]") {
				trimmed := strings.TrimSuffix(strings.TrimPrefix(raw, "["), "]")
				if net.ParseIP(trimmed) != nil {
					return "[" + trimmed + "]"
				}
			}
			return ""
		}
		host, port = parsedHost, parsedPort
	} else if strings.Count(raw, ":") == 1 {
		parsedHost, parsedPort, err := net.SplitHostPort(raw)
		if err == nil {
			host, port = parsedHost, parsedPort
		} else {
			if net.ParseIP(raw) == nil {
				return ""
			}
			return raw
		}
	} else if strings.Contains(raw, ":") {
		if net.ParseIP(raw) != nil {
			return raw
		}
		return ""
	}

	if port != "" {
		n, err := strconv.Atoi(port)
		if err != nil || n < 1 || n > 65535 {
			return ""
		}
	}

	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}
	hostLower := strings.ToLower(host)
	if net.ParseIP(hostLower) == nil && !isValidHostname(hostLower) {
		return ""
	}

	if port == "" {
		return hostLower
	}
	return net.JoinHostPort(hostLower, port)
}

func isValidHostname(host string) bool {
	if host == "localhost" {
		return true
	}
	if len(host) > 253 {
		return false
	}
	if strings.HasPrefix(host, ".") || strings.HasSuffix(host, ".") {
		return false
	}

	labels := strings.Split(host, ".")
	if len(labels) == 0 {
		return false
	}
	for _, label := range labels {
		if label == "" || len(label) > 63 {
			return false
		}
		if !isAlphaNum(label[0]) || !isAlphaNum(label[len(label)-1]) {
			return false
		}
		for i := 0; i < len(label); i++ {
			b := label[i]
			if isAlphaNum(b) || b == '-' {
				continue
			}
			return false
		}
	}
	return true
}

func isAlphaNum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

// NotFound renders the 404 error page.
func (h *PageHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	if err := h.templates.ExecuteTemplate(w, "404.html", nil); err != nil {
		http.Error(w, "Page not found", http.StatusNotFound)
	}
}

// InternalError renders the 500 error page.
func (h *PageHandler) InternalError(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	if err := h.templates.ExecuteTemplate(w, "500.html", nil); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

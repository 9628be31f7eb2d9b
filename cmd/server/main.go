package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/socialspace/socialspace/internal/config"
	"github.com/socialspace/socialspace/internal/database"
	"github.com/socialspace/socialspace/internal/handlers"
	"github.com/socialspace/socialspace/internal/logging"
	"github.com/socialspace/socialspace/internal/middleware"
	"github.com/socialspace/socialspace/internal/services"
)

func main() {
	if err := run(); err != nil {
		logging.Error("Application error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func run() error {
	// Initialize logger
	logger := logging.New()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfg.Server.Debug {
		logger.SetLevel(logging.LevelDebug)
		logging.SetDefaultLevel(logging.LevelDebug)
		logger.Debug("Debug logging enabled", map[string]interface{}{
			"env": cfg.Server.Environment,
		})
	}

	logger.Info("Starting Social Space server...")

	// Connect to PostgreSQL
	logger.Info("Connecting to PostgreSQL", map[string]interface{}{
		"host": cfg.Database.Host,
		"port": cfg.Database.Port,
	})
	db, err := database.NewPostgresDB(cfg.Database.DSN(), database.PoolOptions{
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	// Run migrations
	logger.Info("Running database migrations...")
	migrator, err := database.NewMigrator(cfg.Database.DSN(), "migrations")
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		return fmt.Errorf("running migrations: %w", err)
	}
	_ = migrator.Close()
	logger.Info("Migrations completed")

	// Connect to Redis
	logger.Info("Connecting to Redis", map[string]interface{}{
		"addr": cfg.Redis.Addr(),
	})
	redisDB, err := database.NewRedisDB(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() { _ = redisDB.Close() }()
	logger.Info("Connected to Redis")

	// Image uploads
	uploads, err := services.NewUploadStore(cfg.Upload.Dir, cfg.Upload.MaxImageEdge)
	if err != nil {
		return fmt.Errorf("preparing upload directories: %w", err)
	}

	// Initialize services
	dbAdapter := services.NewPoolAdapter(db.Pool)
	redisAdapter := services.NewRedisAdapter(redisDB.Client)

	emailProvider := services.NewEmailProvider(cfg.Email)
	userService := services.NewUserService(dbAdapter, uploads)
	authService := services.NewAuthService(redisAdapter, cfg.Session.TTL)
	providerAuthService := services.NewProviderAuthService(dbAdapter)
	friendService := services.NewFriendService(dbAdapter)
	postService := services.NewPostService(dbAdapter, uploads)
	messageService := services.NewMessageService(dbAdapter)
	notificationService := services.NewNotificationService(dbAdapter, emailProvider)
	accountService := services.NewAccountService(dbAdapter, uploads)

	oauthProviders := map[services.Provider]services.OAuthProvider{}
	if cfg.OAuth.Google.Enabled {
		googleProvider, err := services.NewOIDCProvider(context.Background(), services.OIDCProviderConfig{
			Provider:     services.ProviderGoogle,
			ClientID:     cfg.OAuth.Google.ClientID,
			ClientSecret: cfg.OAuth.Google.ClientSecret,
			RedirectURL:  cfg.OAuth.Google.RedirectURL,
			IssuerURL:    cfg.OAuth.Google.IssuerURL,
			Scopes:       cfg.OAuth.Google.Scopes,
		})
		if err != nil {
			return fmt.Errorf("initializing google oidc provider: %w", err)
		}
		oauthProviders[services.ProviderGoogle] = googleProvider
	}

	friendService.SetNotificationService(notificationService)
	postService.SetNotificationService(notificationService)
	messageService.SetNotificationService(notificationService)

	sessionTTLSeconds := int(cfg.Session.TTL / time.Second)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(db, redisDB)
	authHandler := handlers.NewAuthHandler(authService, userService, cfg.Server.Secure, sessionTTLSeconds)
	providerAuthHandler := handlers.NewProviderAuthHandler(providerAuthService, authService, oauthProviders, cfg.Server.Secure, sessionTTLSeconds)
	friendHandler := handlers.NewFriendHandler(friendService)
	postHandler := handlers.NewPostHandler(postService, uploads, cfg.Upload.MaxUploadSize)
	messageHandler := handlers.NewMessageHandler(messageService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	profileHandler := handlers.NewProfileHandler(userService, friendService, postService, uploads, cfg.Upload.MaxUploadSize)
	accountHandler := handlers.NewAccountHandler(accountService, authService, cfg.Server.Secure)
	pageHandler, err := handlers.NewPageHandler("web/templates", handlers.PageOAuthConfig{
		GoogleEnabled: cfg.OAuth.Google.Enabled,
	})
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}
	pageHandler.SetServices(postService, userService, friendService)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	go func() {
		interval := resolveNotificationCleanupInterval(logger, os.LookupEnv)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-cleanupCtx.Done():
				return
			case <-ticker.C:
				if _, err := notificationService.CleanupOld(context.Background(), 30*24*time.Hour); err != nil {
					logger.Warn("Notification cleanup failed", map[string]interface{}{"error": err.Error()})
				}
			}
		}
	}()

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(authService, userService)
	csrfMiddleware := middleware.NewCSRFMiddleware(cfg.Server.Secure)
	securityHeaders := middleware.NewSecurityHeaders(cfg.Server.Secure)
	cacheControl := middleware.NewCacheControl()
	compress := middleware.NewCompress()
	requestLogger := middleware.NewRequestLogger(logger)

	// Credential endpoints get an IP-keyed limiter so password guessing
	// gets throttled before it reaches bcrypt.
	authRateLimit := resolveAuthRateLimit(cfg, logger, os.LookupEnv)
	authRateLimiter := middleware.NewRateLimiter(redisDB.Client, authRateLimit, 15*time.Minute, "ratelimit:auth:", func(r *http.Request) string {
		return middleware.GetClientIP(r)
	}, true)

	// Upload endpoints get a looser per-IP limiter; image processing is
	// the expensive part worth throttling.
	uploadRateLimiter := middleware.NewRateLimiter(redisDB.Client, 5*authRateLimit, 15*time.Minute, "ratelimit:upload:", func(r *http.Request) string {
		return middleware.GetClientIP(r)
	}, true)

	requireSession := authMiddleware.RequireSession
	requirePage := authMiddleware.RequirePage
	limitAuth := authRateLimiter.Middleware
	limitUpload := uploadRateLimiter.Middleware

	// Set up router
	mux := http.NewServeMux()

	// Health endpoints (no auth, no rate limit)
	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.HandleFunc("GET /ready", healthHandler.Ready)
	mux.HandleFunc("GET /live", healthHandler.Live)

	// CSRF token endpoint
	mux.Handle("GET /api/csrf", http.HandlerFunc(csrfMiddleware.GetToken))

	// Auth endpoints
	mux.Handle("POST /api/auth/register", limitAuth(http.HandlerFunc(authHandler.Register)))
	mux.Handle("POST /api/auth/login", limitAuth(http.HandlerFunc(authHandler.Login)))
	mux.Handle("POST /api/auth/logout", requireSession(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("GET /api/auth/me", requireSession(http.HandlerFunc(authHandler.Me)))
	mux.Handle("GET /api/auth/{provider}/start", http.HandlerFunc(providerAuthHandler.ProviderStart))
	mux.Handle("GET /api/auth/{provider}/callback", limitAuth(http.HandlerFunc(providerAuthHandler.ProviderCallback)))

	// Account endpoints
	mux.Handle("GET /api/account/export", requireSession(http.HandlerFunc(accountHandler.Export)))
	mux.Handle("DELETE /api/account", requireSession(http.HandlerFunc(accountHandler.Delete)))

	// User and profile endpoints
	mux.Handle("GET /api/users/search", requireSession(http.HandlerFunc(friendHandler.Search)))
	mux.Handle("GET /api/users/{username}", requireSession(http.HandlerFunc(profileHandler.Get)))
	mux.Handle("PUT /api/profile", requireSession(limitUpload(http.HandlerFunc(profileHandler.Update))))

	// Friend endpoints
	mux.Handle("GET /api/friends", requireSession(http.HandlerFunc(friendHandler.Friends)))
	mux.Handle("GET /api/friends/requests", requireSession(http.HandlerFunc(friendHandler.Requests)))
	mux.Handle("POST /api/friends/requests", requireSession(http.HandlerFunc(friendHandler.SendRequest)))
	mux.Handle("PUT /api/friends/requests/{id}/accept", requireSession(http.HandlerFunc(friendHandler.AcceptRequest)))
	mux.Handle("PUT /api/friends/requests/{id}/reject", requireSession(http.HandlerFunc(friendHandler.RejectRequest)))
	mux.Handle("DELETE /api/friends/{id}", requireSession(http.HandlerFunc(friendHandler.Unfriend)))

	// Post endpoints
	mux.Handle("GET /api/posts", requireSession(http.HandlerFunc(postHandler.Feed)))
	mux.Handle("POST /api/posts", requireSession(limitUpload(http.HandlerFunc(postHandler.Create))))
	mux.Handle("DELETE /api/posts/{id}", requireSession(http.HandlerFunc(postHandler.Delete)))
	mux.Handle("POST /api/posts/{id}/like", requireSession(http.HandlerFunc(postHandler.Like)))
	mux.Handle("GET /api/posts/{id}/comments", requireSession(http.HandlerFunc(postHandler.Comments)))
	mux.Handle("POST /api/posts/{id}/comments", requireSession(http.HandlerFunc(postHandler.AddComment)))
	mux.Handle("POST /api/posts/{id}/share", requireSession(http.HandlerFunc(postHandler.Share)))
	mux.Handle("DELETE /api/comments/{id}", requireSession(http.HandlerFunc(postHandler.DeleteComment)))

	// Message endpoints
	mux.Handle("POST /api/messages", requireSession(http.HandlerFunc(messageHandler.Send)))
	mux.Handle("GET /api/messages", requireSession(http.HandlerFunc(messageHandler.Conversation)))
	mux.Handle("GET /api/messages/unread-count", requireSession(http.HandlerFunc(messageHandler.UnreadCount)))
	mux.Handle("DELETE /api/messages/{id}", requireSession(http.HandlerFunc(messageHandler.DeleteMessage)))
	mux.Handle("DELETE /api/messages/conversations/{id}", requireSession(http.HandlerFunc(messageHandler.DeleteConversation)))
	mux.Handle("GET /api/messages/theme", requireSession(http.HandlerFunc(messageHandler.GetTheme)))
	mux.Handle("PUT /api/messages/theme", requireSession(http.HandlerFunc(messageHandler.SetTheme)))

	// Notification endpoints
	mux.Handle("GET /api/notifications", requireSession(http.HandlerFunc(notificationHandler.List)))
	mux.Handle("GET /api/notifications/unread-count", requireSession(http.HandlerFunc(notificationHandler.UnreadCount)))
	mux.Handle("POST /api/notifications/{id}/read", requireSession(http.HandlerFunc(notificationHandler.MarkRead)))
	mux.Handle("POST /api/notifications/read-all", requireSession(http.HandlerFunc(notificationHandler.MarkAllRead)))
	mux.Handle("DELETE /api/notifications/{id}", requireSession(http.HandlerFunc(notificationHandler.Delete)))

	// Static files and uploaded images
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir("web/static"))))
	mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.Upload.Dir))))

	// Pages
	mux.Handle("GET /{$}", http.HandlerFunc(pageHandler.Index))
	mux.Handle("GET /dashboard", requirePage(http.HandlerFunc(pageHandler.Dashboard)))
	mux.Handle("GET /profile/{username}", requirePage(http.HandlerFunc(pageHandler.Profile)))
	mux.Handle("GET /messages", requirePage(http.HandlerFunc(pageHandler.Messages)))

	// Build middleware chain (order matters: outermost first)
	var handler http.Handler = mux
	handler = authMiddleware.Authenticate(handler)
	handler = csrfMiddleware.Protect(handler)
	handler = cacheControl.Apply(handler)
	handler = compress.Apply(handler)
	handler = securityHeaders.Apply(handler)
	handler = requestLogger.Apply(handler)

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("Server is shutting down...")
		cleanupCancel()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		server.SetKeepAlivesEnabled(false)
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Could not gracefully shutdown the server", map[string]interface{}{
				"error": err.Error(),
			})
		}
		close(done)
	}()

	logger.Info("Server listening", map[string]interface{}{
		"addr": addr,
	})
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	logger.Info("Server stopped")
	return nil
}

func resolveAuthRateLimit(cfg *config.Config, logger *logging.Logger, lookupEnv func(string) (string, bool)) int64 {
	authRateLimit := int64(20)
	if cfg.Server.Environment == "development" {
		authRateLimit = 200
		logger.Info("Using development auth rate limit", map[string]interface{}{"limit": authRateLimit})
	}
	if v, ok := lookupEnv("AUTH_RATE_LIMIT"); ok && v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed > 0 {
			authRateLimit = parsed
			logger.Info("Using auth rate limit from env", map[string]interface{}{"limit": authRateLimit})
		} else {
			logger.Warn("Invalid AUTH_RATE_LIMIT; using default", map[string]interface{}{
				"value": v,
				"limit": authRateLimit,
			})
		}
	}
	return authRateLimit
}

func resolveNotificationCleanupInterval(logger *logging.Logger, lookupEnv func(string) (string, bool)) time.Duration {
	interval := 24 * time.Hour
	if value, ok := lookupEnv("NOTIFICATION_CLEANUP_INTERVAL"); ok && value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil || parsed <= 0 {
			logger.Warn("Invalid NOTIFICATION_CLEANUP_INTERVAL; using default", map[string]interface{}{
				"value":   value,
				"default": interval.String(),
			})
		} else {
			interval = parsed
			logger.Info("Using notification cleanup interval from env", map[string]interface{}{"interval": interval.String()})
		}
	}
	return interval
}

// Package http is the JSON API surface. Handlers stay thin: parsing,
// auth, caching, and status mapping live here, everything else is
// delegated to the ledger, report, and rates packages.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"sumal/internal/accounts"
	"sumal/internal/cache"
	"sumal/internal/ledger"
	"sumal/internal/rates"
	"sumal/internal/session"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	usernameKey  contextKey = "username"
)

// localUser is the identity used when authentication is disabled.
const localUser = "local"

// Deps carries everything the server needs. Provider may be nil when
// no rate provider is configured.
type Deps struct {
	Ledger      *ledger.Service
	Accounts    accounts.Store
	Sessions    *session.Manager
	Table       *rates.Table
	Provider    *rates.Provider
	AuthEnabled bool
}

type Server struct {
	http.Server
	ledger      *ledger.Service
	accounts    accounts.Store
	sessions    *session.Manager
	table       *rates.Table
	provider    *rates.Provider
	authEnabled bool

	rateLimiter *rateLimiter

	// Read-side caches, invalidated per user on append.
	summaryCache *cache.LRUCache[summaryPayload]
	monthlyCache *cache.LRUCache[monthlyPayload]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, deps Deps) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		ledger:      deps.Ledger,
		accounts:    deps.Accounts,
		sessions:    deps.Sessions,
		table:       deps.Table,
		provider:    deps.Provider,
		authEnabled: deps.AuthEnabled,

		rateLimiter:  newRateLimiter(60),
		summaryCache: cache.NewLRUCache[summaryPayload](100, 5*time.Minute),
		monthlyCache: cache.NewLRUCache[monthlyPayload](100, 5*time.Minute),
		cacheManager: cache.NewManager(),
	}

	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.Register(s.monthlyCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("/signup", s.withMiddleware(s.handleSignup))
	mux.HandleFunc("/login", s.withMiddleware(s.handleLogin))
	mux.HandleFunc("/logout", s.withMiddleware(s.handleLogout))

	mux.HandleFunc("/categories", s.withMiddleware(s.handleCategories))
	mux.HandleFunc("/currencies", s.withMiddleware(s.handleCurrencies))
	mux.HandleFunc("/rates/refresh", s.withMiddleware(s.requireUser(s.handleRatesRefresh)))

	mux.HandleFunc("/transactions", s.withMiddleware(s.requireUser(s.handleTransactions)))
	mux.HandleFunc("/transactions/recent", s.withMiddleware(s.requireUser(s.handleRecent)))
	mux.HandleFunc("/summary", s.withMiddleware(s.requireUser(s.handleSummary)))
	mux.HandleFunc("/summary/monthly", s.withMiddleware(s.requireUser(s.handleMonthlySummary)))

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withMiddleware adds security headers, rate limiting, and request
// logging.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		// Rate limit mutations only; reads are cached anyway.
		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		setSecurityHeaders(w)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"client_ip", clientIP)
	}
}

// requireUser resolves the acting user. With auth disabled every
// request acts as the local user; otherwise a valid session cookie is
// required.
func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authEnabled {
			ctx := context.WithValue(r.Context(), usernameKey, localUser)
			next(w, r.WithContext(ctx))
			return
		}

		cookie, err := r.Cookie(session.CookieName)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		username, err := s.sessions.Verify(cookie.Value)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid session")
			return
		}

		ctx := context.WithValue(r.Context(), usernameKey, username)
		next(w, r.WithContext(ctx))
	}
}

// currentUser returns the username set by requireUser.
func currentUser(r *http.Request) string {
	if u, ok := r.Context().Value(usernameKey).(string); ok {
		return u
	}
	return ""
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

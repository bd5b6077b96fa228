package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"khata/internal/auth"
	"khata/internal/cache"
	applog "khata/internal/log"
	"khata/internal/middleware/ratelimit"
	"khata/internal/middleware/security"
	"khata/internal/middleware/trace"
	"khata/internal/services"
)

// Options tune the server beyond its required dependencies.
type Options struct {
	// UploadsDir enables static serving of /uploads/ from this directory.
	// Set only with the local blob backend; empty for Drive.
	UploadsDir string

	// Per-IP request budgets, per minute. Zero means the default.
	LoginRequestsPerMinute int
	APIRequestsPerMinute   int
}

type Server struct {
	http.Server
	gate    *auth.Gate
	records *services.RecordService

	// Ledger responses cached per filter text, purged on every mutation
	// so a read after a write always sees fresh aggregates.
	ledgerCache  *cache.LRUCache[ledgerPayload]
	cacheManager *cache.Manager

	loginLimiter *ratelimit.Limiter
	apiLimiter   *ratelimit.Limiter
	ipExtractor  *security.IPExtractor

	logger       *slog.Logger
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, gate *auth.Gate, records *services.RecordService, opts Options) *Server {
	if opts.LoginRequestsPerMinute <= 0 {
		opts.LoginRequestsPerMinute = 10
	}
	if opts.APIRequestsPerMinute <= 0 {
		opts.APIRequestsPerMinute = 120
	}

	mux := http.NewServeMux()

	s := &Server{
		gate:        gate,
		records:     records,
		ledgerCache: cache.NewLRUCache[ledgerPayload](100, 5*time.Minute),
		loginLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.LoginRequestsPerMinute,
		}),
		apiLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.APIRequestsPerMinute,
		}),
		ipExtractor:  security.NewIPExtractor(),
		cacheManager: cache.NewManager(),
		logger:       applog.For(applog.ComponentHTTP),
	}
	s.cacheManager.Register(s.ledgerCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("POST /api/auth/login", s.withLoginLimit(s.handleLogin))
	mux.HandleFunc("GET /api/auth/verify", s.requireAuth(s.handleVerify))

	mux.HandleFunc("GET /api/finance", s.requireAuth(s.handleListRecords))
	mux.HandleFunc("POST /api/finance", s.requireAuth(s.handleCreateRecord))
	mux.HandleFunc("DELETE /api/finance", s.requireAuth(s.handleBulkDelete))
	mux.HandleFunc("GET /api/finance/{id}", s.requireAuth(s.handleGetRecord))
	mux.HandleFunc("PUT /api/finance/{id}", s.requireAuth(s.handleUpdateRecord))
	mux.HandleFunc("DELETE /api/finance/{id}", s.requireAuth(s.handleDeleteRecord))

	mux.HandleFunc("GET /api/ledger", s.requireAuth(s.handleLedger))

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	if opts.UploadsDir != "" {
		files := http.StripPrefix("/uploads/", http.FileServer(http.Dir(opts.UploadsDir)))
		mux.Handle("GET /uploads/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			files.ServeHTTP(w, r)
		}))
	}

	apiLimit := s.apiLimiter.Middleware(s.ipExtractor.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "60")
		respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
	})
	traced := trace.NewMiddleware(s.ipExtractor.ExtractClientIP)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           traced.Middleware(security.Headers(security.DefaultHeadersConfig())(apiLimit(mux))),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// withLoginLimit applies the tight per-IP budget of the login endpoint.
func (s *Server) withLoginLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientIP := s.ipExtractor.ExtractClientIP(r)
		if !s.loginLimiter.Allow(clientIP) {
			s.logger.WarnContext(r.Context(), "Login rate limit exceeded",
				applog.FieldClientIP, clientIP)
			w.Header().Set("Retry-After", "60")
			respondError(w, http.StatusTooManyRequests, "too many login attempts")
			return
		}
		next(w, r)
	}
}

// purgeLedgerCache drops every cached ledger view. Called on every record
// mutation.
func (s *Server) purgeLedgerCache() {
	s.ledgerCache.Purge()
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.loginLimiter.Stop()
		s.apiLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

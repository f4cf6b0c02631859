// Package http exposes the REST API: file uploads, transactions, rules,
// budgets and the dashboard rollups.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"lucid/internal/amqp"
	"lucid/internal/budget"
	"lucid/internal/cache"
	"lucid/internal/core"
	"lucid/internal/ingest"
	applog "lucid/internal/log"
	"lucid/internal/storage"
)

// Store is everything the handlers need from the record store beyond what
// the ingestion service and reconciler already cover.
type Store interface {
	ListTransactions(ctx context.Context, ownerID int64, f storage.TransactionFilter) ([]core.Transaction, error)
	GetTransaction(ctx context.Context, ownerID, txID int64) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, ownerID, txID int64) error
	Recategorize(ctx context.Context, ownerID, txID int64, typ core.TransactionType, category string, subType core.SubType) error

	ListRules(ctx context.Context, ownerID int64) ([]core.Rule, error)
	GetRule(ctx context.Context, ownerID, ruleID int64) (core.Rule, error)
	CreateRule(ctx context.Context, rule core.Rule) (core.Rule, error)
	UpdateRule(ctx context.Context, ownerID int64, rule core.Rule) error
	DeleteRule(ctx context.Context, ownerID, ruleID int64) error

	DeleteBudgetEntry(ctx context.Context, ownerID, entryID int64) error

	MonthlyTrend(ctx context.Context, ownerID int64, year int) ([]storage.TrendPoint, error)
	Years(ctx context.Context, ownerID int64) ([]int, error)
}

// JobPublisher enqueues rule re-application jobs. Nil on the server means
// no queue is configured and the work runs synchronously.
type JobPublisher interface {
	PublishReapplyRules(ctx context.Context, ownerID int64) (*amqp.ReapplyRulesMessage, error)
}

type Server struct {
	http.Server
	store      Store
	ingester   *ingest.Service
	reconciler *budget.Reconciler
	publisher  JobPublisher

	uploadMaxBytes int64

	rateLimiter  *rateLimiter
	summaryCache *cache.LRUCache[budget.Summary]
	trendCache   *cache.LRUCache[[]storage.TrendPoint]

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

type Options struct {
	Addr           string
	Store          Store
	Ingester       *ingest.Service
	Reconciler     *budget.Reconciler
	Publisher      JobPublisher // optional
	Logger         *applog.Logger
	UploadMaxBytes int64
	CacheSize      int
	CacheTTL       time.Duration
}

// NewServer configures routes and caches, returning a ready-to-run
// http.Server.
func NewServer(opts Options) *Server {
	if opts.UploadMaxBytes <= 0 {
		opts.UploadMaxBytes = 10 << 20
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 128
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.Config{Component: applog.ComponentHTTP})
	}

	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    opts.Addr,
			Handler: applog.Middleware(opts.Logger)(mux),
		},
		store:            opts.Store,
		ingester:         opts.Ingester,
		reconciler:       opts.Reconciler,
		publisher:        opts.Publisher,
		uploadMaxBytes:   opts.UploadMaxBytes,
		rateLimiter:      newRateLimiter(),
		summaryCache:     cache.NewLRUCache[budget.Summary](opts.CacheSize, opts.CacheTTL),
		trendCache:       cache.NewLRUCache[[]storage.TrendPoint](opts.CacheSize, opts.CacheTTL),
		stopCacheCleanup: make(chan struct{}),
	}

	go s.startCacheCleanup()

	mux.HandleFunc("GET /healthz", handleHealth)

	mux.HandleFunc("POST /api/v1/uploads", s.wrap(s.handleUpload))

	mux.HandleFunc("GET /api/v1/transactions", s.wrap(s.handleListTransactions))
	mux.HandleFunc("PATCH /api/v1/transactions/{id}", s.wrap(s.handlePatchTransaction))
	mux.HandleFunc("DELETE /api/v1/transactions/{id}", s.wrap(s.handleDeleteTransaction))

	mux.HandleFunc("GET /api/v1/rules", s.wrap(s.handleListRules))
	mux.HandleFunc("POST /api/v1/rules", s.wrap(s.handleCreateRule))
	mux.HandleFunc("PUT /api/v1/rules/{id}", s.wrap(s.handleUpdateRule))
	mux.HandleFunc("DELETE /api/v1/rules/{id}", s.wrap(s.handleDeleteRule))
	mux.HandleFunc("POST /api/v1/rules/apply", s.wrap(s.handleApplyRules))

	mux.HandleFunc("GET /api/v1/budgets", s.wrap(s.handleListBudgets))
	mux.HandleFunc("PUT /api/v1/budgets", s.wrap(s.handleUpsertBudget))
	mux.HandleFunc("DELETE /api/v1/budgets/{id}", s.wrap(s.handleDeleteBudgetEntry))
	mux.HandleFunc("DELETE /api/v1/budgets", s.wrap(s.handleDeleteBudgetCategory))

	mux.HandleFunc("GET /api/v1/dashboard/summary", s.wrap(s.handleSummary))
	mux.HandleFunc("GET /api/v1/dashboard/trend", s.wrap(s.handleTrend))
	mux.HandleFunc("GET /api/v1/dashboard/years", s.wrap(s.handleYears))

	return s
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// wrap adds security headers, rate limiting and request logging.
func (s *Server) wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)
		logger := applog.FromContext(ctx)

		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			logger.WarnContext(ctx, "Rate limit exceeded",
				applog.FieldClientIP, clientIP,
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			httpError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		logger.InfoContext(ctx, "Request completed",
			applog.FieldRequestID, requestID,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldStatusCode, rw.statusCode,
			applog.FieldDuration, time.Since(start).Milliseconds(),
			applog.FieldClientIP, clientIP)
	}
}

type contextKey string

const requestIDKey contextKey = "request_id"

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// invalidateViews drops an owner's cached dashboard views after any write
// that changes transactions or budgets.
func (s *Server) invalidateViews(owner int64) {
	prefix := fmt.Sprintf("owner:%d:", owner)
	s.summaryCache.DeletePrefix(prefix)
	s.trendCache.DeletePrefix(prefix)
}

func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cleaned := s.summaryCache.CleanExpired() + s.trendCache.CleanExpired()
			if cleaned > 0 {
				slog.Debug("Cache cleanup completed", "entries_removed", cleaned)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.stopCacheCleanup != nil {
			close(s.stopCacheCleanup)
		}
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func decodeBody(r *http.Request, into any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(into)
}

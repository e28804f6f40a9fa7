package http

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"txagg/internal/log"
	"txagg/internal/middleware/ratelimit"
	"txagg/internal/middleware/security"
	"txagg/internal/middleware/trace"
)

const readinessTimeout = 2 * time.Second

// ReadinessCheck is one dependency checked by /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Options configures NewServer.
type Options struct {
	Addr    string
	Queries QueryService
	Checks  []ReadinessCheck
	// RateLimitPerMinute bounds /api requests per client; 0 disables it.
	RateLimitPerMinute int
	Logger             *log.Logger
}

// Server wraps http.Server with the API routes and middleware.
type Server struct {
	http.Server
	queries  QueryService
	checks   []ReadinessCheck
	tracer   *trace.Middleware
	detector *security.Detector
	limiter  *ratelimit.Limiter
	logger   *log.Logger

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}

	s := &Server{
		queries:  opts.Queries,
		checks:   opts.Checks,
		detector: security.NewDetector(),
		logger:   logger.WithComponent(log.ComponentHTTP),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/transactions", s.handleAll())
	api.HandleFunc("GET /api/transactions/find", s.handleFind())
	api.HandleFunc("GET /api/transactions/customer/{customerId}", s.handleByCustomer())
	api.HandleFunc("GET /api/transactions/customer/{customerId}/summary", s.handleCustomerSummary)
	api.HandleFunc("GET /api/transactions/category/{category}", s.handleByCategory())
	api.HandleFunc("GET /api/transactions/date-range", s.handleByDateRange())
	api.HandleFunc("GET /api/transactions/source/{source}", s.handleBySource())
	api.HandleFunc("GET /api/transactions/summary/categories", s.handleCategorySummary)
	api.HandleFunc("GET /api/transactions/summary/sources", s.handleSourceSummary)
	api.HandleFunc("GET /api/transactions/categories", s.handleCategories)

	var apiHandler http.Handler = api
	if opts.RateLimitPerMinute > 0 {
		s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute})
		apiHandler = s.limiter.Middleware(s.detector.ExtractClientIP, handleRateLimited)(apiHandler)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	// Wrapped inside out. Correlation runs first so the logger can carry
	// the id, and recovery sits inside logging so panics log as 500s.
	var h http.Handler = mux
	h = s.recoverPanics(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(h)
	h = s.tracer.Logging(h)
	h = log.CorrelationMiddleware(trace.GetCorrelationID)(h)
	h = log.Middleware(logger)(h)
	h = s.tracer.Correlation(h)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// Metrics returns the request counters collected by the trace middleware.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.GetMetrics()
}

// recoverPanics turns a handler panic into a 500 envelope.
func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			log.FromContext(r.Context()).WithComponent(log.ComponentHTTP).ErrorContext(r.Context(), "Panic in handler",
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldError, fmt.Sprint(rec),
				"stack", string(debug.Stack()))
			NewResponse().
				Status(http.StatusInternalServerError).
				Message("An unexpected error occurred").
				Errors(fmt.Sprintf("internal error: %v", rec)).
				Write(w, r)
		}()
		next.ServeHTTP(w, r)
	})
}

func handleRateLimited(w http.ResponseWriter, r *http.Request) {
	NewResponse().
		Status(http.StatusTooManyRequests).
		Message("Rate limit exceeded. Please try again later.").
		Errors("too many requests").
		Write(w, r)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeOK(w, r, "ok", nil)
}

// handleReady runs every readiness check and reports each result. Any
// failure turns the response into a 503.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	results := make(map[string]string, len(s.checks))
	var failures []string
	for _, c := range s.checks {
		if err := c.Check(ctx); err != nil {
			results[c.Name] = err.Error()
			failures = append(failures, c.Name+": "+err.Error())
			continue
		}
		results[c.Name] = "ok"
	}

	if len(failures) > 0 {
		s.logger.WarnContext(r.Context(), "Readiness check failed",
			log.FieldError, strings.Join(failures, "; "))
		NewResponse().
			Status(http.StatusServiceUnavailable).
			Message("not ready").
			Data(results).
			Errors(failures...).
			Write(w, r)
		return
	}
	writeOK(w, r, "ready", results)
}

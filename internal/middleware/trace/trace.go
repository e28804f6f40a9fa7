// Package trace propagates a correlation id through each request and
// logs request completion with the captured status code.
package trace

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"txagg/internal/log"
)

// ContextKey type for context keys
type ContextKey string

const (
	// CorrelationIDKey is the context key for the correlation id
	CorrelationIDKey ContextKey = "correlation_id"

	// HeaderCorrelationID is read from requests and echoed on responses
	HeaderCorrelationID = "X-Correlation-ID"

	maxCorrelationIDLen = 128
)

// Middleware handles request tracing and logging
type Middleware struct {
	extractIP func(*http.Request) string
	metrics   *Metrics
}

// Metrics tracks request metrics
type Metrics struct {
	TotalRequests       int64
	ServerErrors        int64
	AverageResponseTime int64 // in microseconds
}

// NewMiddleware creates a new trace middleware. extractIP may be nil.
func NewMiddleware(extractIP func(*http.Request) string) *Middleware {
	return &Middleware{
		extractIP: extractIP,
		metrics:   &Metrics{},
	}
}

// Correlation reuses the caller's X-Correlation-ID or generates one,
// stores it in the request context and echoes it on the response.
func (m *Middleware) Correlation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := sanitizeID(r.Header.Get(HeaderCorrelationID))
		if id == "" {
			id = GenerateCorrelationID()
		}
		w.Header().Set(HeaderCorrelationID, id)
		ctx := context.WithValue(r.Context(), CorrelationIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logging records one line per request once the handler has returned.
// The logger comes from the request context (see log.Middleware).
func (m *Middleware) Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		duration := time.Since(start)

		total := atomic.AddInt64(&m.metrics.TotalRequests, 1)
		m.observe(total, duration)
		if rw.statusCode >= 500 {
			atomic.AddInt64(&m.metrics.ServerErrors, 1)
		}

		fields := log.NewFields().
			WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery).
			WithHTTPResponse(rw.statusCode, duration.Milliseconds())
		if m.extractIP != nil {
			fields[log.FieldClientIP] = m.extractIP(r)
		}

		logger := log.FromContext(r.Context()).WithComponent(log.ComponentHTTP)
		switch {
		case rw.statusCode >= 500:
			logger.ErrorContext(r.Context(), "HTTP request completed", fields.ToSlice()...)
		case rw.statusCode >= 400:
			logger.WarnContext(r.Context(), "HTTP request completed", fields.ToSlice()...)
		default:
			logger.InfoContext(r.Context(), "HTTP request completed", fields.ToSlice()...)
		}
	})
}

// observe folds one duration into the running average.
func (m *Middleware) observe(n int64, d time.Duration) {
	for {
		old := atomic.LoadInt64(&m.metrics.AverageResponseTime)
		next := old + (d.Microseconds()-old)/n
		if atomic.CompareAndSwapInt64(&m.metrics.AverageResponseTime, old, next) {
			return
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// GenerateCorrelationID creates a new random correlation id
func GenerateCorrelationID() string {
	return uuid.NewString()
}

// GetCorrelationID extracts the correlation id from context
func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return id
	}
	return ""
}

// GetMetrics returns current metrics
func (m *Middleware) GetMetrics() Metrics {
	return Metrics{
		TotalRequests:       atomic.LoadInt64(&m.metrics.TotalRequests),
		ServerErrors:        atomic.LoadInt64(&m.metrics.ServerErrors),
		AverageResponseTime: atomic.LoadInt64(&m.metrics.AverageResponseTime),
	}
}

// sanitizeID drops caller ids that are too long or carry control characters.
func sanitizeID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > maxCorrelationIDLen {
		return ""
	}
	for _, c := range id {
		if c < 0x20 || c == 0x7f {
			return ""
		}
	}
	return id
}

package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"txagg/internal/log"
)

func TestCorrelation(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		wantSame bool
	}{
		{"reuses caller id", "abc-123", true},
		{"generates when missing", "", false},
		{"rejects oversized id", strings.Repeat("x", 200), false},
		{"rejects control characters", "bad\x01id", false},
	}

	m := NewMiddleware(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			h := m.Correlation(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetCorrelationID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(HeaderCorrelationID, tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if seen == "" {
				t.Fatal("no correlation id in context")
			}
			if got := rr.Header().Get(HeaderCorrelationID); got != seen {
				t.Errorf("echoed header = %q, context = %q", got, seen)
			}
			if (seen == tt.header) != tt.wantSame {
				t.Errorf("id = %q, caller sent %q", seen, tt.header)
			}
		})
	}
}

func TestLoggingCapturesStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Format: "json", Output: &buf})

	m := NewMiddleware(func(*http.Request) string { return "10.0.0.9" })
	h := log.Middleware(logger)(m.Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
	})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/transactions?pageNo=2", nil))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid log line %q: %v", buf.String(), err)
	}
	if rec[log.FieldStatusCode] != float64(http.StatusTeapot) {
		t.Errorf("status = %v, want 418", rec[log.FieldStatusCode])
	}
	if rec[log.FieldPath] != "/api/transactions" || rec[log.FieldQuery] != "pageNo=2" {
		t.Errorf("request fields = %v", rec)
	}
	if rec[log.FieldClientIP] != "10.0.0.9" {
		t.Errorf("client ip = %v", rec[log.FieldClientIP])
	}
	if rec["level"] != "WARN" {
		t.Errorf("level = %v, want WARN for 4xx", rec["level"])
	}
}

func TestMetrics(t *testing.T) {
	m := NewMiddleware(nil)
	ok := m.Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	fail := m.Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(log.NewContext(context.Background(), log.Discard()))
	ok.ServeHTTP(httptest.NewRecorder(), req)
	fail.ServeHTTP(httptest.NewRecorder(), req)

	got := m.GetMetrics()
	if got.TotalRequests != 2 || got.ServerErrors != 1 {
		t.Errorf("metrics = %+v", got)
	}
}

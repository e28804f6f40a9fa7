// Package http serves the read-only transaction API.
//
// This file implements the response envelope shared by every endpoint and
// the mapping from error kinds to status codes.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"txagg/internal/core"
	"txagg/internal/log"
	"txagg/internal/middleware/trace"
)

// Envelope is the body of every API response.
type Envelope struct {
	Successful    bool      `json:"successful"`
	Message       string    `json:"message"`
	Data          any       `json:"data"`
	StatusCode    int       `json:"statusCode"`
	Errors        []string  `json:"errors"`
	CorrelationID string    `json:"correlationId"`
	Timestamp     time.Time `json:"timestamp"`
}

// ResponseBuilder provides a fluent API for writing envelopes.
type ResponseBuilder struct {
	env Envelope
}

// NewResponse creates a successful 200 response.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{env: Envelope{
		Successful: true,
		StatusCode: http.StatusOK,
		Errors:     []string{},
	}}
}

// Status sets the status code. Codes of 400 and above mark the response
// unsuccessful.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.env.StatusCode = code
	b.env.Successful = code < http.StatusBadRequest
	return b
}

func (b *ResponseBuilder) Message(msg string) *ResponseBuilder {
	b.env.Message = msg
	return b
}

func (b *ResponseBuilder) Data(v any) *ResponseBuilder {
	b.env.Data = v
	return b
}

func (b *ResponseBuilder) Errors(errs ...string) *ResponseBuilder {
	b.env.Errors = append(b.env.Errors, errs...)
	return b
}

// Write stamps the correlation id and time and encodes the envelope.
func (b *ResponseBuilder) Write(w http.ResponseWriter, r *http.Request) {
	b.env.CorrelationID = trace.GetCorrelationID(r.Context())
	b.env.Timestamp = time.Now().UTC()

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.env.StatusCode)
	if err := json.NewEncoder(w).Encode(b.env); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Failed to encode response",
			log.FieldError, err)
	}
}

// Build returns the envelope without writing it.
func (b *ResponseBuilder) Build() Envelope {
	return b.env
}

// statusForError maps error kinds onto HTTP status codes.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest, "Invalid request"
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "The requested resource was not found"
	default:
		return http.StatusInternalServerError, "An error occurred while processing the request"
	}
}

// writeError writes the envelope for err. Server errors are logged.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := statusForError(err)
	if code >= http.StatusInternalServerError {
		log.FromContext(r.Context()).WithComponent(log.ComponentHTTP).ErrorContext(r.Context(), "Request failed",
			log.FieldPath, r.URL.Path,
			log.FieldError, err)
	}
	NewResponse().Status(code).Message(msg).Errors(err.Error()).Write(w, r)
}

func writeOK(w http.ResponseWriter, r *http.Request, msg string, data any) {
	NewResponse().Message(msg).Data(data).Write(w, r)
}

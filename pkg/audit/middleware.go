package audit

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/consolehq/actionlog/pkg/auth"
)

// maxCapturedBody bounds how much of a request body the middleware
// reads for the changes summary. Larger bodies are logged without one.
const maxCapturedBody = 64 * 1024

// Middleware adapts the two-phase interceptor contract to net/http for
// services that front the logger with their own router.
type Middleware struct {
	interceptor *Interceptor
}

// NewMiddleware creates HTTP middleware around the interceptor.
func NewMiddleware(interceptor *Interceptor) *Middleware {
	return &Middleware{interceptor: interceptor}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Handler wraps next with start/complete interception. The wrapped
// handler always runs; logging failures never affect the request.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exec := ExecutionContext{
			ExecutionID: uuid.NewString(),
			Auth:        auth.FromContext(r.Context()),
			Method:      r.Method,
			Path:        r.URL.Path,
			Payload:     capturePayload(r),
			RequestSize: r.ContentLength,
			IPAddress:   clientIP(r),
			UserAgent:   r.UserAgent(),
		}

		m.interceptor.Start(exec)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		m.interceptor.Complete(exec, Outcome{
			StatusCode: wrapped.statusCode,
			Success:    wrapped.statusCode < 400,
		})
	})
}

// capturePayload reads a bounded copy of a JSON request body and
// restores r.Body for the downstream handler.
func capturePayload(r *http.Request) map[string]interface{} {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	if ct := r.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		return nil
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxCapturedBody))
	if err != nil {
		return nil
	}
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(raw), r.Body))

	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}
	return payload
}

// clientIP extracts the client IP, preferring proxy headers.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

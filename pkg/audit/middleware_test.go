package audit

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consolehq/actionlog/pkg/auth"
)

func newTestMiddleware(t *testing.T) (*Middleware, *MemoryStore, *Pipeline) {
	t.Helper()
	store := NewMemoryStore()
	pipeline := NewPipeline(store, PipelineOptions{})
	interceptor := NewInterceptor(NewBuilder(), pipeline, InterceptorOptions{})
	return NewMiddleware(interceptor), store, pipeline
}

func TestMiddleware_LogsMutatingRequest(t *testing.T) {
	mw, store, pipeline := newTestMiddleware(t)

	var bodySeen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The middleware must restore the body for the handler.
		raw, _ := io.ReadAll(r.Body)
		bodySeen = string(raw)
		w.WriteHeader(http.StatusCreated)
	})

	body := `{"email":"new@example.com","name":"New User"}`
	req := httptest.NewRequest("POST", "/api/users", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	req.Header.Set("User-Agent", "console/1.0")
	req = req.WithContext(auth.WithResult(req.Context(), adminAuth()))

	rec := httptest.NewRecorder()
	mw.Handler(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, body, bodySeen)

	drain(t, pipeline)
	entries, _, err := store.Query(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, ActionCreate, entry.ActionType)
	assert.Equal(t, ResourceUser, entry.ResourceType)
	assert.Equal(t, "New User", entry.ResourceName)
	assert.Equal(t, 201, entry.StatusCode)
	assert.True(t, entry.Success)
	assert.Equal(t, "203.0.113.9", entry.IPAddress)
	assert.Equal(t, "console/1.0", entry.UserAgent)
	assert.Equal(t, "u-1", entry.UserID)
	require.NotNil(t, entry.ChangesSummary)
	assert.Equal(t, "new@example.com", entry.ChangesSummary["email"].To)
}

func TestMiddleware_SkipsReads(t *testing.T) {
	mw, store, pipeline := newTestMiddleware(t)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest("GET", "/api/users", nil)
	mw.Handler(next).ServeHTTP(httptest.NewRecorder(), req)

	drain(t, pipeline)
	_, total, err := store.Query(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestMiddleware_RecordsFailureStatus(t *testing.T) {
	mw, store, pipeline := newTestMiddleware(t)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusForbidden)
	})

	req := httptest.NewRequest("DELETE", "/api/users/42", nil)
	mw.Handler(next).ServeHTTP(httptest.NewRecorder(), req)

	drain(t, pipeline)
	entries, _, err := store.Query(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 403, entries[0].StatusCode)
	assert.False(t, entries[0].Success)
	assert.Equal(t, "system", entries[0].UserID)
}

func TestMiddleware_ImplicitOKStatus(t *testing.T) {
	mw, store, pipeline := newTestMiddleware(t)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok")) // no explicit WriteHeader
	})

	req := httptest.NewRequest("POST", "/api/users", nil)
	mw.Handler(next).ServeHTTP(httptest.NewRecorder(), req)

	drain(t, pipeline)
	entries, _, err := store.Query(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 200, entries[0].StatusCode)
	assert.True(t, entries[0].Success)
}

func TestMiddleware_IgnoresNonJSONBody(t *testing.T) {
	mw, store, pipeline := newTestMiddleware(t)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest("POST", "/api/users", strings.NewReader("name=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	mw.Handler(next).ServeHTTP(httptest.NewRecorder(), req)

	drain(t, pipeline)
	entries, _, err := store.Query(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].ChangesSummary)
}

func TestClientIP(t *testing.T) {
	t.Run("x-forwarded-for first hop", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.1")
		assert.Equal(t, "198.51.100.1", clientIP(req))
	})

	t.Run("x-real-ip fallback", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("X-Real-IP", "198.51.100.2")
		assert.Equal(t, "198.51.100.2", clientIP(req))
	})

	t.Run("remote addr last", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		assert.Equal(t, req.RemoteAddr, clientIP(req))
	})
}

func TestCapturePayload_BoundedRead(t *testing.T) {
	// An oversized JSON body truncates mid-document and fails to parse;
	// the request still proceeds with no summary.
	big := `{"name":"` + strings.Repeat("x", maxCapturedBody) + `"}`
	req := httptest.NewRequest("POST", "/api/users", strings.NewReader(big))
	req.Header.Set("Content-Type", "application/json")

	assert.Nil(t, capturePayload(req))

	// The full body is still readable downstream.
	raw, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Len(t, raw, len(big))
}

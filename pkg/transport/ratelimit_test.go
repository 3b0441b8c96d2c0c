package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter(t *testing.T) {
	t.Run("desligado quando rps é zero", func(t *testing.T) {
		assert.Nil(t, NewRateLimiter(0, 10))
		var l *RateLimiter
		h := l.Middleware(http.NotFoundHandler())
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("excedeu o burst devolve 429", func(t *testing.T) {
		l := NewRateLimiter(1, 2)
		h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

		codes := make([]int, 0, 3)
		var last *httptest.ResponseRecorder
		for i := 0; i < 3; i++ {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(HeaderAPIKey, "cliente-a")
			last = httptest.NewRecorder()
			h.ServeHTTP(last, req)
			codes = append(codes, last.Code)
		}

		assert.Equal(t, []int{204, 204, 429}, codes)
		assert.Equal(t, "1", last.Header().Get("Retry-After"))
		assert.Contains(t, last.Body.String(), "limite de requisições excedido")

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderAPIKey, "cliente-b")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code, "outro cliente tem seu próprio balde")
	})

	t.Run("Retry-After acompanha a taxa configurada", func(t *testing.T) {
		l := NewRateLimiter(0.2, 1)
		h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

		var last *httptest.ResponseRecorder
		for i := 0; i < 2; i++ {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(HeaderAPIKey, "lento")
			last = httptest.NewRecorder()
			h.ServeHTTP(last, req)
		}

		assert.Equal(t, http.StatusTooManyRequests, last.Code)
		assert.Equal(t, "5", last.Header().Get("Retry-After"))
	})

	t.Run("cleanup remove chaves inativas", func(t *testing.T) {
		l := NewRateLimiter(5, 5)
		now := time.Date(2025, 7, 10, 12, 0, 0, 0, time.UTC)
		l.now = func() time.Time { return now }

		l.get("ip:10.0.0.1")
		now = now.Add(20 * time.Minute)
		l.get("ip:10.0.0.2")
		l.Cleanup()

		l.mu.Lock()
		defer l.mu.Unlock()
		require.Len(t, l.entries, 1)
		assert.Contains(t, l.entries, "ip:10.0.0.2")
	})
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:5555"
	assert.Equal(t, "ip:192.0.2.7", clientKey(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "ip:203.0.113.9", clientKey(req))

	req.Header.Set(HeaderAPIKey, "abc")
	assert.Equal(t, "key:abc", clientKey(req))
}

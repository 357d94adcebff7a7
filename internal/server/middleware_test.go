package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorsMiddleware(t *testing.T) {
	tests := []struct {
		name              string
		allowedOrigins    []string
		requestOrigin     string
		method            string
		expectAllowOrigin string
		expectCredentials bool
		expectStatus      int
	}{
		{
			name:              "allowed origin",
			allowedOrigins:    []string{"https://web.telegram.org", "https://example.com"},
			requestOrigin:     "https://web.telegram.org",
			method:            http.MethodPost,
			expectAllowOrigin: "https://web.telegram.org",
			expectCredentials: true,
			expectStatus:      http.StatusOK,
		},
		{
			name:           "disallowed origin",
			allowedOrigins: []string{"https://web.telegram.org"},
			requestOrigin:  "https://evil.com",
			method:         http.MethodPost,
			expectStatus:   http.StatusOK,
		},
		{
			name:           "no origin header",
			allowedOrigins: []string{"https://web.telegram.org"},
			method:         http.MethodGet,
			expectStatus:   http.StatusOK,
		},
		{
			name:              "empty allowed origins",
			allowedOrigins:    nil,
			requestOrigin:     "https://web.telegram.org",
			method:            http.MethodGet,
			expectAllowOrigin: "*",
			expectStatus:      http.StatusOK,
		},
		{
			name:              "preflight request",
			allowedOrigins:    []string{"https://web.telegram.org"},
			requestOrigin:     "https://web.telegram.org",
			method:            http.MethodOptions,
			expectAllowOrigin: "https://web.telegram.org",
			expectCredentials: true,
			expectStatus:      http.StatusNoContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
			corsHandler := NewCORSMiddleware(tt.allowedOrigins)(handler)

			req := httptest.NewRequest(tt.method, WebAppPath, nil)
			if tt.requestOrigin != "" {
				req.Header.Set("Origin", tt.requestOrigin)
			}
			rr := httptest.NewRecorder()
			corsHandler.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectStatus, rr.Code)
			assert.Equal(t, tt.expectAllowOrigin, rr.Header().Get("Access-Control-Allow-Origin"))
			if tt.expectCredentials {
				assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
			} else {
				assert.Empty(t, rr.Header().Get("Access-Control-Allow-Credentials"))
			}
			assert.Equal(t, "GET, POST, OPTIONS", rr.Header().Get("Access-Control-Allow-Methods"))
			assert.Equal(t, "Content-Type", rr.Header().Get("Access-Control-Allow-Headers"))
		})
	}
}

func TestCorsMiddleware_CaseSensitivity(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	corsHandler := NewCORSMiddleware([]string{"https://Web.Telegram.org"})(handler)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Origin", "https://web.telegram.org")
	rr := httptest.NewRecorder()
	corsHandler.ServeHTTP(rr, req)

	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestLoggerMiddleware_RequestID(t *testing.T) {
	var seen string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})

	rr := httptest.NewRecorder()
	NewLoggerMiddleware("test")(handler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/auth/telegram?id=1&hash=abc", nil))

	assert.Equal(t, http.StatusTeapot, rr.Code)
	header := rr.Header().Get(RequestIDHeader)
	require.NotEmpty(t, header)
	assert.Equal(t, header, seen)
	_, err := uuid.Parse(header)
	assert.NoError(t, err)
}

func TestRecoverMiddleware(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	rr := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		NewRecoverMiddleware("test")(handler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "Server error")
	assert.NotContains(t, rr.Body.String(), "boom")
}

func TestRecoverMiddleware_ResponseAlreadyStarted(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusFound)
		_, _ = w.Write([]byte("partial"))
		panic("boom")
	})

	rr := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		NewRecoverMiddleware("test")(handler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "partial", rr.Body.String())
}

func TestRecoverMiddleware_WrapsInnerMiddleware(t *testing.T) {
	panicking := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("middleware boom")
		})
	}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	chain := ChainMiddleware(handler,
		panicking,
		NewRecoverMiddleware("test"),
		NewLoggerMiddleware("test"),
	)

	rr := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		chain.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotEmpty(t, rr.Header().Get(RequestIDHeader))
	assert.JSONEq(t, `{"error":"internal_error","message":"Server error"}`, rr.Body.String())
}

func TestChainMiddleware_Order(t *testing.T) {
	var order []string
	mw := func(name string) MiddlewareFunc {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := ChainMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}), mw("inner"), mw("outer"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"outer", "inner"}, order)
}

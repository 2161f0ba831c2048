package http

import (
	netHTTP "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func corsRequest(t *testing.T, cfg CORSConfig, method, origin string) *httptest.ResponseRecorder {
	t.Helper()

	handler := CORS(cfg)(netHTTP.HandlerFunc(func(w netHTTP.ResponseWriter, r *netHTTP.Request) {
		w.WriteHeader(netHTTP.StatusOK)
	}))

	req := httptest.NewRequest(method, "/", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCORS(t *testing.T) {
	t.Run("development allows any origin", func(t *testing.T) {
		rec := corsRequest(t, CORSConfig{Environment: "development"}, "GET", "https://anywhere.example")
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("production echoes only listed origins", func(t *testing.T) {
		cfg := CORSConfig{
			Environment:    "production",
			AllowedOrigins: []string{"https://shop.example.com"},
		}

		rec := corsRequest(t, cfg, "GET", "https://shop.example.com")
		assert.Equal(t, "https://shop.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

		rec = corsRequest(t, cfg, "GET", "https://evil.example.com")
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		rec := corsRequest(t, CORSConfig{Environment: "development"}, "OPTIONS", "https://shop.example.com")
		assert.Equal(t, netHTTP.StatusNoContent, rec.Code)
	})
}

func TestContentTypeJSON(t *testing.T) {
	handler := ContentTypeJSON(netHTTP.HandlerFunc(func(w netHTTP.ResponseWriter, r *netHTTP.Request) {
		w.WriteHeader(netHTTP.StatusOK)
	}))

	t.Run("rejects a non-JSON body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader("a=b"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, netHTTP.StatusUnsupportedMediaType, rec.Code)
	})

	t.Run("accepts JSON with a charset suffix", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, netHTTP.StatusOK, rec.Code)
	})

	t.Run("lets body-less requests through", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, netHTTP.StatusOK, rec.Code)
	})
}

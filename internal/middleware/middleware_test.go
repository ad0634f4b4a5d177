package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/keypass/internal/auth"
	"github.com/BradenHooton/keypass/internal/models"
	pkghttp "github.com/BradenHooton/keypass/pkg/http"
	pkglogger "github.com/BradenHooton/keypass/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientIP_StoresResolvedAddress(t *testing.T) {
	cfg, err := pkghttp.NewIPConfig([]string{"10.0.0.0/8"})
	require.NoError(t, err)

	var got string
	handler := ClientIP(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = pkglogger.ClientIPFromContext(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.1.2.3:4000"
	req.Header.Set("X-Forwarded-For", "198.51.100.7")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "198.51.100.7", got)
}

func TestRateLimitByIP(t *testing.T) {
	handler := ClientIP(nil)(RateLimitByIP(RateLimitConfig{RequestsPerMinute: 2})(okHandler()))

	send := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/login", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, send("203.0.113.1:1").Code)
	assert.Equal(t, http.StatusOK, send("203.0.113.1:2").Code)

	limited := send("203.0.113.1:3")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	var body pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(limited.Body.Bytes(), &body))
	assert.Equal(t, pkghttp.CodeRateLimitExceeded, body.Error)

	assert.Equal(t, http.StatusOK, send("203.0.113.2:1").Code, "other clients are unaffected")
}

func TestRateLimitByUser_KeysOnUser(t *testing.T) {
	limiter := RateLimitByUser(RateLimitConfig{RequestsPerMinute: 1})(okHandler())

	send := func(userID string) int {
		req := httptest.NewRequest("POST", "/data/create", nil)
		req.RemoteAddr = "203.0.113.1:1"
		req = req.WithContext(auth.WithUser(req.Context(), &models.User{ID: userID}))
		w := httptest.NewRecorder()
		limiter.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("user-a"))
	assert.Equal(t, http.StatusTooManyRequests, send("user-a"))
	assert.Equal(t, http.StatusOK, send("user-b"), "same IP, different user")
}

func TestCORS(t *testing.T) {
	handler := CORS(DefaultCORSConfig([]string{"https://app.keypass.app"}))(okHandler())

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/datas/user", nil)
		req.Header.Set("Origin", "https://app.keypass.app")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "https://app.keypass.app", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "Content-Type, Authorization", w.Header().Get("Access-Control-Allow-Headers"))
	})

	t.Run("unknown origin gets no grant", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/datas/user", nil)
		req.Header.Set("Origin", "https://evil.example")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		req := httptest.NewRequest("OPTIONS", "/data/create", nil)
		req.Header.Set("Origin", "https://app.keypass.app")
		req.Header.Set("Access-Control-Request-Method", "POST")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}

func TestSecureLogger_RedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := SecureLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("hi"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/verify?otp=123456", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "/verify?[REDACTED]", entry["path"])
	assert.EqualValues(t, http.StatusTeapot, entry["status"])
	assert.EqualValues(t, 2, entry["bytes"])
	assert.NotContains(t, buf.String(), "123456")
}

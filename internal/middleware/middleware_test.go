package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/filo-ai/portal/pkg/logger"
)

func TestLoggingCorrelationID(t *testing.T) {
	var seen string
	h := Logging(logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetCorrelationID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusTeapot, rec.Code)
		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get("X-Correlation-ID"))
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Correlation-ID", "abc-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, "abc-123", seen)
		assert.Equal(t, "abc-123", rec.Header().Get("X-Correlation-ID"))
	})
}

func TestLoggingRecordsAuthenticatedUser(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log := &logger.Logger{Logger: zap.New(core)}

	h := Logging(log)(Auth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+issue(t, testSecret, time.Hour))
	h.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "user-1", fields["user_id"])
	assert.Equal(t, int64(http.StatusOK), fields["status"])
}

func TestLoggingKeepsFlusher(t *testing.T) {
	h := Logging(logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := w.(http.Flusher)
		assert.True(t, ok)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestUserRateLimit(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	h := Auth(testSecret)(UserRateLimit(2, time.Minute)(ok))

	token := issue(t, testSecret, time.Hour)
	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do().Code)
	assert.Equal(t, http.StatusOK, do().Code)

	rec := do()
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestCORSPreflight(t *testing.T) {
	h := CORS([]string{"https://app.filo.ai"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/conversations", nil)
	req.Header.Set("Origin", "https://app.filo.ai")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.filo.ai", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestValidation(t *testing.T) {
	assert.NoError(t, ValidateMessageContent("hello"))
	assert.Error(t, ValidateMessageContent("  \n"))
	assert.Error(t, ValidateMessageContent(strings.Repeat("a", maxMessageLen+1)))
	assert.Error(t, ValidateMessageContent("bad \xff"))

	assert.NoError(t, ValidateCarriedText(""))
	assert.Error(t, ValidateCarriedText("   "))

	assert.NoError(t, ValidateConversationID("0190f3c4-7b1a-7c2d-8e3f-123456789abc"))
	assert.Error(t, ValidateConversationID("../etc"))

	assert.NoError(t, ValidateRequestID("req-1714550400000-1a2b3c4d"))
	assert.Error(t, ValidateRequestID("1714550400000"))

	assert.NoError(t, ValidateDocumentID("sales-register"))
	assert.NoError(t, ValidateDocumentID("document-1"))
	assert.Error(t, ValidateDocumentID("Sales Register"))
	assert.Error(t, ValidateDocumentID(""))

	assert.NoError(t, ValidateTitle(""))
	assert.Error(t, ValidateTitle(strings.Repeat("t", maxTitleLen+1)))
}

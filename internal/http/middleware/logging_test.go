package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/rid", func(c *gin.Context) { c.String(http.StatusOK, RequestIDFrom(c)) })

	cases := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"missing", "", false},
		{"propagated", "abc-123", true},
		{"control chars", "abc\r\nlevel=fatal", false},
		{"too long", strings.Repeat("a", maxRequestIDLength+1), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/rid", nil)
			if tc.incoming != "" {
				req.Header.Set(requestIDHeader, tc.incoming)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get(requestIDHeader)
			assert.Equal(t, got, w.Body.String(), "context and header must agree")
			if tc.keep {
				assert.Equal(t, tc.incoming, got)
				return
			}
			_, err := uuid.Parse(got)
			assert.NoError(t, err, "expected a minted uuid, got %q", got)
		})
	}
}

func TestRecovery_PanicToEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := withCapturedLogger(t)

	r := gin.New()
	r.Use(RequestID(), RedactingLogger(RedactOptions{}), Recovery())
	r.POST("/api/v1/track", func(c *gin.Context) { panic("renderer exploded") })

	req := httptest.NewRequest(http.MethodPost, "/api/v1/track", nil)
	req.Header.Set(requestIDHeader, "rid-panic")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "internal_error", body["code"])
	assert.Equal(t, "rid-panic", body["request_id"])

	logs := buf.String()
	assert.Contains(t, logs, `"message":"panic recovered"`)
	// The panic line comes from the request-scoped logger.
	assert.Contains(t, logs, `"request_id":"rid-panic"`)
	assert.Contains(t, logs, `"path":"/api/v1/track"`)
}

func TestRecovery_PanicAfterWrite(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := withCapturedLogger(t)

	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.GET("/api/v1/captcha/:id/image", func(c *gin.Context) {
		c.Data(http.StatusOK, "image/png", []byte{0x89, 'P', 'N', 'G'})
		panic("late")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/captcha/x/image", nil))

	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.NotContains(t, w.Body.String(), "internal_error")
	assert.Contains(t, buf.String(), "panic recovered")
}

func TestLoggerFrom(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("fallback without access logger", func(t *testing.T) {
		buf := withCapturedLogger(t)
		r := gin.New()
		r.Use(RequestID())
		r.GET("/use", func(c *gin.Context) {
			LoggerFrom(c).Info().Msg("custom")
			c.Status(http.StatusOK)
		})
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/use", nil))

		assert.Contains(t, buf.String(), `"message":"custom"`)
		assert.NotContains(t, buf.String(), `"request_id"`)
	})

	t.Run("request scoped under RedactingLogger", func(t *testing.T) {
		buf := withCapturedLogger(t)
		r := gin.New()
		r.Use(RequestID(), RedactingLogger(RedactOptions{}))
		r.GET("/use", func(c *gin.Context) {
			LoggerFrom(c).Info().Msg("custom2")
			c.Status(http.StatusOK)
		})
		req := httptest.NewRequest(http.MethodGet, "/use", nil)
		req.Header.Set(requestIDHeader, "rid-scoped")
		r.ServeHTTP(httptest.NewRecorder(), req)

		var line map[string]any
		first := strings.SplitN(buf.String(), "\n", 2)[0]
		require.NoError(t, json.Unmarshal([]byte(first), &line))
		assert.Equal(t, "custom2", line["message"])
		assert.Equal(t, "rid-scoped", line["request_id"])
		assert.Equal(t, "/use", line["path"])
	})
}

func TestHelpers_asString_truncate_validRequestID(t *testing.T) {
	assert.Equal(t, "x", asString("x"))
	assert.Equal(t, "", asString(123))

	assert.Equal(t, "hello", truncate("hello", 10))
	assert.Equal(t, "abcde…", truncate("abcdefgh", 5))
	assert.Equal(t, "abc", truncate("abc", 0))

	assert.True(t, validRequestID("Z-REQ-123"))
	assert.False(t, validRequestID(""))
	assert.False(t, validRequestID("has space"))
}

package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withCapturedLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf) // plain JSON lines
	return &buf
}

func lastLogLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &m))
	return m
}

func TestRedactingLogger_ScrubsGenericPII(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := withCapturedLogger(t)

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Header(requestIDHeader, "rid-resp"); c.Next() })
	r.Use(RedactingLogger(RedactOptions{MaskHeaders: []string{" X-Api-Key "}}))
	r.GET("/api/v1/admin/applications/:tracking_id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	q := "email=a.b+tag@example.com&phone=+1-555-123-4567&ref=123e4567-e89b-12d3-a456-426614174000"
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/applications/x?"+q, nil)
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("Cookie", "sid=topsecret")
	req.Header.Set("X-Api-Key", "shhh")
	req.Header.Set("X-Custom", "email a@b.com id=123e4567-e89b-12d3-a456-426614174000 phone 555-123-4567")
	req.Header.Set(requestIDHeader, "rid-req")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	line := lastLogLine(t, buf)
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "http_request", line["message"])
	assert.Equal(t, "/api/v1/admin/applications/:tracking_id", line["path"])
	assert.Equal(t, "rid-resp", line["request_id"])
	assert.Equal(t, false, line["admin"])

	query, _ := line["query"].(string)
	for _, tag := range []string{"[REDACTED:email]", "[REDACTED:phone]", "[REDACTED:id]"} {
		assert.Contains(t, query, tag)
	}

	hdrs, _ := line["headers"].(map[string]any)
	assert.Equal(t, "[REDACTED]", hdrs["Authorization"])
	assert.Equal(t, "[REDACTED]", hdrs["Cookie"])
	assert.Equal(t, "[REDACTED]", hdrs["X-Api-Key"])
	assert.Equal(t, "email [REDACTED:email] id=[REDACTED:id] phone [REDACTED:phone]", hdrs["X-Custom"])
}

func TestRedactingLogger_LevelsAndRequestIDFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name      string
		handler   gin.HandlerFunc
		wantLevel string
	}{
		{"not found", func(c *gin.Context) { c.Status(http.StatusNotFound) }, "warn"},
		{"server error", func(c *gin.Context) { c.Status(http.StatusInternalServerError) }, "error"},
		{"gin error on 200", func(c *gin.Context) {
			_ = c.Error(errors.New("mirror lagging"))
			c.Status(http.StatusOK)
		}, "error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf := withCapturedLogger(t)
			r := gin.New()
			r.Use(RedactingLogger(RedactOptions{}))
			r.GET("/api/v1/admin/applications", tc.handler)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/applications", nil)
			req.Header.Set(requestIDHeader, "rid-in")
			r.ServeHTTP(httptest.NewRecorder(), req)

			line := lastLogLine(t, buf)
			assert.Equal(t, tc.wantLevel, line["level"])
			assert.Equal(t, "rid-in", line["request_id"])
		})
	}
}

func TestRedactingLogger_UnmatchedRouteAndAdminFlag(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := withCapturedLogger(t)

	r := gin.New()
	r.Use(RedactingLogger(RedactOptions{}))
	r.GET("/api/v1/admin/applications", AdminPIN("7788"), func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/random/20250918INCDTKT90001", nil))
	line := lastLogLine(t, buf)
	assert.Equal(t, unmatchedRoute, line["path"])
	assert.NotContains(t, buf.String(), "INCDTKT")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/applications", nil)
	req.Header.Set(HeaderAdminPIN, "7788")
	r.ServeHTTP(httptest.NewRecorder(), req)
	line = lastLogLine(t, buf)
	assert.Equal(t, true, line["admin"])
}

func TestRedactingLogger_TrackerIdentifiers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	buf := withCapturedLogger(t)

	r.Use(RedactingLogger(RedactOptions{}))
	r.GET("/track", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/track?trackId=20250918INCDTKT90001&dob=1990-05-01", nil)
	req.Header.Set("X-Admin-PIN", "7788")
	r.ServeHTTP(httptest.NewRecorder(), req)

	logs := buf.String()
	if strings.Contains(logs, "INCDTKT") || strings.Contains(logs, "1990-05-01") {
		t.Fatalf("tracking id or dob leaked: %s", logs)
	}
	if !strings.Contains(logs, "[REDACTED:tracking_id]") || !strings.Contains(logs, "[REDACTED:date]") {
		t.Fatalf("expected tracker redactions, got: %s", logs)
	}
	if !strings.Contains(logs, `"X-Admin-Pin":"[REDACTED]"`) {
		t.Fatalf("admin pin must be masked: %s", logs)
	}
}

func TestScrubQuery(t *testing.T) {
	cases := map[string]string{
		"":                         "",
		"q=jane":                   "q=jane",
		"dob=1990/05/01":           "dob=[REDACTED:date]",
		"id=20250101-incdtkt-00001": "id=[REDACTED:tracking_id]",
	}
	for in, want := range cases {
		if got := scrubQuery(in); got != want {
			t.Fatalf("scrubQuery(%q) = %q, want %q", in, got, want)
		}
	}
}

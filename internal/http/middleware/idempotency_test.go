package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHelpers_GetIdempotencyKey_IsReplay_Scope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/raw/path", nil)
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	// Not set
	if k, ok := GetIdempotencyKey(c); k != "" || ok {
		t.Fatalf("expected empty key when not set")
	}
	if IsReplay(c) {
		t.Fatalf("expected IsReplay=false by default")
	}

	// Set non-string for key → should return false
	c.Set(ctxKeyIdemKey, 123)
	if k, ok := GetIdempotencyKey(c); k != "" || ok {
		t.Fatalf("expected GetIdempotencyKey to be absent for non-string value")
	}
	c.Set(ctxKeyIdemReplay, true)
	if !IsReplay(c) {
		t.Fatalf("expected IsReplay=true")
	}
	c.Set(ctxKeyIdemReplay, "yes")
	if IsReplay(c) {
		t.Fatalf("expected IsReplay=false for non-bool")
	}

	// No matched route → raw path
	if got := IdempotencyScope(c); got != "POST /raw/path" {
		t.Fatalf("scope fallback mismatch: %q", got)
	}
}

func TestIdempotencyValidator_SkipsWithoutHeaderOrOnSafeMethods(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	calls := 0
	r.Use(IdempotencyValidator(IdempotencyOptions{}, func(context.Context, string, string, time.Time) (bool, error) {
		calls++
		return true, nil
	}))
	h := func(c *gin.Context) {
		_, ok := GetIdempotencyKey(c)
		assert.False(t, ok)
		assert.False(t, IsRateBypass(c))
		c.Status(http.StatusNoContent)
	}
	r.GET("/api/v1/admin/applications", h)
	r.POST("/api/v1/admin/applications", h)

	// GET with a key (even a malformed one) is ignored.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/applications", nil)
	req.Header.Set(HeaderIdempotencyKey, "not valid!")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/admin/applications", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	assert.Zero(t, calls)
}

func TestIdempotencyValidator_RejectsMalformedKeys(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name string
		opts IdempotencyOptions
		key  string
	}{
		{"too long", IdempotencyOptions{MaxLen: 5}, "abcdef"},
		{"default pattern", IdempotencyOptions{}, "has space"},
		{"custom pattern", IdempotencyOptions{Pattern: regexp.MustCompile(`^[0-9]+$`)}, "abc123"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.Use(func(c *gin.Context) { c.Header(requestIDHeader, "rid-idem"); c.Next() })
			r.Use(IdempotencyValidator(tc.opts, nil))
			r.POST("/x", func(c *gin.Context) { t.Fatal("handler must not run") })

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/x", nil)
			req.Header.Set(HeaderIdempotencyKey, tc.key)
			r.ServeHTTP(w, req)

			require.Equal(t, http.StatusBadRequest, w.Code)
			var body struct {
				RequestID string            `json:"request_id"`
				Code      string            `json:"code"`
				Fields    map[string]string `json:"fields"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "bad_request", body.Code)
			assert.Equal(t, "rid-idem", body.RequestID)
			assert.Contains(t, body.Fields, "idempotency_key")
		})
	}
}

func TestIdempotencyValidator_LookupOutcomes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name       string
		exists     bool
		err        error
		wantReplay bool
	}{
		{"miss", false, nil, false},
		{"hit", true, nil, true},
		{"lookup error is a miss", false, errors.New("db down"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf := withCapturedLogger(t)
			r := gin.New()
			r.Use(IdempotencyValidator(IdempotencyOptions{}, func(_ context.Context, scope, key string, now time.Time) (bool, error) {
				assert.Equal(t, "POST /admin/applications", scope)
				assert.Equal(t, "k-9", key)
				assert.False(t, now.IsZero())
				return tc.exists, tc.err
			}))
			r.POST("/admin/applications", func(c *gin.Context) {
				key, ok := GetIdempotencyKey(c)
				assert.True(t, ok)
				assert.Equal(t, "k-9", key)
				assert.Equal(t, tc.wantReplay, IsReplay(c))
				assert.Equal(t, tc.wantReplay, IsRateBypass(c))
				c.Status(http.StatusCreated)
			})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/admin/applications", nil)
			req.Header.Set(HeaderIdempotencyKey, "k-9")
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusCreated, w.Code)
			if tc.err != nil {
				assert.Contains(t, buf.String(), "idempotency lookup failed")
			}
		})
	}
}

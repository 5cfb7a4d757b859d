package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/visa-track-backend/internal/captcha"
)

// textRenderer "renders" the code as bytes so tests can see what changed.
type textRenderer struct{}

func (textRenderer) Render(code string) ([]byte, error) { return []byte("png:" + code), nil }

func newCaptchaRouter(t *testing.T) (*gin.Engine, *captcha.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := captcha.NewService(captcha.NewMemoryStore(), textRenderer{}, captcha.NewRand(7), time.Minute)
	h := New(svc, nil, nil)

	r := gin.New()
	r.POST("/captcha", h.NewCaptcha)
	r.GET("/captcha/:id/image", h.CaptchaImage)
	r.POST("/captcha/:id/refresh", h.RefreshCaptcha)
	return r, svc
}

func decodeChallenge(t *testing.T, w *httptest.ResponseRecorder) ChallengeResponse {
	t.Helper()
	var resp ChallengeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v (%s)", err, w.Body.String())
	}
	return resp
}

func TestNewCaptcha_ReturnsDataURL(t *testing.T) {
	r, svc := newCaptchaRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/captcha", nil))
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Fatalf("Cache-Control=%q", got)
	}
	resp := decodeChallenge(t, w)
	if resp.ID == "" || !strings.HasPrefix(resp.Image, "data:image/png;base64,") {
		t.Fatalf("unexpected challenge: %+v", resp)
	}
	if resp.ExpiresAt.IsZero() {
		t.Fatalf("expires_at missing")
	}
	if strings.Contains(w.Body.String(), `"code"`) {
		t.Fatalf("secret code leaked: %s", w.Body.String())
	}

	ch, err := svc.Get(context.Background(), resp.ID)
	if err != nil {
		t.Fatalf("stored challenge: %v", err)
	}
	if ch.State != captcha.StateChallenged {
		t.Fatalf("state=%s", ch.State)
	}
}

func TestCaptchaImage_ServesPNG(t *testing.T) {
	r, svc := newCaptchaRouter(t)
	ch, err := svc.New(context.Background())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/captcha/"+ch.ID+"/image", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("Content-Type=%q", ct)
	}
	if w.Body.String() != "png:"+ch.Code {
		t.Fatalf("body=%q", w.Body.String())
	}
}

func TestCaptchaImage_UnknownID(t *testing.T) {
	r, _ := newCaptchaRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/captcha/nope/image", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}
	var er ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &er)
	if er.Code != ErrCodeCaptchaNotFound {
		t.Fatalf("code=%q", er.Code)
	}
}

func TestRefreshCaptcha_KeepsID(t *testing.T) {
	r, svc := newCaptchaRouter(t)
	ch, err := svc.New(context.Background())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/captcha/"+ch.ID+"/refresh", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if resp := decodeChallenge(t, w); resp.ID != ch.ID {
		t.Fatalf("id changed: %s -> %s", ch.ID, resp.ID)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/captcha/missing/refresh", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown refresh status=%d", w.Code)
	}
}

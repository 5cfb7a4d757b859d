// Captcha HTTP handlers.
//
// This file exposes the challenge endpoints used by the status form:
//   - POST /captcha               (issue)
//   - GET  /captcha/{id}/image    (PNG rendering)
//   - POST /captcha/{id}/refresh  (new code, same ID)
//
// The secret code never leaves the server; clients only see the rendering.
package handlers

import (
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/visa-track-backend/internal/captcha"
)

// ChallengeResponse is the public view of a challenge.
type ChallengeResponse struct {
	ID string `json:"id" example:"3f1c2a9e-7b7d-4c1e-9d55-0b8a8f2f6d11"`
	// PNG rendering as a data URL
	Image     string    `json:"image" example:"data:image/png;base64,iVBORw0KGgo..."`
	ExpiresAt time.Time `json:"expires_at"`
}

func challengeResponse(ch *captcha.Challenge) *ChallengeResponse {
	if ch == nil {
		return nil
	}
	return &ChallengeResponse{
		ID:        ch.ID,
		Image:     "data:image/png;base64," + base64.StdEncoding.EncodeToString(ch.Image),
		ExpiresAt: ch.ExpiresAt,
	}
}

func isCaptchaErr(err error) bool {
	return errors.Is(err, captcha.ErrMissingInput) ||
		errors.Is(err, captcha.ErrMismatch) ||
		errors.Is(err, captcha.ErrNotFound)
}

// captchaFail maps captcha errors onto the error envelope. Unknown errors
// are internal.
func captchaFail(c *gin.Context, err error, ch *captcha.Challenge) {
	switch {
	case errors.Is(err, captcha.ErrMissingInput):
		fail(c, http.StatusBadRequest, ErrCodeCaptchaRequired, "captcha is required")
	case errors.Is(err, captcha.ErrMismatch):
		failWith(c, http.StatusUnprocessableEntity, ErrorResponse{
			Code:      ErrCodeCaptchaMismatch,
			Message:   "captcha does not match",
			Challenge: challengeResponse(ch),
		})
	case errors.Is(err, captcha.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeCaptchaNotFound, "captcha not found or expired")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

// NewCaptcha godoc
// @ID          newCaptcha
// @Summary     Issue a captcha challenge
// @Description Creates a challenge for the status form and returns its ID and rendering.
// @Tags        Captcha
// @Produce     json
// @Success     201  {object}  handlers.ChallengeResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /captcha [post]
func (h *Handlers) NewCaptcha(c *gin.Context) {
	ch, err := h.captchaSvc.New(c.Request.Context())
	if err != nil {
		captchaFail(c, err, nil)
		return
	}
	c.Header("Cache-Control", "no-store")
	ok(c, http.StatusCreated, challengeResponse(ch))
}

// CaptchaImage godoc
// @ID          captchaImage
// @Summary     Captcha image
// @Description Returns the current PNG rendering of a challenge.
// @Tags        Captcha
// @Produce     png
// @Param       id   path  string  true  "Challenge ID"
// @Success     200  {file}    binary
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown or expired challenge"
// @Router      /captcha/{id}/image [get]
func (h *Handlers) CaptchaImage(c *gin.Context) {
	ch, err := h.captchaSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		captchaFail(c, err, nil)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", ch.Image)
}

// RefreshCaptcha godoc
// @ID          refreshCaptcha
// @Summary     Refresh a captcha
// @Description Replaces the code and image of a challenge and restarts its lifetime. The ID is kept.
// @Tags        Captcha
// @Produce     json
// @Param       id   path  string  true  "Challenge ID"
// @Success     200  {object}  handlers.ChallengeResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown or expired challenge"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /captcha/{id}/refresh [post]
func (h *Handlers) RefreshCaptcha(c *gin.Context) {
	ch, err := h.captchaSvc.Refresh(c.Request.Context(), c.Param("id"))
	if err != nil {
		captchaFail(c, err, nil)
		return
	}
	c.Header("Cache-Control", "no-store")
	ok(c, http.StatusOK, challengeResponse(ch))
}

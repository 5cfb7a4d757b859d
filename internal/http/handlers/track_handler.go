// Status form HTTP handler.
//
//   - POST /track
//
// The handler binds the form, hands it to the tracking service and maps the
// captcha and validation errors onto status codes. "Not found" is a normal
// 200 outcome with found=false, so the form can show its message inline.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/visa-track-backend/internal/lookup"
	"github.com/tbourn/visa-track-backend/internal/services"
)

// TrackRequest is the JSON payload of the status form.
type TrackRequest struct {
	TrackingID string `json:"tracking_id" example:"20250302INCDTKT00042"`
	DOB        string `json:"dob"         example:"1990-05-17"`
	CaptchaID  string `json:"captcha_id"  example:"3f1c2a9e-7b7d-4c1e-9d55-0b8a8f2f6d11"`
	Captcha    string `json:"captcha"     example:"7KQ2M"`
}

// TrackResponse is the lookup outcome plus the challenge the form shows
// next; a solved challenge covers one lookup.
type TrackResponse struct {
	lookup.Outcome
	Challenge *ChallengeResponse `json:"challenge,omitempty"`
}

// Track godoc
// @ID          trackStatus
// @Summary     Look up an application status
// @Description Verifies the captcha and resolves the status of an application from its tracking ID and date of birth.
// @Tags        Status
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.TrackRequest  true  "Status form"
// @Success     200  {object}  handlers.TrackResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Required fields missing"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown or expired challenge"
// @Failure     422  {object}  handlers.ErrorResponse  "Captcha mismatch; carries a new challenge"
// @Failure     429  {object}  handlers.ErrorResponse  "Too many requests"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /track [post]
func (h *Handlers) Track(c *gin.Context) {
	var req TrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	out, ch, err := h.trackSvc.Track(c.Request.Context(), services.TrackRequest{
		TrackingID: req.TrackingID,
		DOB:        req.DOB,
		CaptchaID:  req.CaptchaID,
		Captcha:    req.Captcha,
	})
	if err != nil {
		var fe services.FieldErrors
		if errors.As(err, &fe) {
			failWith(c, http.StatusBadRequest, ErrorResponse{
				Code:    ErrCodeBadRequest,
				Message: services.ErrMissingFields.Error(),
				Fields:  fe,
			})
			return
		}
		if isCaptchaErr(err) {
			captchaFail(c, err, ch)
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeLookupFailed, err.Error())
		return
	}

	c.Header("Cache-Control", "no-store")
	ok(c, http.StatusOK, TrackResponse{Outcome: out, Challenge: challengeResponse(ch)})
}

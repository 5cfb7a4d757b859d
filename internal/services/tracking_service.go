// Package services – TrackingService
//
// TrackingService implements the public status form: required-field checks,
// the captcha gate and the status lookup, in that order. A lookup never
// runs unless the challenge named in the request has just been solved, and
// a completed lookup uses the solve up.
package services

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tbourn/visa-track-backend/internal/captcha"
	"github.com/tbourn/visa-track-backend/internal/lookup"
)

// CaptchaVerifier is the captcha contract the form flow needs. Refresh
// re-issues a solved challenge so one solve covers one lookup.
type CaptchaVerifier interface {
	Verify(ctx context.Context, id, entered string) (*captcha.Challenge, error)
	Refresh(ctx context.Context, id string) (*captcha.Challenge, error)
}

// StatusResolver resolves a tracking ID and date of birth to an outcome.
type StatusResolver interface {
	Resolve(ctx context.Context, trackingID, dob string) (lookup.Outcome, error)
}

// TrackRequest is one submission of the status form.
type TrackRequest struct {
	TrackingID string
	DOB        string
	CaptchaID  string
	Captcha    string
}

// TrackingService runs the status form.
type TrackingService struct {
	Captcha  CaptchaVerifier
	Resolver StatusResolver

	// AutoFormatID strips separators and uppercases tracking IDs first.
	AutoFormatID bool

	Log zerolog.Logger
}

// NewTrackingService wires a form flow with a no-op logger.
func NewTrackingService(c CaptchaVerifier, r StatusResolver) *TrackingService {
	return &TrackingService{Captcha: c, Resolver: r, Log: zerolog.Nop()}
}

// Track validates req, verifies the captcha and resolves the status. On
// success the returned challenge is the re-issued one the form shows next.
//
// Errors:
//   - FieldErrors (errors.Is ErrMissingFields): tracking ID, dob or captcha ID
//     blank; a blank captcha entry is listed with them
//   - captcha.ErrMissingInput: captcha entry blank, everything else present;
//     reported before the challenge is looked up
//   - captcha.ErrNotFound: unknown or expired challenge
//   - captcha.ErrMismatch: wrong entry; the returned challenge carries the
//     new code's image and must be shown instead of the old one
//
// A missing application is not an error: the Outcome reports Found=false.
func (s *TrackingService) Track(ctx context.Context, req TrackRequest) (lookup.Outcome, *captcha.Challenge, error) {
	id := strings.TrimSpace(req.TrackingID)
	if s.AutoFormatID {
		id = lookup.FormatTrackingID(id)
	}
	dob := strings.TrimSpace(req.DOB)

	missing := FieldErrors{}
	if id == "" {
		missing["tracking_id"] = FieldRequired
	}
	if dob == "" {
		missing["dob"] = FieldRequired
	}
	if strings.TrimSpace(req.CaptchaID) == "" {
		missing["captcha_id"] = FieldRequired
	}
	blankCaptcha := captcha.Normalize(req.Captcha) == ""
	if len(missing) > 0 && blankCaptcha {
		missing["captcha"] = FieldRequired
	}
	if err := missing.orNil(); err != nil {
		return lookup.Outcome{}, nil, err
	}
	if blankCaptcha {
		return lookup.Outcome{}, nil, captcha.ErrMissingInput
	}

	ch, err := s.Captcha.Verify(ctx, req.CaptchaID, req.Captcha)
	if err != nil {
		return lookup.Outcome{}, ch, err
	}

	out, err := s.Resolver.Resolve(ctx, id, dob)
	if err != nil {
		return lookup.Outcome{}, ch, err
	}
	s.Log.Info().
		Bool("found", out.Found).
		Str("source", out.Source).
		Str("status", string(out.Status)).
		Msg("status lookup")

	next, err := s.Captcha.Refresh(ctx, req.CaptchaID)
	if err != nil {
		s.Log.Warn().Err(err).Str("captcha_id", req.CaptchaID).Msg("captcha re-issue failed")
		return out, nil, nil
	}
	return out, next, nil
}

package captcha

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Service issues, refreshes and verifies challenges.
type Service struct {
	store    Store
	renderer Renderer
	rnd      Rand
	ttl      time.Duration
	log      zerolog.Logger
	now      func() time.Time
	newID    func() string
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithLogger attaches a logger; the default discards output.
func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.log = l } }

// WithIDGenerator overrides challenge ID generation.
func WithIDGenerator(f func() string) Option { return func(s *Service) { s.newID = f } }

// NewService wires a challenge service. rnd drives code generation and should
// be the same source handed to the renderer when reproducibility matters.
func NewService(store Store, renderer Renderer, rnd Rand, ttl time.Duration, opts ...Option) *Service {
	s := &Service{
		store:    store,
		renderer: renderer,
		rnd:      rnd,
		ttl:      ttl,
		log:      zerolog.Nop(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// New creates, renders and stores a challenge in state Challenged.
func (s *Service) New(ctx context.Context) (*Challenge, error) {
	ctx, span := otel.Tracer("captcha/Service").Start(ctx, "New")
	defer span.End()

	now := s.now().UTC()
	c := &Challenge{ID: s.newID(), State: StateUnchallenged, CreatedAt: now}
	if err := s.reissue(c, now); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, c); err != nil {
		return nil, err
	}
	challengesIssued.WithLabelValues("new").Inc()
	return c, nil
}

// Get loads a challenge by ID.
func (s *Service) Get(ctx context.Context, id string) (*Challenge, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrNotFound
	}
	return s.store.Get(ctx, id)
}

// Refresh replaces the code and image of an existing challenge and restarts
// its lifetime. The ID is kept.
func (s *Service) Refresh(ctx context.Context, id string) (*Challenge, error) {
	ctx, span := otel.Tracer("captcha/Service").Start(ctx, "Refresh",
		trace.WithAttributes(attribute.String("captcha.id", id)))
	defer span.End()

	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.reissue(c, s.now().UTC()); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, c); err != nil {
		return nil, err
	}
	challengesIssued.WithLabelValues("refresh").Inc()
	return c, nil
}

// Verify applies a user entry to the challenge with the given ID.
//
//   - blank entry: ErrMissingInput, challenge unchanged
//   - match: state Verified, nil error
//   - mismatch: the challenge is regenerated and re-rendered before
//     returning it together with ErrMismatch
func (s *Service) Verify(ctx context.Context, id, entered string) (*Challenge, error) {
	ctx, span := otel.Tracer("captcha/Service").Start(ctx, "Verify",
		trace.WithAttributes(attribute.String("captcha.id", id)))
	defer span.End()

	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	err = c.check(entered)
	switch {
	case errors.Is(err, ErrMissingInput):
		verifications.WithLabelValues("missing").Inc()
		return c, err
	case err == nil:
		verifications.WithLabelValues("match").Inc()
		if err := s.store.Save(ctx, c); err != nil {
			return nil, err
		}
		return c, nil
	}

	verifications.WithLabelValues("mismatch").Inc()
	s.log.Debug().Str("captcha_id", c.ID).Int("attempts", c.Attempts).Msg("captcha mismatch; regenerating")
	if rerr := s.reissue(c, s.now().UTC()); rerr != nil {
		return nil, rerr
	}
	if serr := s.store.Save(ctx, c); serr != nil {
		return nil, serr
	}
	challengesIssued.WithLabelValues("mismatch").Inc()
	return c, ErrMismatch
}

func (s *Service) reissue(c *Challenge, now time.Time) error {
	code := Generate(s.rnd)
	img, err := s.renderer.Render(code)
	if err != nil {
		return fmt.Errorf("render captcha: %w", err)
	}
	c.issue(code, img)
	c.ExpiresAt = now.Add(s.ttl)
	return nil
}

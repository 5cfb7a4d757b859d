package lookup

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Outcome is the structured result of a resolution. Presentation layers
// decide how to show it; Message is plain text.
type Outcome struct {
	Found       bool   `json:"found"`
	Status      Status `json:"status,omitempty"`
	TrackingID  string `json:"tracking_id"`
	DisplayDate string `json:"display_date,omitempty"`
	Message     string `json:"message"`
	Source      string `json:"-"`
}

// Resolver consults Sources in order and stops at the first live match.
type Resolver struct {
	sources      []Source
	office       string
	touchTimeout time.Duration
	now          func() time.Time
	log          zerolog.Logger
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithOffice sets the office named in messages.
func WithOffice(office string) Option { return func(r *Resolver) { r.office = office } }

// WithClock overrides the time source used for expiry and date fallback.
func WithClock(now func() time.Time) Option { return func(r *Resolver) { r.now = now } }

// WithLogger attaches a logger; the default discards output.
func WithLogger(l zerolog.Logger) Option { return func(r *Resolver) { r.log = l } }

// WithTouchTimeout bounds the access-tracking side effect.
func WithTouchTimeout(d time.Duration) Option { return func(r *Resolver) { r.touchTimeout = d } }

// NewResolver returns a resolver over sources, consulted in the given order.
func NewResolver(sources []Source, opts ...Option) *Resolver {
	r := &Resolver{
		sources:      append([]Source(nil), sources...),
		office:       "IRCC Office",
		touchTimeout: 2 * time.Second,
		now:          time.Now,
		log:          zerolog.Nop(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Sources returns the configured source names in priority order.
func (r *Resolver) Sources() []string {
	out := make([]string, len(r.sources))
	for i, s := range r.sources {
		out[i] = s.Name()
	}
	return out
}

// Resolve looks up trackingID and dob. A missing record is reported through
// Outcome.Found, not as an error; the only error is cancellation of ctx.
func (r *Resolver) Resolve(ctx context.Context, trackingID, dob string) (Outcome, error) {
	ctx, span := otel.Tracer("lookup/Resolver").Start(ctx, "Resolve",
		trace.WithAttributes(attribute.Int("lookup.sources", len(r.sources))))
	defer span.End()

	trackingID = strings.TrimSpace(trackingID)
	dob = strings.TrimSpace(dob)
	now := r.now()

	for _, src := range r.sources {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return Outcome{}, err
		}

		rec, err := src.Find(ctx, trackingID, dob)
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				span.SetStatus(codes.Error, ctxErr.Error())
				return Outcome{}, ctxErr
			}
			sourceResults.WithLabelValues(src.Name(), "error").Inc()
			span.AddEvent("source_unavailable", trace.WithAttributes(attribute.String("source", src.Name())))
			r.log.Warn().Err(err).Str("source", src.Name()).Msg("lookup source unavailable; trying next")
			continue
		case rec == nil:
			sourceResults.WithLabelValues(src.Name(), "miss").Inc()
			continue
		case rec.ExpiresAt != nil && rec.ExpiresAt.Before(now):
			sourceResults.WithLabelValues(src.Name(), "expired").Inc()
			r.log.Debug().Str("source", src.Name()).Time("expires_at", *rec.ExpiresAt).Msg("lookup match expired")
			continue
		}

		sourceResults.WithLabelValues(src.Name(), "match").Inc()
		resolutions.WithLabelValues("found").Inc()
		span.SetAttributes(attribute.String("lookup.source", src.Name()))
		r.touch(ctx, src, rec)
		return r.outcome(src.Name(), trackingID, dob, rec, now), nil
	}

	resolutions.WithLabelValues("not_found").Inc()
	return Outcome{Found: false, TrackingID: trackingID, Message: NotFoundMessage}, nil
}

func (r *Resolver) outcome(source, trackingID, dob string, rec *RawRecord, now time.Time) Outcome {
	status, known := NormalizeStatus(rec.Status)
	if !known {
		r.log.Info().Str("source", source).Str("raw_status", rec.Status).Msg("unrecognized status; defaulting to under process")
	}
	id := strings.TrimSpace(rec.TrackingID)
	if id == "" {
		id = trackingID
	}
	date := DisplayDate(rec.Date, dob, now)
	return Outcome{
		Found:       true,
		Status:      status,
		TrackingID:  id,
		DisplayDate: date,
		Message:     Message(id, status, r.office, date),
		Source:      source,
	}
}

// touch records the access when the source supports it. Failures are logged
// and dropped; the lookup result never depends on them.
func (r *Resolver) touch(ctx context.Context, src Source, rec *RawRecord) {
	t, ok := src.(AccessTracker)
	if !ok || rec.Ref == "" {
		return
	}
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.touchTimeout)
	defer cancel()
	if err := t.TouchAccess(tctx, rec.Ref); err != nil {
		r.log.Warn().Err(err).Str("source", src.Name()).Msg("access tracking failed")
	}
}

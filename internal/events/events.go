// Package events publishes application lifecycle events. Consumers (mail
// notifications, the remote mirror) subscribe on NATS; the core never waits
// on them.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// SubjectApplicationCreated is appended to the configured prefix.
const SubjectApplicationCreated = "application.created"

// ApplicationCreated is the payload published after an admin files a record.
type ApplicationCreated struct {
	TrackingID string    `json:"tracking_id"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	Date       string    `json:"date"`
	CreatedAt  time.Time `json:"created_at"`
}

// Publisher emits domain events.
type Publisher interface {
	ApplicationCreated(ctx context.Context, ev ApplicationCreated) error
	Close()
}

// Nop discards every event.
type Nop struct{}

func (Nop) ApplicationCreated(context.Context, ApplicationCreated) error { return nil }
func (Nop) Close()                                                       {}

// conn is the subset of *nats.Conn the publisher uses.
type conn interface {
	Publish(subject string, data []byte) error
	Close()
}

// NATSPublisher publishes JSON events on "<prefix>.<event>".
type NATSPublisher struct {
	conn   conn
	prefix string
	log    zerolog.Logger
}

// NewNATSPublisher connects to url and returns a publisher.
func NewNATSPublisher(url, prefix string, log zerolog.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("visa-track-backend"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	log.Info().Str("url", url).Msg("connected to NATS")
	return newNATSPublisher(nc, prefix, log), nil
}

func newNATSPublisher(c conn, prefix string, log zerolog.Logger) *NATSPublisher {
	return &NATSPublisher{conn: c, prefix: prefix, log: log}
}

func (p *NATSPublisher) subject(event string) string {
	if p.prefix == "" {
		return event
	}
	return p.prefix + "." + event
}

func (p *NATSPublisher) ApplicationCreated(_ context.Context, ev ApplicationCreated) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal application.created: %w", err)
	}
	subj := p.subject(SubjectApplicationCreated)
	if err := p.conn.Publish(subj, data); err != nil {
		p.log.Error().Err(err).Str("subject", subj).Str("tracking_id", ev.TrackingID).Msg("publish failed")
		return fmt.Errorf("publish %s: %w", subj, err)
	}
	p.log.Debug().Str("subject", subj).Str("tracking_id", ev.TrackingID).Msg("event published")
	return nil
}

func (p *NATSPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
		p.log.Info().Msg("NATS connection closed")
	}
}

// Package events publishes post-commit marketplace notifications. Publishing
// is best effort: a failed publish is logged and never undoes the write it
// describes.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Subjects.
const (
	SubjectBidPlaced      = "marketplace.bids.placed"
	SubjectListingFinal   = "marketplace.listings.finalized"
	SubjectListingClaimed = "marketplace.listings.claimed"
	SubjectJobAssigned    = "marketplace.jobs.assigned"
	SubjectJobStatus      = "marketplace.jobs.status"
	SubjectAlertDue       = "marketplace.alerts.due"
	SubjectListingCreated = "marketplace.listings.created"
)

// Envelope is the wire shape of every published event.
type Envelope struct {
	EventID    string      `json:"event_id"`
	Subject    string      `json:"subject"`
	ListingID  string      `json:"listing_id,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

func NewEnvelope(subject string, listingID uuid.UUID, data interface{}) Envelope {
	env := Envelope{
		EventID:    uuid.New().String(),
		Subject:    subject,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
	if listingID != uuid.Nil {
		env.ListingID = listingID.String()
	}
	return env
}

type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

// Emit publishes env and logs a failure instead of returning it.
func Emit(ctx context.Context, p Publisher, env Envelope) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, env); err != nil {
		log.Warn().Err(err).Str("subject", env.Subject).Str("listing_id", env.ListingID).Msg("event publish failed")
	}
}

// natsConn is the subset of *nats.Conn used here.
type natsConn interface {
	Publish(subj string, data []byte) error
}

type NATSPublisher struct {
	Conn natsConn
}

func NewNATSPublisher(conn *nats.Conn) *NATSPublisher {
	return &NATSPublisher{Conn: conn}
}

func (p *NATSPublisher) Publish(ctx context.Context, env Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	subject := env.Subject
	if env.ListingID != "" {
		subject += "." + env.ListingID
	}
	return p.Conn.Publish(subject, b)
}

// RedisPublisher fans events out over Redis pub/sub, one channel per subject.
type RedisPublisher struct {
	Client *redis.Client
}

func (p *RedisPublisher) Publish(ctx context.Context, env Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return p.Client.Publish(ctx, env.Subject, b).Err()
}

// LogPublisher writes events to the structured log. Used when no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, env Envelope) error {
	log.Info().
		Str("subject", env.Subject).
		Str("event_id", env.EventID).
		Str("listing_id", env.ListingID).
		Interface("data", env.Data).
		Msg("event")
	return nil
}

// Fanout publishes to every publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, env Envelope) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, env); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps published envelopes in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Envelope
}

func (r *Recorder) Publish(ctx context.Context, env Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, env)
	return nil
}

func (r *Recorder) Events() []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Envelope(nil), r.events...)
}

// Subjects returns the subjects recorded so far, in order.
func (r *Recorder) Subjects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Subject)
	}
	return out
}

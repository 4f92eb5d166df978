package natsadapter

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/kopimap/internal/core/domain"
)

const (
	SubjectVisitsUpdated  = "kopimap.visits.updated"
	SubjectCatalogChanged = "kopimap.catalog.changed"
)

// VisitEvent carries a counter snapshot between API instances. Origin lets
// an instance skip its own messages.
type VisitEvent struct {
	Origin string            `json:"origin"`
	Stats  domain.VisitStats `json:"stats"`
}

// CatalogEvent announces that the cafe list changed (store write or refresh).
type CatalogEvent struct {
	Origin string    `json:"origin"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	origin string
}

// NewPublisher connects to NATS and makes sure the event stream exists.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := Connect(url)
	if err != nil {
		return nil, err
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := nats.StreamConfig{
		Name:      "KOPIMAP_EVENTS",
		Subjects:  []string{"kopimap.>"},
		Retention: nats.LimitsPolicy,
		MaxAge:    time.Hour,
		Storage:   nats.MemoryStorage,
	}
	if _, err := js.AddStream(&cfg); err != nil {
		// Stream may already exist, try update
		if _, err := js.UpdateStream(&cfg); err != nil {
			conn.Close()
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js, origin: uuid.NewString()}, nil
}

// Origin is this instance's id stamped on every event.
func (p *Publisher) Origin() string {
	return p.origin
}

// Conn exposes the connection so a Subscriber can share it.
func (p *Publisher) Conn() *nats.Conn {
	return p.conn
}

// PublishVisitStats announces new counter values.
func (p *Publisher) PublishVisitStats(ctx context.Context, stats domain.VisitStats) error {
	data, err := json.Marshal(VisitEvent{Origin: p.origin, Stats: stats})
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectVisitsUpdated, data, nats.Context(ctx))
	return err
}

// PublishCatalogChanged announces that cafe data changed.
func (p *Publisher) PublishCatalogChanged(ctx context.Context, reason string) error {
	data, err := json.Marshal(CatalogEvent{Origin: p.origin, Reason: reason, At: time.Now().UTC()})
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectCatalogChanged, data, nats.Context(ctx))
	return err
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// Connect opens a NATS connection that keeps reconnecting.
func Connect(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("kopimap"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return conn, nil
}

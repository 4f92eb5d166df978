package natsadapter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/kopimap/internal/core/domain"
)

// Subscriber fans events from other instances into local handlers. Every
// instance gets its own ephemeral consumer so each one sees every event.
type Subscriber struct {
	js     nats.JetStreamContext
	origin string
	subs   []*nats.Subscription
}

// NewSubscriber shares the publisher's connection and skips messages the
// publisher itself sent.
func NewSubscriber(p *Publisher) *Subscriber {
	return &Subscriber{js: p.js, origin: p.origin}
}

// SubscribeVisitStats delivers counter snapshots published by other instances.
func (s *Subscriber) SubscribeVisitStats(ctx context.Context, handler func(ctx context.Context, stats domain.VisitStats)) error {
	sub, err := s.js.Subscribe(SubjectVisitsUpdated, func(msg *nats.Msg) {
		var ev VisitEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			slog.Warn("dropping malformed visit event", "error", err)
			return
		}
		if ev.Origin == s.origin {
			return
		}
		handler(ctx, ev.Stats)
	}, nats.DeliverNew(), nats.AckNone())
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", SubjectVisitsUpdated, err)
	}
	s.subs = append(s.subs, sub)
	return nil
}

// SubscribeCatalogChanged delivers catalog change notices from other instances.
func (s *Subscriber) SubscribeCatalogChanged(ctx context.Context, handler func(ctx context.Context, reason string)) error {
	sub, err := s.js.Subscribe(SubjectCatalogChanged, func(msg *nats.Msg) {
		var ev CatalogEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			slog.Warn("dropping malformed catalog event", "error", err)
			return
		}
		if ev.Origin == s.origin {
			return
		}
		handler(ctx, ev.Reason)
	}, nats.DeliverNew(), nats.AckNone())
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", SubjectCatalogChanged, err)
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes. The connection belongs to the publisher.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
}

package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/docflow/internal/core/domain"
)

// EventBus relays transition events from workers to API instances. It is
// at-most-once: a lost event is never retried.
type EventBus struct {
	conn    *nats.Conn
	subject string
}

func NewEventBus(conn *nats.Conn, subject string) *EventBus {
	return &EventBus{conn: conn, subject: subject}
}

func (b *EventBus) Notify(_ context.Context, event domain.TransitionEvent) {
	raw, err := json.Marshal(event)
	if err != nil {
		slog.Warn("event_encode_failed", "document_id", event.DocumentID, "error", err)
		return
	}
	if err := b.conn.Publish(b.subject, raw); err != nil {
		slog.Warn("event_publish_failed", "document_id", event.DocumentID, "status", event.NewStatus, "error", err)
	}
}

// Subscribe calls fn for every event until ctx is done.
func (b *EventBus) Subscribe(ctx context.Context, fn func(domain.TransitionEvent)) error {
	sub, err := b.conn.Subscribe(b.subject, func(msg *nats.Msg) {
		event, err := DecodeEvent(msg.Data)
		if err != nil {
			slog.Warn("event_decode_failed", "error", err)
			return
		}
		fn(event)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe events: %w", err)
	}
	<-ctx.Done()
	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("nats unsubscribe events: %w", err)
	}
	return nil
}

func DecodeEvent(raw []byte) (domain.TransitionEvent, error) {
	var event domain.TransitionEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return domain.TransitionEvent{}, fmt.Errorf("decode transition event: %w", err)
	}
	if event.DocumentID == "" {
		return domain.TransitionEvent{}, fmt.Errorf("decode transition event: missing document_id")
	}
	return event, nil
}

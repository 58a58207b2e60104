// Package notify holds notifiers that are not tied to a transport.
package notify

import (
	"context"
	"log/slog"

	"github.com/kirillkom/docflow/internal/core/domain"
	"github.com/kirillkom/docflow/internal/core/ports"
)

// Fanout delivers each event to every notifier in order.
type Fanout []ports.Notifier

func (f Fanout) Notify(ctx context.Context, event domain.TransitionEvent) {
	for _, n := range f {
		if n != nil {
			n.Notify(ctx, event)
		}
	}
}

// Log writes transition events to a structured logger.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Notify(ctx context.Context, event domain.TransitionEvent) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "workflow_transition",
		"document_id", event.DocumentID,
		"status", event.NewStatus,
		"stage", event.Stage,
	)
}

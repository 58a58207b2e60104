package nats

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/docflow/internal/core/domain"
)

func TestClassifyNATSError(t *testing.T) {
	if c := classifyNATSError(fmt.Errorf("publish: %w", nats.ErrConnectionClosed)); !c.Retryable {
		t.Fatalf("closed connection should be retryable")
	}
	if c := classifyNATSError(context.Canceled); c.Retryable || c.RecordFailure {
		t.Fatalf("cancellation must be neither retried nor recorded: %+v", c)
	}
	if c := classifyNATSError(errors.New("bad subject")); c.Retryable {
		t.Fatalf("unknown errors are not retryable")
	}
}

func TestWrapTemporaryIfNeeded(t *testing.T) {
	err := wrapTemporaryIfNeeded("enqueue document", nats.ErrNoServers)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	plain := errors.New("bad subject")
	if got := wrapTemporaryIfNeeded("enqueue document", plain); got != plain {
		t.Fatalf("permanent error should pass through, got %v", got)
	}
}

func TestDecodeEvent(t *testing.T) {
	event, err := DecodeEvent([]byte(`{"document_id":"doc-1","new_status":"completed","stage":"audit_log","timestamp":"2026-03-02T12:00:00Z"}`))
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}
	if event.NewStatus != domain.StatusCompleted || event.Stage != domain.StageAuditLog {
		t.Fatalf("unexpected event: %+v", event)
	}
	if _, err := DecodeEvent([]byte(`{"new_status":"completed"}`)); err == nil {
		t.Fatalf("expected error for event without document id")
	}
}

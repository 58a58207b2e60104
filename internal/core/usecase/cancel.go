package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/docflow/internal/core/domain"
	"github.com/kirillkom/docflow/internal/core/ports"
)

// CancelDocumentUseCase marks a workflow as cancelled. The next Step fails
// the document; a stage result still in flight loses its version check and
// is discarded.
type CancelDocumentUseCase struct {
	store ports.StateStore
	queue ports.WorkQueue
	retry ConflictRetry
	now   func() time.Time
}

func NewCancelDocumentUseCase(store ports.StateStore, queue ports.WorkQueue, retry ConflictRetry) *CancelDocumentUseCase {
	return &CancelDocumentUseCase{
		store: store,
		queue: queue,
		retry: retry,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (uc *CancelDocumentUseCase) Cancel(ctx context.Context, documentID, actor, reason string) (*domain.DocumentState, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "cancel document", errors.New("actor is required"))
	}

	var saved *domain.DocumentState
	err := uc.retry.Do(ctx, "cancel document", func() error {
		state, err := uc.store.Get(ctx, documentID)
		if err != nil {
			return err
		}
		if state.Status.Terminal() {
			return domain.WrapError(domain.ErrTerminalState, "cancel document", errors.New(string(state.Status)))
		}
		if state.CancelRequested {
			saved = state
			return nil
		}

		now := uc.now()
		next := state.Clone()
		next.CancelRequested = true
		next.UpdatedAt = now
		next.AuditTrail = append(next.AuditTrail, domain.AuditEntry{
			Stage:        domain.StageCancellation,
			Timestamp:    now,
			InputDigest:  domain.Digest([]any{state.DocumentID, state.Version, state.Status}),
			OutputDigest: domain.Digest(reason),
			Decision:     "cancel_requested",
			Actor:        actor,
			Detail:       strings.TrimSpace(reason),
		})
		if err := uc.store.Save(ctx, next, state.Version); err != nil {
			return err
		}
		saved = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("cancel_requested", "document_id", documentID, "actor", actor, "status", saved.Status)
	if err := uc.queue.Enqueue(ctx, documentID); err != nil {
		slog.Warn("cancel_enqueue_failed", "document_id", documentID, "error", err)
	}
	return saved, nil
}

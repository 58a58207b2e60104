package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/docflow/internal/core/domain"
	"github.com/kirillkom/docflow/internal/core/ports"
	"github.com/kirillkom/docflow/internal/core/workflow"
)

// SweeperActor is the reviewer identity used for automatic escalations.
const SweeperActor = "system:sweeper"

// ReviewGate resolves suspended reviews and hands resumed documents back to
// the driving loop.
type ReviewGate struct {
	store       ports.StateStore
	coordinator *workflow.Coordinator
	queue       ports.WorkQueue
	notifier    ports.Notifier
	retry       ConflictRetry
	now         func() time.Time
}

func NewReviewGate(
	store ports.StateStore,
	coordinator *workflow.Coordinator,
	queue ports.WorkQueue,
	notifier ports.Notifier,
	retry ConflictRetry,
) *ReviewGate {
	return &ReviewGate{
		store:       store,
		coordinator: coordinator,
		queue:       queue,
		notifier:    notifier,
		retry:       retry,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (g *ReviewGate) Submit(ctx context.Context, documentID string, sub domain.ReviewSubmission) (*domain.DocumentState, error) {
	if err := validateSubmission(sub); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit review", err)
	}

	var saved *domain.DocumentState
	err := g.retry.Do(ctx, "submit review", func() error {
		state, err := g.store.Get(ctx, documentID)
		if err != nil {
			return err
		}
		if err := checkOpenReview(state, sub.ReviewID); err != nil {
			return err
		}
		next := state.Clone()
		g.apply(next, sub, g.now())
		if err := g.store.Save(ctx, next, state.Version); err != nil {
			return err
		}
		saved = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("review_submitted",
		"document_id", documentID,
		"decision", sub.Decision,
		"reviewer", sub.Reviewer,
		"status", saved.Status,
	)
	g.notifier.Notify(ctx, domain.NewTransitionEvent(saved, saved.UpdatedAt))
	if saved.Status == domain.StatusProcessing {
		if err := g.queue.Enqueue(ctx, documentID); err != nil {
			// The sweeper re-enqueues stalled documents.
			slog.Warn("review_enqueue_failed", "document_id", documentID, "error", err)
		}
	}
	return saved, nil
}

func validateSubmission(sub domain.ReviewSubmission) error {
	if !sub.Decision.Valid() {
		return fmt.Errorf("unknown decision %q", sub.Decision)
	}
	if strings.TrimSpace(sub.Reviewer) == "" {
		return errors.New("reviewer is required")
	}
	if sub.Decision == domain.DecisionModify && len(sub.Modifications) == 0 {
		return errors.New("modify requires at least one field")
	}
	return nil
}

// checkOpenReview reports ErrStaleReview unless state is suspended on an
// unresolved review matching reviewID.
func checkOpenReview(state *domain.DocumentState, reviewID string) error {
	stale := func(reason string) error {
		return domain.WrapError(domain.ErrStaleReview, "submit review", errors.New(reason))
	}
	switch {
	case state.Status != domain.StatusHumanReviewRequired:
		return stale(fmt.Sprintf("document is %s", state.Status))
	case state.HumanReview == nil:
		return stale("no open review")
	case state.HumanReview.Resolved():
		return stale(fmt.Sprintf("review %s already resolved", state.HumanReview.ReviewID))
	case reviewID != "" && reviewID != state.HumanReview.ReviewID:
		return stale(fmt.Sprintf("review %s is not the open review %s", reviewID, state.HumanReview.ReviewID))
	}
	return nil
}

func (g *ReviewGate) apply(state *domain.DocumentState, sub domain.ReviewSubmission, now time.Time) {
	review := state.HumanReview
	entry := domain.AuditEntry{
		Stage:        domain.StageHumanReview,
		Timestamp:    now,
		InputDigest:  domain.Digest(review),
		OutputDigest: domain.Digest(sub),
		Decision:     string(sub.Decision),
		Actor:        sub.Reviewer,
		Detail:       sub.Feedback,
	}
	state.UpdatedAt = now
	state.CurrentStage = domain.StageHumanReview

	if sub.Decision == domain.DecisionEscalate {
		review.Priority = domain.PriorityHigh
		review.DueDate = domain.DueDate(domain.PriorityHigh, now)
		review.Escalations++
		state.AuditTrail = append(state.AuditTrail, entry)
		return
	}

	decision := sub.Decision
	review.Decision = &decision
	review.Reviewer = sub.Reviewer
	review.Feedback = sub.Feedback
	review.Modifications = sub.Modifications.Clone()
	review.ResolvedAt = &now
	state.AuditTrail = append(state.AuditTrail, entry)

	switch sub.Decision {
	case domain.DecisionReject:
		state.Status = domain.StatusFailed
		state.FailureReason = workflow.RejectReason(review)
		state.NextStage = ""
		state.CompletedAt = &now
		return
	case domain.DecisionModify:
		applyModifications(state, sub.Modifications)
	}

	state.Status = domain.StatusProcessing
	state.NextStage = ""
	if d := g.coordinator.Decide(state); d.Kind == workflow.DecisionRunStage {
		state.NextStage = d.Stage
	} else if d.Kind == workflow.DecisionSuspend {
		state.NextStage = domain.StageHumanReview
	}
}

// applyModifications overwrites validated fields and drops the validation
// errors that referred to them.
func applyModifications(state *domain.DocumentState, mods domain.Fields) {
	if state.ValidatedData == nil {
		state.ValidatedData = state.ExtractedData.Clone()
	}
	for key, value := range mods {
		state.ValidatedData[key] = domain.CloneValue(value)
	}
	state.ValidatedData = state.ValidatedData.EnsureUniversal()

	kept := make([]domain.ValidationError, 0, len(state.ValidationErrors))
	for _, e := range state.ValidationErrors {
		resolved := false
		for key := range mods {
			if e.References(key) {
				resolved = true
				break
			}
		}
		if !resolved {
			kept = append(kept, e)
		}
	}
	state.ValidationErrors = kept
}

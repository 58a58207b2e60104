package workflow

import (
	"fmt"
	"time"

	"github.com/kirillkom/docflow/internal/core/domain"
)

type DecisionKind string

const (
	// DecisionTerminal means the document is finished; nothing to do.
	DecisionTerminal DecisionKind = "terminal"
	// DecisionAwaitReview means the document is suspended pending a reviewer.
	DecisionAwaitReview DecisionKind = "await_review"
	DecisionRunStage    DecisionKind = "run_stage"
	DecisionSuspend     DecisionKind = "suspend"
	DecisionComplete    DecisionKind = "complete"
	DecisionFail        DecisionKind = "fail"
)

type Decision struct {
	Kind   DecisionKind
	Stage  domain.Stage
	Status domain.DocumentStatus
	Reason string
	Review *domain.HumanReview
}

// Settles reports whether the decision is a status transition rather than stage work.
func (d Decision) Settles() bool {
	return d.Kind == DecisionSuspend || d.Kind == DecisionComplete || d.Kind == DecisionFail
}

// Coordinator is the workflow state machine. It never performs I/O.
type Coordinator struct {
	policy Policy
}

func NewCoordinator(policy Policy) *Coordinator {
	return &Coordinator{policy: policy.normalize()}
}

func (c *Coordinator) Policy() Policy {
	return c.policy
}

// Decide returns the next step for state. Calling it twice on the same state
// yields the same decision.
func (c *Coordinator) Decide(state *domain.DocumentState) Decision {
	if state.Status.Terminal() {
		return Decision{Kind: DecisionTerminal, Status: state.Status}
	}

	if state.CancelRequested {
		return Decision{Kind: DecisionFail, Status: domain.StatusFailed, Reason: cancelReason(state)}
	}
	if out := state.LastOutcome; out != nil && out.Signal == domain.SignalFatal {
		return Decision{
			Kind:   DecisionFail,
			Status: domain.StatusFailed,
			Stage:  out.Stage,
			Reason: fmt.Sprintf("%s failed: %s", out.Stage, out.Error),
		}
	}

	if state.Status == domain.StatusHumanReviewRequired {
		return Decision{Kind: DecisionAwaitReview, Status: state.Status, Stage: domain.StageHumanReview}
	}

	for _, stage := range domain.Pipeline {
		if !state.HasExecuted(stage) {
			return runStage(stage)
		}
	}

	if state.HasExecuted(domain.StageAuditLog) {
		return Decision{Kind: DecisionComplete, Status: domain.StatusCompleted, Stage: domain.StageAuditLog}
	}

	if review := state.HumanReview; review != nil {
		if !review.Resolved() {
			return Decision{Kind: DecisionAwaitReview, Status: domain.StatusHumanReviewRequired, Stage: domain.StageHumanReview}
		}
		switch *review.Decision {
		case domain.DecisionApprove:
			return runStage(domain.StageAuditLog)
		case domain.DecisionReject:
			return Decision{Kind: DecisionFail, Status: domain.StatusFailed, Stage: domain.StageHumanReview, Reason: RejectReason(review)}
		}
	}

	if assessment := c.Assess(state); assessment.Required {
		return Decision{
			Kind:   DecisionSuspend,
			Status: domain.StatusHumanReviewRequired,
			Stage:  domain.StageHumanReview,
			Reason: assessment.Reason(),
			Review: buildReview(state, assessment),
		}
	}

	return runStage(domain.StageAuditLog)
}

func runStage(stage domain.Stage) Decision {
	return Decision{Kind: DecisionRunStage, Status: domain.StatusProcessing, Stage: stage}
}

// Transition applies a settling decision to state. It returns false for
// decisions that carry no status change.
func Transition(state *domain.DocumentState, d Decision, now time.Time) bool {
	now = now.UTC()
	switch d.Kind {
	case DecisionFail:
		state.Status = domain.StatusFailed
		state.FailureReason = d.Reason
		state.NextStage = ""
		state.CompletedAt = &now
	case DecisionSuspend:
		if state.HumanReview != nil {
			state.ReviewHistory = append(state.ReviewHistory, *state.HumanReview)
		}
		review := *d.Review
		state.HumanReview = &review
		state.Status = domain.StatusHumanReviewRequired
		state.CurrentStage = domain.StageHumanReview
		state.NextStage = ""
	case DecisionComplete:
		state.Status = domain.StatusCompleted
		state.NextStage = ""
		state.CompletedAt = &now
	case DecisionRunStage:
		if state.Status == domain.StatusPending {
			state.Status = domain.StatusProcessing
		}
		state.NextStage = d.Stage
		return false
	default:
		return false
	}
	state.UpdatedAt = now
	return true
}

// Settle decides again after a mutation and folds any status transition into
// the same write, leaving next_stage consistent with status.
func (c *Coordinator) Settle(state *domain.DocumentState, now time.Time) Decision {
	d := c.Decide(state)
	Transition(state, d, now)
	return d
}

func cancelReason(state *domain.DocumentState) string {
	for i := len(state.AuditTrail) - 1; i >= 0; i-- {
		entry := state.AuditTrail[i]
		if entry.Stage == domain.StageCancellation && entry.Detail != "" {
			return "Cancelled: " + entry.Detail
		}
	}
	return "Cancelled"
}

// RejectReason is the failure reason recorded for a rejected review.
func RejectReason(review *domain.HumanReview) string {
	if review.Feedback == "" {
		return fmt.Sprintf("Rejected by reviewer %s", review.Reviewer)
	}
	return fmt.Sprintf("Rejected by reviewer %s: %s", review.Reviewer, review.Feedback)
}

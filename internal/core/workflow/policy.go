package workflow

import (
	"fmt"

	"github.com/kirillkom/docflow/internal/core/domain"
)

const DefaultConfidenceThreshold = 0.7

// Policy holds the routing knobs consumed by the review predicate.
type Policy struct {
	// ConfidenceThreshold is the minimum classification/extraction confidence
	// that passes without review.
	ConfidenceThreshold float64
	// ReviewActions are rule actions that require human review when triggered.
	ReviewActions []string
	// ReviewSeverity is the lowest anomaly severity that requires human review.
	ReviewSeverity domain.Severity
}

func DefaultPolicy() Policy {
	return Policy{
		ConfidenceThreshold: DefaultConfidenceThreshold,
		ReviewActions:       []string{domain.RuleActionFlagForReview},
		ReviewSeverity:      domain.SeverityMedium,
	}
}

func (p Policy) normalize() Policy {
	out := p
	def := DefaultPolicy()
	if out.ConfidenceThreshold <= 0 || out.ConfidenceThreshold > 1 {
		out.ConfidenceThreshold = def.ConfidenceThreshold
	}
	if len(out.ReviewActions) == 0 {
		out.ReviewActions = def.ReviewActions
	}
	if out.ReviewSeverity.Rank() == 0 {
		out.ReviewSeverity = def.ReviewSeverity
	}
	return out
}

func (p Policy) Validate() error {
	if p.ConfidenceThreshold < 0 || p.ConfidenceThreshold > 1 {
		return domain.WrapError(domain.ErrInvalidInput, "validate policy", fmt.Errorf("confidence threshold %.2f out of [0,1]", p.ConfidenceThreshold))
	}
	if p.ReviewSeverity != "" && p.ReviewSeverity.Rank() == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "validate policy", fmt.Errorf("unknown review severity %q", p.ReviewSeverity))
	}
	return nil
}

func (p Policy) isReviewAction(action string) bool {
	for _, a := range p.ReviewActions {
		if a == action {
			return true
		}
	}
	return false
}

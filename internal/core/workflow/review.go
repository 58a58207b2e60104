package workflow

import (
	"fmt"
	"strings"

	"github.com/kirillkom/docflow/internal/core/domain"
)

// Assessment is the evaluated review predicate for one state.
type Assessment struct {
	Required        bool
	Priority        domain.Priority
	Triggers        []string
	RequiredActions []string
}

func (a Assessment) Reason() string {
	return strings.Join(a.Triggers, "; ")
}

// Assess evaluates the review predicate against state.
func (c *Coordinator) Assess(state *domain.DocumentState) Assessment {
	p := c.policy
	var (
		triggers       []string
		highIssue      bool
		confidenceGap  bool
		lowExtraction  bool
		reviewRules    int
		severeAnomaly  int
		needsApproval  bool
		needsExecutive bool
	)

	if state.ClassificationConfidence < p.ConfidenceThreshold {
		triggers = append(triggers, fmt.Sprintf("Low classification confidence (%.2f)", state.ClassificationConfidence))
		confidenceGap = true
	}
	if conf, ok := state.ConfidenceScores[domain.StageExtraction]; ok && conf < p.ConfidenceThreshold {
		triggers = append(triggers, fmt.Sprintf("Low extraction confidence (%.2f)", conf))
		confidenceGap = true
		lowExtraction = true
	}
	if n := len(state.ValidationErrors); n > 0 {
		triggers = append(triggers, fmt.Sprintf("Data validation failed (%d %s)", n, plural(n, "error", "errors")))
		highIssue = true
	}
	for _, rule := range state.TriggeredRules {
		switch rule.Action {
		case domain.RuleActionRequireApproval:
			needsApproval = true
		case domain.RuleActionRequireExecutiveApproval:
			needsExecutive = true
		}
		if !p.isReviewAction(rule.Action) {
			continue
		}
		reviewRules++
		if rule.Priority == 1 {
			highIssue = true
		}
	}
	if reviewRules > 0 {
		triggers = append(triggers, fmt.Sprintf("Business rules require review (%d %s triggered)", reviewRules, plural(reviewRules, "rule", "rules")))
	}
	for _, anomaly := range state.Anomalies {
		if anomaly.Severity.AtLeast(p.ReviewSeverity) {
			severeAnomaly++
		}
		if anomaly.Severity == domain.SeverityHigh {
			highIssue = true
		}
	}
	if severeAnomaly > 0 {
		triggers = append(triggers, fmt.Sprintf("Anomalies detected (%d at %s severity or above)", severeAnomaly, p.ReviewSeverity))
	}

	out := Assessment{
		Required: len(triggers) > 0,
		Triggers: triggers,
	}
	if !out.Required {
		return out
	}

	switch {
	case highIssue:
		out.Priority = domain.PriorityHigh
	case confidenceGap:
		out.Priority = domain.PriorityMedium
	default:
		out.Priority = domain.PriorityLow
	}

	out.RequiredActions = []string{domain.ActionVerifyExtractedData}
	if len(state.ValidationErrors) > 0 {
		out.RequiredActions = append(out.RequiredActions, domain.ActionCorrectValidationErrors)
	}
	if needsApproval {
		out.RequiredActions = append(out.RequiredActions, domain.ActionApproveDocument)
	}
	if needsExecutive {
		out.RequiredActions = append(out.RequiredActions, domain.ActionEscalateExecutiveApproval)
	}
	if severeAnomaly > 0 {
		out.RequiredActions = append(out.RequiredActions, domain.ActionReviewAnomalies)
	}
	if lowExtraction {
		out.RequiredActions = append(out.RequiredActions, domain.ActionVerifyLowConfidenceExtracts)
	}
	return out
}

// buildReview derives the review request from state alone so that repeated
// decisions on the same state are identical.
func buildReview(state *domain.DocumentState, a Assessment) *domain.HumanReview {
	round := len(state.ReviewHistory) + 1
	if state.HumanReview != nil {
		round++
	}
	return &domain.HumanReview{
		ReviewID:        fmt.Sprintf("review_%s_%d", state.DocumentID, round),
		Round:           round,
		Reason:          a.Reason(),
		Priority:        a.Priority,
		RequiredActions: a.RequiredActions,
		DueDate:         domain.DueDate(a.Priority, state.UpdatedAt),
		RequestedAt:     state.UpdatedAt.UTC(),
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

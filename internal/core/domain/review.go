package domain

import (
	"strings"
	"time"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

type ReviewDecision string

const (
	DecisionApprove  ReviewDecision = "approve"
	DecisionReject   ReviewDecision = "reject"
	DecisionModify   ReviewDecision = "modify"
	DecisionEscalate ReviewDecision = "escalate"
)

func (d ReviewDecision) Valid() bool {
	switch d {
	case DecisionApprove, DecisionReject, DecisionModify, DecisionEscalate:
		return true
	default:
		return false
	}
}

// Required review actions.
const (
	ActionVerifyExtractedData         = "verify_extracted_data"
	ActionCorrectValidationErrors     = "correct_validation_errors"
	ActionApproveDocument             = "approve_document"
	ActionEscalateExecutiveApproval   = "escalate_for_executive_approval"
	ActionReviewAnomalies             = "review_anomalies"
	ActionVerifyLowConfidenceExtracts = "verify_low_confidence_extractions"
)

// HumanReview is the open or resolved review request of one round.
type HumanReview struct {
	ReviewID        string          `json:"review_id"`
	Round           int             `json:"round"`
	Reason          string          `json:"reason"`
	Priority        Priority        `json:"priority"`
	RequiredActions []string        `json:"required_actions"`
	DueDate         time.Time       `json:"due_date"`
	Decision        *ReviewDecision `json:"decision"`
	Reviewer        string          `json:"reviewer,omitempty"`
	Feedback        string          `json:"feedback,omitempty"`
	Modifications   Fields          `json:"modifications,omitempty"`
	Escalations     int             `json:"escalations,omitempty"`
	RequestedAt     time.Time       `json:"requested_at"`
	ResolvedAt      *time.Time      `json:"resolved_at,omitempty"`
}

func (r HumanReview) Resolved() bool {
	return r.Decision != nil
}

func (r HumanReview) Overdue(now time.Time) bool {
	return !r.Resolved() && !r.DueDate.IsZero() && now.After(r.DueDate)
}

func (r HumanReview) clone() HumanReview {
	out := r
	out.RequiredActions = append([]string(nil), r.RequiredActions...)
	if r.Decision != nil {
		d := *r.Decision
		out.Decision = &d
	}
	out.Modifications = r.Modifications.Clone()
	if r.ResolvedAt != nil {
		t := *r.ResolvedAt
		out.ResolvedAt = &t
	}
	return out
}

// ReviewSLA maps review priority to the time allowed for a decision.
var ReviewSLA = map[Priority]time.Duration{
	PriorityHigh:   8 * time.Hour,
	PriorityMedium: 24 * time.Hour,
	PriorityLow:    72 * time.Hour,
}

func DueDate(priority Priority, from time.Time) time.Time {
	sla, ok := ReviewSLA[priority]
	if !ok {
		sla = ReviewSLA[PriorityMedium]
	}
	return from.UTC().Add(sla)
}

// ReviewSubmission is an external reviewer decision.
type ReviewSubmission struct {
	ReviewID      string         `json:"review_id,omitempty"`
	Decision      ReviewDecision `json:"decision"`
	Reviewer      string         `json:"reviewer"`
	Feedback      string         `json:"feedback,omitempty"`
	Modifications Fields         `json:"modifications,omitempty"`
}

// ValidationError is one failed check. Field names the key it concerns, if any.
type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e ValidationError) String() string {
	return e.Message
}

// References reports whether the error concerns key. The message is only
// searched for errors that carry no field.
func (e ValidationError) References(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		return false
	}
	if e.Field != "" {
		return strings.EqualFold(e.Field, key)
	}
	msg := strings.ToLower(e.Message)
	lowerKey := strings.ToLower(key)
	return strings.Contains(msg, lowerKey) || strings.Contains(msg, strings.ReplaceAll(lowerKey, "_", " "))
}

func ValidationMessages(errs []ValidationError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Message)
	}
	return out
}

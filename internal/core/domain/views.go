package domain

import "time"

// StatusView is the read-only projection of a document's progress. Data fields
// are filled only once the document is terminal.
type StatusView struct {
	DocumentID       string            `json:"document_id"`
	WorkflowID       string            `json:"workflow_id"`
	Status           DocumentStatus    `json:"status"`
	CurrentStage     Stage             `json:"current_stage,omitempty"`
	NextStage        Stage             `json:"next_stage,omitempty"`
	DocumentType     string            `json:"document_type,omitempty"`
	ConfidenceScores map[Stage]float64 `json:"confidence_scores"`
	HumanReview      *HumanReview      `json:"human_review,omitempty"`
	Audit            []AuditLine       `json:"audit_trail"`
	CancelRequested  bool              `json:"cancel_requested,omitempty"`
	FailureReason    string            `json:"failure_reason,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`

	ExtractedData *Fields `json:"extracted_data,omitempty"`
	ValidatedData *Fields `json:"validated_data,omitempty"`
}

func NewStatusView(s *DocumentState) *StatusView {
	view := &StatusView{
		DocumentID:       s.DocumentID,
		WorkflowID:       s.WorkflowID,
		Status:           s.Status,
		CurrentStage:     s.CurrentStage,
		NextStage:        s.NextStage,
		DocumentType:     s.DocumentType,
		ConfidenceScores: s.ConfidenceScores,
		HumanReview:      s.HumanReview,
		Audit:            SummarizeAudit(s.AuditTrail),
		CancelRequested:  s.CancelRequested,
		FailureReason:    s.FailureReason,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
		CompletedAt:      s.CompletedAt,
	}
	if view.ConfidenceScores == nil {
		view.ConfidenceScores = map[Stage]float64{}
	}
	if s.Status.Terminal() {
		extracted := s.ExtractedData.Clone()
		validated := s.ValidatedData.Clone()
		view.ExtractedData = &extracted
		view.ValidatedData = &validated
	}
	return view
}

// ResultView is the final outcome of a terminal document.
type ResultView struct {
	DocumentID       string            `json:"document_id"`
	Status           DocumentStatus    `json:"status"`
	DocumentType     string            `json:"document_type,omitempty"`
	ExtractedData    Fields            `json:"extracted_data"`
	ValidatedData    Fields            `json:"validated_data"`
	ValidationErrors []string          `json:"validation_errors"`
	ConfidenceScores map[Stage]float64 `json:"confidence_scores"`
	TriggeredRules   []RuleOutcome     `json:"triggered_rules"`
	Anomalies        []Anomaly         `json:"anomalies"`
	ReviewHistory    []HumanReview     `json:"review_history,omitempty"`
	AuditSummary     *AuditSummary     `json:"audit_summary,omitempty"`
	FailureReason    string            `json:"failure_reason,omitempty"`
}

func NewResultView(s *DocumentState) *ResultView {
	return &ResultView{
		DocumentID:       s.DocumentID,
		Status:           s.Status,
		DocumentType:     s.DocumentType,
		ExtractedData:    s.ExtractedData.Clone(),
		ValidatedData:    s.ValidatedData.Clone(),
		ValidationErrors: ValidationMessages(s.ValidationErrors),
		ConfidenceScores: s.ConfidenceScores,
		TriggeredRules:   s.TriggeredRules,
		Anomalies:        s.Anomalies,
		ReviewHistory:    s.ReviewHistory,
		AuditSummary:     s.AuditSummary,
		FailureReason:    s.FailureReason,
	}
}

// ReviewContext is everything a reviewer needs to decide.
type ReviewContext struct {
	DocumentID               string            `json:"document_id"`
	Filename                 string            `json:"filename"`
	DocumentType             string            `json:"document_type"`
	ClassificationConfidence float64           `json:"classification_confidence"`
	OverallConfidence        float64           `json:"overall_confidence"`
	Review                   HumanReview       `json:"review"`
	ExtractedData            Fields            `json:"extracted_data"`
	ValidatedData            Fields            `json:"validated_data"`
	ValidationErrors         []ValidationError `json:"validation_errors"`
	TriggeredRules           []RuleOutcome     `json:"triggered_rules"`
	Anomalies                []Anomaly         `json:"anomalies"`
	ConfidenceScores         map[Stage]float64 `json:"confidence_scores"`
	Recommendations          []string          `json:"recommendations"`
}

// lowExtractionConfidence is the extraction score below which reviewers are
// told to double-check extracted values.
const lowExtractionConfidence = 0.7

var ruleRecommendations = map[string]string{
	RuleActionFlagForReview:            "Document requires manual review due to high value or risk",
	RuleActionRequireApproval:          "Document requires approval before processing",
	RuleActionRequireExecutiveApproval: "Document requires executive-level approval",
}

// NewReviewContext projects a suspended document for its reviewer. s must
// carry an open review.
func NewReviewContext(s *DocumentState) *ReviewContext {
	return &ReviewContext{
		DocumentID:               s.DocumentID,
		Filename:                 s.Source.Filename,
		DocumentType:             s.DocumentType,
		ClassificationConfidence: s.ClassificationConfidence,
		OverallConfidence:        OverallConfidence(s.ConfidenceScores),
		Review:                   *s.HumanReview,
		ExtractedData:            s.ExtractedData.Clone(),
		ValidatedData:            s.ValidatedData.Clone(),
		ValidationErrors:         s.ValidationErrors,
		TriggeredRules:           s.TriggeredRules,
		Anomalies:                s.Anomalies,
		ConfidenceScores:         s.ConfidenceScores,
		Recommendations:          ReviewerRecommendations(s),
	}
}

// OverallConfidence is the mean of the recorded per-stage scores, or 0 when
// no stage has scored yet.
func OverallConfidence(scores map[Stage]float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range scores {
		sum += v
	}
	return sum / float64(len(scores))
}

// ReviewerRecommendations lists what a reviewer should look at first, in a
// stable order without duplicates.
func ReviewerRecommendations(s *DocumentState) []string {
	out := []string{}
	seen := make(map[string]bool)
	add := func(text string) {
		if text != "" && !seen[text] {
			seen[text] = true
			out = append(out, text)
		}
	}

	if score, ok := s.ConfidenceScores[StageExtraction]; ok && score < lowExtractionConfidence {
		add("Pay special attention to extracted data accuracy due to low confidence")
	}
	if len(s.ValidationErrors) > 0 {
		add("Review and correct validation errors before approval")
	}
	for _, a := range s.Anomalies {
		if a.Severity.AtLeast(SeverityHigh) {
			add("Investigate high-severity anomalies before proceeding")
			break
		}
	}
	for _, r := range s.TriggeredRules {
		add(ruleRecommendations[r.Action])
	}
	return out
}

package domain

import (
	"fmt"
	"time"
)

type DocumentStatus string

const (
	StatusPending             DocumentStatus = "pending"
	StatusProcessing          DocumentStatus = "processing"
	StatusHumanReviewRequired DocumentStatus = "human_review_required"
	StatusCompleted           DocumentStatus = "completed"
	StatusFailed              DocumentStatus = "failed"
)

func (s DocumentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusHumanReviewRequired, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

type Stage string

const (
	StageIngestion        Stage = "ingestion"
	StageClassification   Stage = "classification"
	StageExtraction       Stage = "extraction"
	StageValidation       Stage = "validation"
	StageRuleEvaluation   Stage = "rule_evaluation"
	StageAnomalyDetection Stage = "anomaly_detection"
	StageHumanReview      Stage = "human_review"
	StageAuditLog         Stage = "audit_log"

	// StageCancellation marks the audit entry written by an external cancel request.
	StageCancellation Stage = "cancellation"
)

// Pipeline is the fixed order of automated analysis stages that precede review.
var Pipeline = []Stage{
	StageIngestion,
	StageClassification,
	StageExtraction,
	StageValidation,
	StageRuleEvaluation,
	StageAnomalyDetection,
}

// ExecutableStages lists every stage that has an executor.
var ExecutableStages = append(append([]Stage{}, Pipeline...), StageAuditLog)

// SourceInfo describes the original upload.
type SourceInfo struct {
	Filename   string `json:"filename"`
	MimeType   string `json:"mime_type,omitempty"`
	FileType   string `json:"file_type"`
	SizeBytes  int64  `json:"size_bytes"`
	StorageKey string `json:"storage_key"`
}

// ContentRef points at decoded document text in object storage.
type ContentRef struct {
	Key      string `json:"key"`
	FileType string `json:"file_type"`
	Chars    int    `json:"chars"`
	Pages    int    `json:"pages,omitempty"`
	// Digest is the SHA-256 of the decoded text.
	Digest string `json:"digest,omitempty"`
}

type StageOutcome struct {
	Stage  Stage  `json:"stage"`
	Signal Signal `json:"signal"`
	Error  string `json:"error,omitempty"`
}

// DocumentState is the durable processing record of one document.
type DocumentState struct {
	DocumentID string `json:"document_id"`
	WorkflowID string `json:"workflow_id"`
	Version    int64  `json:"version"`

	Source     SourceInfo  `json:"source"`
	RawContent *ContentRef `json:"raw_content,omitempty"`

	DocumentType             string  `json:"document_type,omitempty"`
	ClassificationConfidence float64 `json:"classification_confidence"`
	ClassificationReasoning  string  `json:"classification_reasoning,omitempty"`

	ExtractedData    Fields            `json:"extracted_data,omitempty"`
	ValidatedData    Fields            `json:"validated_data,omitempty"`
	ValidationErrors []ValidationError `json:"validation_errors"`
	ConfidenceScores map[Stage]float64 `json:"confidence_scores"`
	TriggeredRules   []RuleOutcome     `json:"triggered_rules"`
	Anomalies        []Anomaly         `json:"anomalies"`

	HumanReview   *HumanReview  `json:"human_review,omitempty"`
	ReviewHistory []HumanReview `json:"review_history,omitempty"`

	Status       DocumentStatus `json:"status"`
	CurrentStage Stage          `json:"current_stage,omitempty"`
	NextStage    Stage          `json:"next_stage,omitempty"`

	AuditTrail   []AuditEntry  `json:"audit_trail"`
	AuditSummary *AuditSummary `json:"audit_summary,omitempty"`
	LastOutcome  *StageOutcome `json:"last_outcome,omitempty"`

	CancelRequested bool   `json:"cancel_requested,omitempty"`
	FailureReason   string `json:"failure_reason,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewDocumentState builds a pending record for a freshly stored upload.
func NewDocumentState(documentID string, source SourceInfo, now time.Time) *DocumentState {
	now = now.UTC()
	return &DocumentState{
		DocumentID:       documentID,
		WorkflowID:       fmt.Sprintf("workflow_%s_%d", documentID, now.Unix()),
		Source:           source,
		ValidationErrors: []ValidationError{},
		ConfidenceScores: map[Stage]float64{},
		TriggeredRules:   []RuleOutcome{},
		Anomalies:        []Anomaly{},
		Status:           StatusPending,
		NextStage:        StageIngestion,
		AuditTrail:       []AuditEntry{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// HasExecuted reports whether the audit trail holds an entry for stage.
func (s *DocumentState) HasExecuted(stage Stage) bool {
	return s.StageCount(stage) > 0
}

func (s *DocumentState) StageCount(stage Stage) int {
	n := 0
	for _, entry := range s.AuditTrail {
		if entry.Stage == stage {
			n++
		}
	}
	return n
}

// Value looks a field up in validated data first and extracted data second.
func (s *DocumentState) Value(field string) (any, bool) {
	if v, ok := s.ValidatedData[field]; ok && v != nil {
		return v, true
	}
	if v, ok := s.ExtractedData[field]; ok && v != nil {
		return v, true
	}
	return nil, false
}

// Data returns the validated view when present, falling back to extracted data.
func (s *DocumentState) Data() Fields {
	if len(s.ValidatedData) > 0 {
		return s.ValidatedData
	}
	return s.ExtractedData
}

func (s *DocumentState) ReviewRound() int {
	n := len(s.ReviewHistory)
	if s.HumanReview != nil {
		n++
	}
	return n
}

// Clone returns a deep copy safe to mutate independently.
func (s *DocumentState) Clone() *DocumentState {
	if s == nil {
		return nil
	}
	out := *s
	if s.RawContent != nil {
		ref := *s.RawContent
		out.RawContent = &ref
	}
	out.ExtractedData = s.ExtractedData.Clone()
	out.ValidatedData = s.ValidatedData.Clone()
	out.ValidationErrors = append([]ValidationError{}, s.ValidationErrors...)
	out.ConfidenceScores = make(map[Stage]float64, len(s.ConfidenceScores))
	for k, v := range s.ConfidenceScores {
		out.ConfidenceScores[k] = v
	}
	out.TriggeredRules = append([]RuleOutcome{}, s.TriggeredRules...)
	out.Anomalies = make([]Anomaly, len(s.Anomalies))
	for i, a := range s.Anomalies {
		a.Fields = append([]string(nil), a.Fields...)
		out.Anomalies[i] = a
	}
	if s.HumanReview != nil {
		review := s.HumanReview.clone()
		out.HumanReview = &review
	}
	if s.ReviewHistory != nil {
		out.ReviewHistory = make([]HumanReview, len(s.ReviewHistory))
		for i, r := range s.ReviewHistory {
			out.ReviewHistory[i] = r.clone()
		}
	}
	out.AuditTrail = append([]AuditEntry{}, s.AuditTrail...)
	if s.AuditSummary != nil {
		summary := *s.AuditSummary
		out.AuditSummary = &summary
	}
	if s.LastOutcome != nil {
		outcome := *s.LastOutcome
		out.LastOutcome = &outcome
	}
	if s.CompletedAt != nil {
		completed := *s.CompletedAt
		out.CompletedAt = &completed
	}
	return &out
}

// DocumentSummary is a compact listing row.
type DocumentSummary struct {
	DocumentID   string         `json:"document_id"`
	WorkflowID   string         `json:"workflow_id"`
	Filename     string         `json:"filename"`
	DocumentType string         `json:"document_type,omitempty"`
	Status       DocumentStatus `json:"status"`
	Review       *HumanReview   `json:"human_review,omitempty"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (s *DocumentState) Summary() DocumentSummary {
	return DocumentSummary{
		DocumentID:   s.DocumentID,
		WorkflowID:   s.WorkflowID,
		Filename:     s.Source.Filename,
		DocumentType: s.DocumentType,
		Status:       s.Status,
		Review:       s.HumanReview,
		UpdatedAt:    s.UpdatedAt,
	}
}

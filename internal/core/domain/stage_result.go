package domain

import (
	"fmt"
	"time"
)

// Signal is the outcome class of a stage execution.
type Signal string

const (
	SignalOK       Signal = "ok"
	SignalDegraded Signal = "degraded"
	SignalFatal    Signal = "fatal"
)

// Classification is the output of the classification capability.
type Classification struct {
	DocumentType string  `json:"document_type"`
	Confidence   float64 `json:"confidence"`
	Reasoning    string  `json:"reasoning,omitempty"`
}

// Extraction is the output of the extraction capability.
type Extraction struct {
	Fields     Fields  `json:"fields"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method,omitempty"`
}

// StageResult is what a stage executor hands back for persistence. Only the
// members owned by the stage are set.
type StageResult struct {
	Stage         Stage   `json:"stage"`
	Signal        Signal  `json:"signal"`
	Confidence    float64 `json:"confidence"`
	HasConfidence bool    `json:"has_confidence"`
	Detail        string  `json:"detail,omitempty"`
	Error         string  `json:"error,omitempty"`

	RawContent       *ContentRef       `json:"raw_content,omitempty"`
	Classification   *Classification   `json:"classification,omitempty"`
	Extracted        Fields            `json:"extracted,omitempty"`
	Validated        Fields            `json:"validated,omitempty"`
	ValidationErrors []ValidationError `json:"validation_errors,omitempty"`
	TriggeredRules   []RuleOutcome     `json:"triggered_rules,omitempty"`
	Anomalies        []Anomaly         `json:"anomalies,omitempty"`
	AuditSummary     *AuditSummary     `json:"audit_summary,omitempty"`
}

func FatalResult(stage Stage, err error) StageResult {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return StageResult{Stage: stage, Signal: SignalFatal, Error: msg}
}

func (r StageResult) WithConfidence(c float64) StageResult {
	r.Confidence = ClampConfidence(c)
	r.HasConfidence = true
	return r
}

func ClampConfidence(c float64) float64 {
	switch {
	case c != c:
		return 0
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}

// StageInputDigest hashes the part of the state a stage reads.
func StageInputDigest(state *DocumentState, stage Stage) string {
	switch stage {
	case StageIngestion:
		return Digest(state.Source)
	case StageClassification:
		return Digest(state.RawContent)
	case StageExtraction:
		return Digest([]any{state.RawContent, state.DocumentType})
	case StageValidation:
		return Digest([]any{state.DocumentType, state.ExtractedData})
	case StageRuleEvaluation, StageAnomalyDetection:
		return Digest([]any{state.DocumentType, state.ValidatedData, state.ExtractedData, state.ConfidenceScores})
	default:
		return Digest([]any{state.DocumentID, state.Version, state.Status})
	}
}

// ApplyStageResult folds a stage result into state and appends its audit entry.
func ApplyStageResult(state *DocumentState, result StageResult, inputDigest string, duration time.Duration, now time.Time) {
	now = now.UTC()
	entry := AuditEntry{
		Stage:        result.Stage,
		Timestamp:    now,
		InputDigest:  inputDigest,
		OutputDigest: Digest(result),
		DurationMS:   duration.Milliseconds(),
	}
	state.LastOutcome = &StageOutcome{Stage: result.Stage, Signal: result.Signal, Error: result.Error}
	state.CurrentStage = result.Stage
	state.UpdatedAt = now

	if result.Signal == SignalFatal {
		entry.Decision = "fatal"
		entry.Detail = result.Error
		state.AuditTrail = append(state.AuditTrail, entry)
		return
	}

	if result.RawContent != nil {
		ref := *result.RawContent
		state.RawContent = &ref
	}
	if result.Classification != nil {
		state.DocumentType = result.Classification.DocumentType
		state.ClassificationConfidence = ClampConfidence(result.Classification.Confidence)
		state.ClassificationReasoning = result.Classification.Reasoning
	}
	if result.Extracted != nil {
		state.ExtractedData = result.Extracted.Clone().EnsureUniversal()
	}
	if result.Validated != nil {
		state.ValidatedData = result.Validated.Clone().EnsureUniversal()
		state.ValidationErrors = append([]ValidationError{}, result.ValidationErrors...)
	}
	if result.Stage == StageRuleEvaluation {
		state.TriggeredRules = append([]RuleOutcome{}, result.TriggeredRules...)
	}
	if result.Stage == StageAnomalyDetection {
		state.Anomalies = append([]Anomaly{}, result.Anomalies...)
	}
	if result.AuditSummary != nil {
		summary := *result.AuditSummary
		state.AuditSummary = &summary
	}
	if result.HasConfidence {
		if state.ConfidenceScores == nil {
			state.ConfidenceScores = map[Stage]float64{}
		}
		state.ConfidenceScores[result.Stage] = result.Confidence
	}

	entry.Decision = string(result.Signal)
	entry.Detail = result.Detail
	if result.Signal == SignalDegraded && result.Detail == "" {
		entry.Detail = fmt.Sprintf("%s completed with degraded output", result.Stage)
	}
	state.AuditTrail = append(state.AuditTrail, entry)
}

package stages

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/docflow/internal/core/domain"
	"github.com/kirillkom/docflow/internal/core/ports"
)

type AuditLog struct {
	storage  ports.ObjectStorage
	recorder ports.HistoryRecorder
	now      Clock
}

// NewAuditLog builds the final stage. recorder may be nil.
func NewAuditLog(storage ports.ObjectStorage, recorder ports.HistoryRecorder, clock Clock) *AuditLog {
	return &AuditLog{storage: storage, recorder: recorder, now: clockOrDefault(clock)}
}

func (s *AuditLog) Stage() domain.Stage { return domain.StageAuditLog }

func (s *AuditLog) Execute(ctx context.Context, state *domain.DocumentState) (domain.StageResult, error) {
	summary := Summarize(state, s.now())
	var problems []string

	if s.recorder != nil {
		if err := s.recorder.Record(ctx, state); err != nil {
			if ctx.Err() != nil {
				return domain.StageResult{}, fmt.Errorf("record history: %w", err)
			}
			problems = append(problems, "record history: "+err.Error())
		} else {
			summary.HistoryRecorded = true
		}
	}

	key := ArchiveKey(state)
	archived := state.Clone()
	archived.AuditSummary = &summary
	raw, err := json.MarshalIndent(archived, "", "  ")
	if err == nil {
		err = s.storage.Save(ctx, key, bytes.NewReader(raw))
	}
	if err != nil {
		if ctx.Err() != nil {
			return domain.StageResult{}, fmt.Errorf("archive state: %w", err)
		}
		problems = append(problems, "archive state: "+err.Error())
	} else {
		summary.ArchiveKey = key
	}

	result := domain.StageResult{
		Stage:        s.Stage(),
		Signal:       domain.SignalOK,
		AuditSummary: &summary,
		Detail:       fmt.Sprintf("final decision %s after %d stage(s)", summary.FinalDecision, summary.StageCount),
	}
	if len(problems) > 0 {
		result.Signal = domain.SignalDegraded
		result.Error = strings.Join(problems, "; ")
	}
	return result, nil
}

// Summarize builds the audit summary of a document that is about to complete.
func Summarize(state *domain.DocumentState, now time.Time) domain.AuditSummary {
	executed := 0
	for _, stage := range domain.Pipeline {
		if state.HasExecuted(stage) {
			executed++
		}
	}
	summary := domain.AuditSummary{
		StageCount:           executed + 1,
		DurationSeconds:      now.Sub(state.CreatedAt).Seconds(),
		FieldsExtracted:      len(state.ExtractedData),
		NonNullFields:        state.Data().NonNullCount(),
		ValidationErrorCount: len(state.ValidationErrors),
		RulesTriggered:       len(state.TriggeredRules),
		Anomalies:            len(state.Anomalies),
		ReviewRounds:         state.ReviewRound(),
		FinalDecision:        "auto_approved",
	}
	if len(state.ConfidenceScores) > 0 {
		sum := 0.0
		for _, c := range state.ConfidenceScores {
			sum += c
		}
		summary.AverageConfidence = sum / float64(len(state.ConfidenceScores))
	}
	if r := state.HumanReview; r != nil && r.Decision != nil {
		summary.FinalDecision = string(*r.Decision)
	}
	return summary
}

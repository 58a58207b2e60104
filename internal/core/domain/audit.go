package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// AuditEntry is one append-only record of a stage run or external decision.
type AuditEntry struct {
	Stage        Stage     `json:"stage"`
	Timestamp    time.Time `json:"timestamp"`
	InputDigest  string    `json:"input_digest"`
	OutputDigest string    `json:"output_digest"`
	Decision     string    `json:"decision"`
	Actor        string    `json:"actor,omitempty"`
	Detail       string    `json:"detail,omitempty"`
	DurationMS   int64     `json:"duration_ms,omitempty"`
}

// AuditSummary is produced by the audit log stage.
type AuditSummary struct {
	StageCount           int     `json:"stage_count"`
	DurationSeconds      float64 `json:"duration_seconds"`
	AverageConfidence    float64 `json:"average_confidence"`
	FieldsExtracted      int     `json:"fields_extracted"`
	NonNullFields        int     `json:"non_null_fields"`
	ValidationErrorCount int     `json:"validation_error_count"`
	RulesTriggered       int     `json:"rules_triggered"`
	Anomalies            int     `json:"anomalies"`
	ReviewRounds         int     `json:"review_rounds"`
	FinalDecision        string  `json:"final_decision,omitempty"`
	ArchiveKey           string  `json:"archive_key,omitempty"`
	HistoryRecorded      bool    `json:"history_recorded"`
}

// Digest returns the hex SHA-256 of the JSON encoding of v.
func Digest(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		raw = []byte(err.Error())
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// AuditLine is the external projection of an audit entry.
type AuditLine struct {
	Stage     Stage     `json:"stage"`
	Decision  string    `json:"decision"`
	Actor     string    `json:"actor,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func SummarizeAudit(trail []AuditEntry) []AuditLine {
	out := make([]AuditLine, 0, len(trail))
	for _, e := range trail {
		out = append(out, AuditLine{Stage: e.Stage, Decision: e.Decision, Actor: e.Actor, Timestamp: e.Timestamp})
	}
	return out
}

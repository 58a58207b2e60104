package domain

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	default:
		return 0
	}
}

func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}

type Anomaly struct {
	Kind        string   `json:"kind"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	Fields      []string `json:"fields,omitempty"`
}

// FieldStats summarises prior observations of one numeric field.
type FieldStats struct {
	Count  int64   `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
}

// HistoryQuery asks the history collaborator for the statistics relevant to one document.
type HistoryQuery struct {
	DocumentType string
	Fields       []string
	Fingerprint  string
	DocumentID   string
}

// HistorySnapshot is a read-only, possibly stale sample of prior documents.
type HistorySnapshot struct {
	DocumentType string                `json:"document_type"`
	Fields       map[string]FieldStats `json:"fields"`
	// DuplicateOf is the id of another document sharing the same fingerprint.
	DuplicateOf string `json:"duplicate_of,omitempty"`
}

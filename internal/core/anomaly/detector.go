package anomaly

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/kirillkom/docflow/internal/core/domain"
	"github.com/kirillkom/docflow/internal/core/typed"
)

// Range bounds the plausible values of one numeric field.
type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

type Config struct {
	// MinSamples is the history size below which distribution checks are skipped.
	MinSamples int64 `yaml:"min_samples" json:"min_samples"`
	// Ranges maps document type to field to its plausible range.
	Ranges map[string]map[string]Range `yaml:"ranges" json:"ranges"`
}

func DefaultConfig() Config {
	return Config{
		MinSamples: 10,
		Ranges: map[string]map[string]Range{
			"invoice": {
				"total_amount": {Min: 0, Max: 100000},
				"tax_amount":   {Min: 0, Max: 10000},
				"subtotal":     {Min: 0, Max: 90000},
			},
			"contract": {
				"contract_value": {Min: 0, Max: 1e7},
			},
			"financial_statement": {
				"total_assets":      {Min: 0, Max: 1e9},
				"total_liabilities": {Min: 0, Max: 1e9},
				"revenue":           {Min: 0, Max: 1e9},
			},
		},
	}
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.MinSamples <= 0 {
		c.MinSamples = def.MinSamples
	}
	if c.Ranges == nil {
		c.Ranges = def.Ranges
	}
	return c
}

// Detector runs independent checks over the validated data of a document;
// date spelling checks read the extracted data.
// Severity is decided here and never recomputed downstream.
type Detector struct {
	cfg Config
}

func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg.normalize()}
}

// Detect returns the anomalies found in state, most severe first. history is
// a read-only sample of prior documents and may be empty.
func (d *Detector) Detect(state *domain.DocumentState, history domain.HistorySnapshot) []domain.Anomaly {
	data := state.Data()
	docType := state.DocumentType

	var found []domain.Anomaly
	found = append(found, d.checkRanges(docType, data)...)
	switch docType {
	case "invoice":
		found = append(found, checkInvoice(typed.InvoiceOf(data))...)
	case "contract":
		found = append(found, checkContract(typed.ContractOf(data))...)
	case "financial_statement":
		found = append(found, checkFinancialStatement(typed.FinancialStatementOf(data))...)
	}
	found = append(found, checkDataQuality(data)...)
	found = append(found, checkDateFormats(rawDates(state))...)
	found = append(found, d.checkDistribution(data, history)...)
	if history.DuplicateOf != "" && history.DuplicateOf != state.DocumentID {
		found = append(found, domain.Anomaly{
			Kind:        "duplicate_document",
			Description: fmt.Sprintf("Content matches previously processed document %s", history.DuplicateOf),
			Severity:    domain.SeverityHigh,
		})
	}

	out := dedupe(found)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity.Rank() > out[j].Severity.Rank()
	})
	return out
}

// rawDates returns the data as extracted. Validation rewrites parseable dates
// to ISO form, which would hide mixed spellings.
func rawDates(state *domain.DocumentState) domain.Fields {
	if len(state.ExtractedData) > 0 {
		return state.ExtractedData
	}
	return state.Data()
}

func (d *Detector) checkRanges(docType string, data domain.Fields) []domain.Anomaly {
	ranges := d.cfg.Ranges[docType]
	var out []domain.Anomaly
	for _, field := range sortedKeys(ranges) {
		r := ranges[field]
		v, ok := data.Float(field)
		if !ok || (v >= r.Min && v <= r.Max) {
			continue
		}
		severity := domain.SeverityMedium
		if v < 0 || v > r.Max*2 {
			severity = domain.SeverityHigh
		}
		out = append(out, domain.Anomaly{
			Kind:        "range_outlier",
			Description: fmt.Sprintf("%s value %s is outside expected range (%s-%s)", field, formatNumber(v), formatNumber(r.Min), formatNumber(r.Max)),
			Severity:    severity,
			Fields:      []string{field},
		})
	}
	return out
}

// checkDistribution compares numeric fields against prior documents of the same type.
func (d *Detector) checkDistribution(data domain.Fields, history domain.HistorySnapshot) []domain.Anomaly {
	var out []domain.Anomaly
	for _, field := range sortedKeys(history.Fields) {
		stats := history.Fields[field]
		if stats.Count < d.cfg.MinSamples || stats.StdDev <= 0 {
			continue
		}
		v, ok := data.Float(field)
		if !ok {
			continue
		}
		z := math.Abs(v-stats.Mean) / stats.StdDev
		var severity domain.Severity
		switch {
		case z > 5:
			severity = domain.SeverityHigh
		case z > 3:
			severity = domain.SeverityMedium
		default:
			continue
		}
		out = append(out, domain.Anomaly{
			Kind: "distribution_outlier",
			Description: fmt.Sprintf("%s value %s is %.1f standard deviations from the mean of %d prior documents",
				field, formatNumber(v), z, stats.Count),
			Severity: severity,
			Fields:   []string{field},
		})
	}
	return out
}

func dedupe(in []domain.Anomaly) []domain.Anomaly {
	seen := make(map[string]bool, len(in))
	out := make([]domain.Anomaly, 0, len(in))
	for _, a := range in {
		fields := append([]string(nil), a.Fields...)
		sort.Strings(fields)
		key := a.Kind + "|" + strings.Join(fields, ",")
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

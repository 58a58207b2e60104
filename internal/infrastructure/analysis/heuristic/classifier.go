// Package heuristic implements keyword and label based analysis. It backs the
// classification and extraction stages when no model is configured and serves
// as their fallback when the model is unavailable.
package heuristic

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/docflow/internal/core/domain"
)

type signature struct {
	keywords []string
	patterns []string
}

var signatures = map[string]signature{
	"invoice": {
		keywords: []string{"invoice", "bill", "amount due", "payment terms", "tax", "total", "subtotal", "due date", "vendor", "customer", "payment", "billing", "balance", "receipt"},
		patterns: []string{"invoice number", "invoice #", "inv #", "bill to", "billing address", "line items", "subtotal:", "total:", "tax:"},
	},
	"contract": {
		keywords: []string{"agreement", "contract", "terms", "conditions", "parties", "signature", "effective date"},
		patterns: []string{"whereas", "party of the first part", "terms and conditions", "governing law"},
	},
	"resume": {
		keywords: []string{"experience", "education", "skills", "employment", "qualifications", "objective"},
		patterns: []string{"work experience", "contact information"},
	},
	"financial_statement": {
		keywords: []string{"balance sheet", "income statement", "cash flow", "assets", "liabilities", "revenue", "equity"},
		patterns: []string{"financial year", "accounting period", "audited", "unaudited", "total assets"},
	},
	"legal_document": {
		keywords: []string{"court", "plaintiff", "defendant", "jurisdiction", "statute"},
		patterns: []string{"case number", "court filing"},
	},
	"medical_record": {
		keywords: []string{"patient", "diagnosis", "treatment", "medical", "doctor", "hospital", "prescription"},
		patterns: []string{"patient name", "date of birth", "medical record number"},
	},
	"research_paper": {
		keywords: []string{"abstract", "introduction", "methodology", "results", "conclusion", "references"},
		patterns: []string{"literature review", "bibliography", "peer review"},
	},
	"technical_manual": {
		keywords: []string{"manual", "instructions", "procedure", "technical", "specifications", "installation"},
		patterns: []string{"step-by-step", "troubleshooting", "user guide"},
	},
	"email": {
		keywords: []string{"from", "to", "subject", "sent", "reply", "forward"},
		patterns: []string{"subject:", "from:", "to:", "cc:"},
	},
	"report": {
		keywords: []string{"report", "analysis", "summary", "findings", "recommendations"},
		patterns: []string{"executive summary", "key findings"},
	},
}

type Classifier struct{}

func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify scores every known type by keyword (1 point) and pattern (2 points)
// hits. Confidence grows with the share of the type's signature that matched.
func (c *Classifier) Classify(ctx context.Context, content string) (domain.Classification, error) {
	if err := ctx.Err(); err != nil {
		return domain.Classification{}, err
	}
	lower := strings.ToLower(content)

	type candidate struct {
		name  string
		score int
		max   int
		hits  []string
	}
	var candidates []candidate
	for name, sig := range signatures {
		cand := candidate{name: name, max: len(sig.keywords) + 2*len(sig.patterns)}
		for _, kw := range sig.keywords {
			if strings.Contains(lower, kw) {
				cand.score++
				cand.hits = append(cand.hits, kw)
			}
		}
		for _, p := range sig.patterns {
			if strings.Contains(lower, p) {
				cand.score += 2
				cand.hits = append(cand.hits, p)
			}
		}
		if cand.score > 0 {
			candidates = append(candidates, cand)
		}
	}
	if len(candidates) == 0 {
		return domain.Classification{
			DocumentType: "other",
			Confidence:   0.2,
			Reasoning:    "no classification indicators found",
		}, nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].name < candidates[j].name
	})
	best := candidates[0]
	confidence := float64(best.score)/float64(max(best.max, 1))*0.8 + 0.2
	return domain.Classification{
		DocumentType: best.name,
		Confidence:   min(0.9, confidence),
		Reasoning:    fmt.Sprintf("matched %d indicators: %s", len(best.hits), strings.Join(best.hits, ", ")),
	}, nil
}

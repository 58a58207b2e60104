package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/docflow/internal/core/domain"
	"github.com/kirillkom/docflow/internal/core/ports"
)

const (
	FallbackDocumentType = "other"
	FallbackConfidence   = 0.3
)

type Classification struct {
	storage    ports.ObjectStorage
	classifier ports.DocumentClassifier
	fallback   ports.DocumentClassifier
}

// NewClassification builds the classification stage. fallback may be nil; it
// is consulted when the primary classifier fails.
func NewClassification(storage ports.ObjectStorage, classifier, fallback ports.DocumentClassifier) *Classification {
	return &Classification{storage: storage, classifier: classifier, fallback: fallback}
}

func (s *Classification) Stage() domain.Stage { return domain.StageClassification }

func (s *Classification) Execute(ctx context.Context, state *domain.DocumentState) (domain.StageResult, error) {
	content, err := loadContent(ctx, s.storage, state)
	if err != nil {
		return domain.StageResult{}, err
	}

	cls, err := s.classifier.Classify(ctx, content)
	if err == nil {
		cls = normalizeClassification(cls)
		return domain.StageResult{
			Stage:          s.Stage(),
			Signal:         domain.SignalOK,
			Classification: &cls,
			Detail:         fmt.Sprintf("classified as %s", cls.DocumentType),
		}.WithConfidence(cls.Confidence), nil
	}
	if ctx.Err() != nil {
		return domain.StageResult{}, fmt.Errorf("classify document: %w", err)
	}

	primaryErr := err
	fallback := domain.Classification{
		DocumentType: FallbackDocumentType,
		Confidence:   FallbackConfidence,
		Reasoning:    "classifier unavailable: " + primaryErr.Error(),
	}
	if s.fallback != nil {
		if alt, altErr := s.fallback.Classify(ctx, content); altErr == nil {
			fallback = normalizeClassification(alt)
		}
	}
	return domain.StageResult{
		Stage:          s.Stage(),
		Signal:         domain.SignalDegraded,
		Classification: &fallback,
		Error:          primaryErr.Error(),
		Detail:         fmt.Sprintf("fallback classification %s", fallback.DocumentType),
	}.WithConfidence(fallback.Confidence), nil
}

func normalizeClassification(c domain.Classification) domain.Classification {
	c.DocumentType = strings.ToLower(strings.TrimSpace(c.DocumentType))
	c.DocumentType = strings.ReplaceAll(c.DocumentType, " ", "_")
	if c.DocumentType == "" {
		c.DocumentType = FallbackDocumentType
	}
	c.Confidence = domain.ClampConfidence(c.Confidence)
	return c
}

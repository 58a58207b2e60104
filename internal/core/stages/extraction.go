package stages

import (
	"context"
	"fmt"

	"github.com/kirillkom/docflow/internal/core/domain"
	"github.com/kirillkom/docflow/internal/core/ports"
)

type Extraction struct {
	storage   ports.ObjectStorage
	extractor ports.FieldExtractor
	fallback  ports.FieldExtractor
}

// NewExtraction builds the extraction stage. fallback may be nil; without it
// an extractor failure is fatal.
func NewExtraction(storage ports.ObjectStorage, extractor, fallback ports.FieldExtractor) *Extraction {
	return &Extraction{storage: storage, extractor: extractor, fallback: fallback}
}

func (s *Extraction) Stage() domain.Stage { return domain.StageExtraction }

func (s *Extraction) Execute(ctx context.Context, state *domain.DocumentState) (domain.StageResult, error) {
	content, err := loadContent(ctx, s.storage, state)
	if err != nil {
		return domain.StageResult{}, err
	}

	ext, err := s.extractor.Extract(ctx, content, state.DocumentType)
	if err == nil {
		return s.result(domain.SignalOK, ext, ""), nil
	}
	if ctx.Err() != nil || s.fallback == nil {
		return domain.StageResult{}, fmt.Errorf("extract fields: %w", err)
	}

	alt, altErr := s.fallback.Extract(ctx, content, state.DocumentType)
	if altErr != nil {
		return domain.StageResult{}, fmt.Errorf("extract fields: %w (fallback: %v)", err, altErr)
	}
	return s.result(domain.SignalDegraded, alt, err.Error()), nil
}

func (s *Extraction) result(signal domain.Signal, ext domain.Extraction, errText string) domain.StageResult {
	fields := ext.Fields.Clone().EnsureUniversal()
	return domain.StageResult{
		Stage:     s.Stage(),
		Signal:    signal,
		Extracted: fields,
		Error:     errText,
		Detail:    fmt.Sprintf("extracted %d non-null fields via %s", fields.NonNullCount(), methodOrDefault(ext.Method)),
	}.WithConfidence(ext.Confidence)
}

func methodOrDefault(m string) string {
	if m == "" {
		return "extractor"
	}
	return m
}

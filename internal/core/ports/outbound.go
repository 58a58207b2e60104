package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/docflow/internal/core/domain"
)

// StateStore persists document states with optimistic versioning.
type StateStore interface {
	Create(ctx context.Context, state *domain.DocumentState) error
	Get(ctx context.Context, documentID string) (*domain.DocumentState, error)
	// Save writes state if the stored version still equals expectedVersion and
	// bumps state.Version on success.
	Save(ctx context.Context, state *domain.DocumentState, expectedVersion int64) error
	ListByStatus(ctx context.Context, status domain.DocumentStatus, limit int) ([]domain.DocumentSummary, error)
	ListStale(ctx context.Context, statuses []domain.DocumentStatus, updatedBefore time.Time, limit int) ([]string, error)
}

// ObjectStorage stores uploads, decoded content and audit archives.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// ContentDecoder turns a stored upload into plain text.
type ContentDecoder interface {
	Decode(ctx context.Context, upload domain.Upload) (domain.Decoded, error)
}

// DocumentClassifier determines the document type of decoded content.
type DocumentClassifier interface {
	Classify(ctx context.Context, content string) (domain.Classification, error)
}

// FieldExtractor pulls structured fields out of decoded content.
type FieldExtractor interface {
	Extract(ctx context.Context, content, documentType string) (domain.Extraction, error)
}

// HistoryReader supplies aggregate statistics about prior documents.
type HistoryReader interface {
	Snapshot(ctx context.Context, query domain.HistoryQuery) (domain.HistorySnapshot, error)
}

// HistoryRecorder feeds a finished document into the history statistics.
type HistoryRecorder interface {
	Record(ctx context.Context, state *domain.DocumentState) error
}

// WorkQueue carries document ids to the driving loop.
type WorkQueue interface {
	Enqueue(ctx context.Context, documentID string) error
	Consume(ctx context.Context, concurrency int, handler func(context.Context, string) error) error
}

// Notifier delivers transition events on a best-effort basis.
type Notifier interface {
	Notify(ctx context.Context, event domain.TransitionEvent)
}

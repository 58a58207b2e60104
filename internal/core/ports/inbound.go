package ports

import (
	"context"
	"io"

	"github.com/kirillkom/docflow/internal/core/domain"
)

// DocumentSubmitter is the inbound contract for accepting new documents.
type DocumentSubmitter interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.DocumentState, error)
	SubmitText(ctx context.Context, title, content string) (*domain.DocumentState, error)
}

// ReviewSubmitter resolves suspended reviews.
type ReviewSubmitter interface {
	Submit(ctx context.Context, documentID string, submission domain.ReviewSubmission) (*domain.DocumentState, error)
}

// DocumentCanceller requests cancellation of an in-flight workflow.
type DocumentCanceller interface {
	Cancel(ctx context.Context, documentID, actor, reason string) (*domain.DocumentState, error)
}

// StatusReader is the read model over document states.
type StatusReader interface {
	Status(ctx context.Context, documentID string) (*domain.StatusView, error)
	Results(ctx context.Context, documentID string) (*domain.ResultView, error)
	ReviewContext(ctx context.Context, documentID string) (*domain.ReviewContext, error)
	Audit(ctx context.Context, documentID string) ([]domain.AuditEntry, error)
	PendingReviews(ctx context.Context, limit int) ([]domain.DocumentSummary, error)
}

// WorkflowDriver advances documents through the pipeline.
type WorkflowDriver interface {
	// Step runs one decide/execute/persist cycle and reports whether more work remains.
	Step(ctx context.Context, documentID string) (bool, error)
}

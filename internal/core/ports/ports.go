package ports

import (
	"context"

	"github.com/kirillkom/docflow/internal/core/domain"
)

// StageExecutor runs one pipeline stage against a read-only state snapshot.
type StageExecutor interface {
	Stage() domain.Stage
	Execute(ctx context.Context, state *domain.DocumentState) (domain.StageResult, error)
}

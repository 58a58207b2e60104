package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/kirillkom/docflow/internal/core/domain"
	"github.com/kirillkom/docflow/internal/core/ports"
)

const (
	defaultPendingLimit = 50
	maxPendingLimit     = 500
)

// StatusQueryUseCase is the read side over document states.
type StatusQueryUseCase struct {
	store ports.StateStore
}

func NewStatusQueryUseCase(store ports.StateStore) *StatusQueryUseCase {
	return &StatusQueryUseCase{store: store}
}

func (uc *StatusQueryUseCase) Status(ctx context.Context, documentID string) (*domain.StatusView, error) {
	state, err := uc.store.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return domain.NewStatusView(state), nil
}

// Results is only available once the document is terminal.
func (uc *StatusQueryUseCase) Results(ctx context.Context, documentID string) (*domain.ResultView, error) {
	state, err := uc.store.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !state.Status.Terminal() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get results", fmt.Errorf("document is still %s", state.Status))
	}
	return domain.NewResultView(state), nil
}

func (uc *StatusQueryUseCase) ReviewContext(ctx context.Context, documentID string) (*domain.ReviewContext, error) {
	state, err := uc.store.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if state.HumanReview == nil || state.Status != domain.StatusHumanReviewRequired {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get review context", errors.New("document has no open review"))
	}
	return domain.NewReviewContext(state), nil
}

func (uc *StatusQueryUseCase) Audit(ctx context.Context, documentID string) ([]domain.AuditEntry, error) {
	state, err := uc.store.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return state.AuditTrail, nil
}

// PendingReviews lists suspended documents, oldest first.
func (uc *StatusQueryUseCase) PendingReviews(ctx context.Context, limit int) ([]domain.DocumentSummary, error) {
	if limit <= 0 {
		limit = defaultPendingLimit
	}
	if limit > maxPendingLimit {
		limit = maxPendingLimit
	}
	items, err := uc.store.ListByStatus(ctx, domain.StatusHumanReviewRequired, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending reviews: %w", err)
	}
	return items, nil
}

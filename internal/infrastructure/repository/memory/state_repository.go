package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kirillkom/docflow/internal/core/domain"
)

// StateRepository keeps document states in process memory. It is used by
// tests and one-shot local runs; it is not durable.
type StateRepository struct {
	mu     sync.RWMutex
	states map[string]*domain.DocumentState
}

func NewStateRepository() *StateRepository {
	return &StateRepository{states: make(map[string]*domain.DocumentState)}
}

func (r *StateRepository) Create(_ context.Context, state *domain.DocumentState) error {
	if state == nil || state.DocumentID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "create state", errors.New("document id is required"))
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.states[state.DocumentID]; ok {
		return domain.WrapError(domain.ErrInvalidInput, "create state", fmt.Errorf("document %s already exists", state.DocumentID))
	}
	state.Version = 1
	r.states[state.DocumentID] = state.Clone()
	return nil
}

func (r *StateRepository) Get(_ context.Context, documentID string) (*domain.DocumentState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.states[documentID]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get state", fmt.Errorf("document %s", documentID))
	}
	return state.Clone(), nil
}

func (r *StateRepository) Save(_ context.Context, state *domain.DocumentState, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.states[state.DocumentID]
	if !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "save state", fmt.Errorf("document %s", state.DocumentID))
	}
	if current.Version != expectedVersion {
		return domain.WrapError(domain.ErrVersionConflict, "save state",
			fmt.Errorf("document %s is at version %d, expected %d", state.DocumentID, current.Version, expectedVersion))
	}
	if current.Status.Terminal() {
		return domain.WrapError(domain.ErrTerminalState, "save state", fmt.Errorf("document %s is %s", state.DocumentID, current.Status))
	}
	state.Version = expectedVersion + 1
	r.states[state.DocumentID] = state.Clone()
	return nil
}

func (r *StateRepository) ListByStatus(_ context.Context, status domain.DocumentStatus, limit int) ([]domain.DocumentSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*domain.DocumentState
	for _, state := range r.states {
		if state.Status == status {
			matched = append(matched, state)
		}
	}
	sortOldestFirst(matched)
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	out := make([]domain.DocumentSummary, 0, len(matched))
	for _, state := range matched {
		out = append(out, state.Clone().Summary())
	}
	return out, nil
}

func (r *StateRepository) ListStale(_ context.Context, statuses []domain.DocumentStatus, updatedBefore time.Time, limit int) ([]string, error) {
	wanted := make(map[domain.DocumentStatus]bool, len(statuses))
	for _, s := range statuses {
		wanted[s] = true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*domain.DocumentState
	for _, state := range r.states {
		if wanted[state.Status] && state.UpdatedAt.Before(updatedBefore) {
			matched = append(matched, state)
		}
	}
	sortOldestFirst(matched)
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	ids := make([]string, 0, len(matched))
	for _, state := range matched {
		ids = append(ids, state.DocumentID)
	}
	return ids, nil
}

func sortOldestFirst(states []*domain.DocumentState) {
	sort.Slice(states, func(i, j int) bool {
		if states[i].UpdatedAt.Equal(states[j].UpdatedAt) {
			return states[i].DocumentID < states[j].DocumentID
		}
		return states[i].UpdatedAt.Before(states[j].UpdatedAt)
	})
}

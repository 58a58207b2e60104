package resilience

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Dependency is the part of an operation name before the first dot, so
// "ollama.classify" and "ollama.extract" share one bulkhead.
func Dependency(operation string) string {
	if i := strings.IndexByte(operation, '.'); i > 0 {
		return operation[:i]
	}
	return operation
}

type bulkheads struct {
	limit int64

	mu   sync.Mutex
	sems map[string]*semaphore.Weighted
}

func newBulkheads(limit int64) *bulkheads {
	return &bulkheads{limit: limit, sems: make(map[string]*semaphore.Weighted)}
}

// acquire waits for a slot of dependency. The wait is bounded by ctx.
func (b *bulkheads) acquire(ctx context.Context, dependency string) (func(), error) {
	if b == nil || b.limit <= 0 {
		return func() {}, nil
	}
	sem := b.semaphore(dependency)
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("bulkhead %s: %w", dependency, err)
	}
	return func() { sem.Release(1) }, nil
}

func (b *bulkheads) semaphore(dependency string) *semaphore.Weighted {
	b.mu.Lock()
	defer b.mu.Unlock()

	sem, ok := b.sems[dependency]
	if !ok {
		sem = semaphore.NewWeighted(b.limit)
		b.sems[dependency] = sem
	}
	return sem
}

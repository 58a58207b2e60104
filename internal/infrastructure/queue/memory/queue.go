package memory

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/docflow/internal/core/domain"
)

const defaultCapacity = 1024

// Queue is an in-process work queue for one-shot runs and tests.
type Queue struct {
	items chan string
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Queue{items: make(chan string, capacity)}
}

// Enqueue fails with ErrTemporary when the buffer is full.
func (q *Queue) Enqueue(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case q.items <- documentID:
		return nil
	default:
		return domain.WrapError(domain.ErrTemporary, "enqueue document", errors.New("memory queue is full"))
	}
}

func (q *Queue) Consume(ctx context.Context, concurrency int, handler func(context.Context, string) error) error {
	if concurrency <= 0 {
		concurrency = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < concurrency; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case id := <-q.items:
					if err := handler(gctx, id); err != nil && !errors.Is(err, context.Canceled) {
						slog.Warn("worker_handler_error", "document_id", id, "error", err)
					}
				}
			}
		})
	}
	return g.Wait()
}

// Drain removes and returns every queued id without blocking.
func (q *Queue) Drain() []string {
	var out []string
	for {
		select {
		case id := <-q.items:
			out = append(out, id)
		default:
			return out
		}
	}
}

func (q *Queue) Len() int {
	return len(q.items)
}

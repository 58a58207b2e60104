package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/kirillkom/docflow/internal/core/ports"
)

// WorkObserver records per-message worker measurements.
type WorkObserver interface {
	StartStep()
	FinishStep(duration time.Duration, err error)
}

// Worker executes one Step per queue message and re-enqueues the document
// while work remains, so a document never holds a worker across stages.
type Worker struct {
	driver   ports.WorkflowDriver
	queue    ports.WorkQueue
	observer WorkObserver
}

func NewWorker(driver ports.WorkflowDriver, queue ports.WorkQueue, observer WorkObserver) *Worker {
	return &Worker{driver: driver, queue: queue, observer: observer}
}

func (w *Worker) Handle(ctx context.Context, documentID string) (err error) {
	if w.observer != nil {
		w.observer.StartStep()
		started := time.Now()
		defer func() { w.observer.FinishStep(time.Since(started), err) }()
	}

	more, err := w.driver.Step(ctx, documentID)
	if err != nil {
		return fmt.Errorf("step document %s: %w", documentID, err)
	}
	if !more {
		return nil
	}
	if err := w.queue.Enqueue(ctx, documentID); err != nil {
		return fmt.Errorf("re-enqueue document %s: %w", documentID, err)
	}
	return nil
}

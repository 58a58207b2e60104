package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kirillkom/docflow/internal/core/domain"
	"github.com/kirillkom/docflow/internal/core/ports"
)

const defaultSweepBatch = 100

type SweeperConfig struct {
	// Schedule is a cron spec such as "@every 1m".
	Schedule string
	// StallAfter is how long a pending or processing document may go without
	// an update before it is re-enqueued.
	StallAfter time.Duration
	BatchSize  int
}

// Sweeper re-enqueues stalled documents and escalates overdue reviews.
type Sweeper struct {
	store ports.StateStore
	queue ports.WorkQueue
	gate  ports.ReviewSubmitter
	cfg   SweeperConfig
	now   func() time.Time
}

func NewSweeper(store ports.StateStore, queue ports.WorkQueue, gate ports.ReviewSubmitter, cfg SweeperConfig) *Sweeper {
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 1m"
	}
	if cfg.StallAfter <= 0 {
		cfg.StallAfter = 5 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultSweepBatch
	}
	return &Sweeper{
		store: store,
		queue: queue,
		gate:  gate,
		cfg:   cfg,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// SweepReport counts what one sweep did.
type SweepReport struct {
	Requeued  int
	Escalated int
}

// Run schedules Sweep until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(s.cfg.Schedule, func() {
		report, err := s.Sweep(ctx)
		if err != nil {
			slog.Warn("sweep_failed", "error", err)
			return
		}
		if report.Requeued > 0 || report.Escalated > 0 {
			slog.Info("sweep_done", "requeued", report.Requeued, "escalated", report.Escalated)
		}
	}); err != nil {
		return fmt.Errorf("schedule sweeper %q: %w", s.cfg.Schedule, err)
	}
	scheduler.Start()
	<-ctx.Done()
	<-scheduler.Stop().Done()
	return nil
}

func (s *Sweeper) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	now := s.now()

	stale, err := s.store.ListStale(ctx,
		[]domain.DocumentStatus{domain.StatusPending, domain.StatusProcessing},
		now.Add(-s.cfg.StallAfter),
		s.cfg.BatchSize,
	)
	if err != nil {
		return report, fmt.Errorf("list stalled documents: %w", err)
	}
	for _, id := range stale {
		if err := s.queue.Enqueue(ctx, id); err != nil {
			return report, fmt.Errorf("re-enqueue %s: %w", id, err)
		}
		report.Requeued++
	}

	suspended, err := s.store.ListByStatus(ctx, domain.StatusHumanReviewRequired, s.cfg.BatchSize)
	if err != nil {
		return report, fmt.Errorf("list suspended documents: %w", err)
	}
	for _, doc := range suspended {
		if doc.Review == nil || !doc.Review.Overdue(now) {
			continue
		}
		_, err := s.gate.Submit(ctx, doc.DocumentID, domain.ReviewSubmission{
			ReviewID: doc.Review.ReviewID,
			Decision: domain.DecisionEscalate,
			Reviewer: SweeperActor,
			Feedback: fmt.Sprintf("Review overdue since %s", doc.Review.DueDate.Format(time.RFC3339)),
		})
		if err != nil {
			if domain.IsKind(err, domain.ErrStaleReview) {
				continue
			}
			slog.Warn("review_escalation_failed", "document_id", doc.DocumentID, "error", err)
			continue
		}
		report.Escalated++
	}
	return report, nil
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kirillkom/docflow/internal/core/domain"
	"github.com/kirillkom/docflow/internal/core/ports"
	"github.com/kirillkom/docflow/internal/core/workflow"
)

const defaultStageTimeout = 60 * time.Second

// StepObserver receives driving-loop measurements.
type StepObserver interface {
	ObserveStage(stage domain.Stage, signal domain.Signal, duration time.Duration)
	ObserveTransition(status domain.DocumentStatus)
	ObserveVersionConflict()
}

type nopObserver struct{}

func (nopObserver) ObserveStage(domain.Stage, domain.Signal, time.Duration) {}
func (nopObserver) ObserveTransition(domain.DocumentStatus)                {}
func (nopObserver) ObserveVersionConflict()                                {}

type RunnerConfig struct {
	StageTimeout  time.Duration
	StageTimeouts map[domain.Stage]time.Duration
	// VersionRetries bounds how often a cycle is replayed after a version conflict.
	VersionRetries int
	RetryInterval  time.Duration
	Observer       StepObserver
	Clock          func() time.Time
}

func (c RunnerConfig) normalize() RunnerConfig {
	if c.StageTimeout <= 0 {
		c.StageTimeout = defaultStageTimeout
	}
	if c.Observer == nil {
		c.Observer = nopObserver{}
	}
	if c.Clock == nil {
		c.Clock = func() time.Time { return time.Now().UTC() }
	}
	return c
}

func (c RunnerConfig) timeoutFor(stage domain.Stage) time.Duration {
	if d, ok := c.StageTimeouts[stage]; ok && d > 0 {
		return d
	}
	return c.StageTimeout
}

// Runner drives documents through the pipeline one stage per Step.
type Runner struct {
	store       ports.StateStore
	coordinator *workflow.Coordinator
	executors   map[domain.Stage]ports.StageExecutor
	notifier    ports.Notifier
	locks       *KeyedMutex
	cfg         RunnerConfig
	tracer      trace.Tracer
}

func NewRunner(
	store ports.StateStore,
	coordinator *workflow.Coordinator,
	executors []ports.StageExecutor,
	notifier ports.Notifier,
	cfg RunnerConfig,
) *Runner {
	byStage := make(map[domain.Stage]ports.StageExecutor, len(executors))
	for _, exec := range executors {
		byStage[exec.Stage()] = exec
	}
	return &Runner{
		store:       store,
		coordinator: coordinator,
		executors:   byStage,
		notifier:    notifier,
		locks:       NewKeyedMutex(),
		cfg:         cfg.normalize(),
		tracer:      otel.Tracer("github.com/kirillkom/docflow/internal/core/usecase"),
	}
}

// Step runs one decide/execute/persist cycle for documentID and reports
// whether the document needs another step. A version conflict replays the
// whole cycle against the reloaded state, discarding the stale result.
func (r *Runner) Step(ctx context.Context, documentID string) (bool, error) {
	unlock := r.locks.Lock(documentID)
	defer unlock()

	var more bool
	retry := ConflictRetry{
		MaxRetries: r.cfg.VersionRetries,
		Interval:   r.cfg.RetryInterval,
		OnConflict: func(err error) {
			r.cfg.Observer.ObserveVersionConflict()
			slog.Warn("version_conflict", "document_id", documentID, "error", err)
		},
	}
	err := retry.Do(ctx, "step document", func() error {
		m, err := r.cycle(ctx, documentID)
		if err != nil {
			return err
		}
		more = m
		return nil
	})
	if err != nil {
		return false, err
	}
	return more, nil
}

// Advance steps documentID until it is terminal or suspended. It is used by
// in-process runs; the worker re-enqueues after each Step instead.
func (r *Runner) Advance(ctx context.Context, documentID string) (*domain.DocumentState, error) {
	for {
		more, err := r.Step(ctx, documentID)
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
	}
	return r.store.Get(ctx, documentID)
}

func (r *Runner) cycle(ctx context.Context, documentID string) (bool, error) {
	state, err := r.store.Get(ctx, documentID)
	if err != nil {
		return false, fmt.Errorf("load state: %w", err)
	}

	decision := r.coordinator.Decide(state)
	switch decision.Kind {
	case workflow.DecisionTerminal, workflow.DecisionAwaitReview:
		return false, nil
	case workflow.DecisionRunStage:
		return r.runStage(ctx, state, decision)
	default:
		next := state.Clone()
		workflow.Transition(next, decision, r.cfg.Clock())
		if err := r.persist(ctx, state, next); err != nil {
			return false, err
		}
		return false, nil
	}
}

func (r *Runner) runStage(ctx context.Context, state *domain.DocumentState, decision workflow.Decision) (bool, error) {
	stage := decision.Stage
	inputDigest := domain.StageInputDigest(state, stage)

	started := time.Now()
	result, err := r.execute(ctx, stage, state.Clone())
	if err != nil {
		return false, err
	}
	duration := time.Since(started)
	r.cfg.Observer.ObserveStage(stage, result.Signal, duration)

	now := r.cfg.Clock()
	next := state.Clone()
	workflow.Transition(next, decision, now)
	domain.ApplyStageResult(next, result, inputDigest, duration, now)
	settled := r.coordinator.Settle(next, now)

	slog.Info("stage_executed",
		"document_id", state.DocumentID,
		"stage", stage,
		"signal", result.Signal,
		"duration_ms", duration.Milliseconds(),
		"next", settled.Kind,
	)
	if err := r.persist(ctx, state, next); err != nil {
		return false, err
	}
	return !next.Status.Terminal() && next.Status != domain.StatusHumanReviewRequired, nil
}

// execute runs one stage under its timeout. Errors, panics and expiry become
// a Fatal result; only cancellation of ctx itself is returned as an error.
func (r *Runner) execute(ctx context.Context, stage domain.Stage, snapshot *domain.DocumentState) (domain.StageResult, error) {
	exec, ok := r.executors[stage]
	if !ok {
		return domain.FatalResult(stage, fmt.Errorf("no executor registered for stage %s", stage)), nil
	}

	timeout := r.cfg.timeoutFor(stage)
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	stageCtx, span := r.tracer.Start(stageCtx, "stage."+string(stage), trace.WithAttributes(
		attribute.String("document.id", snapshot.DocumentID),
		attribute.String("workflow.stage", string(stage)),
	))
	defer span.End()

	type outcome struct {
		result domain.StageResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("stage %s panicked: %v", stage, p)}
			}
		}()
		res, err := exec.Execute(stageCtx, snapshot)
		done <- outcome{result: res, err: err}
	}()

	var result domain.StageResult
	select {
	case out := <-done:
		switch {
		case out.err != nil && errors.Is(stageCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
			result = domain.FatalResult(stage, fmt.Errorf("stage %s timed out after %s", stage, timeout))
		case out.err != nil && ctx.Err() != nil:
			return domain.StageResult{}, ctx.Err()
		case out.err != nil:
			result = domain.FatalResult(stage, out.err)
		default:
			result = out.result
		}
	case <-stageCtx.Done():
		if ctx.Err() != nil {
			return domain.StageResult{}, ctx.Err()
		}
		result = domain.FatalResult(stage, fmt.Errorf("stage %s timed out after %s", stage, timeout))
	}

	result.Stage = stage
	if result.Signal == "" {
		result.Signal = domain.SignalOK
	}
	span.SetAttributes(attribute.String("workflow.signal", string(result.Signal)))
	if result.Signal == domain.SignalFatal {
		span.SetStatus(codes.Error, result.Error)
	}
	return result, nil
}

// persist saves next against the version state was loaded at, then notifies.
func (r *Runner) persist(ctx context.Context, loaded, next *domain.DocumentState) error {
	if err := r.store.Save(ctx, next, loaded.Version); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	if next.Status != loaded.Status {
		r.cfg.Observer.ObserveTransition(next.Status)
		slog.Info("workflow_transition",
			"document_id", next.DocumentID,
			"from", loaded.Status,
			"to", next.Status,
			"reason", next.FailureReason,
		)
	}
	r.notifier.Notify(ctx, domain.NewTransitionEvent(next, next.UpdatedAt))
	return nil
}

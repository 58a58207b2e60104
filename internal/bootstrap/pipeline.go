package bootstrap

import (
	"fmt"

	"github.com/kirillkom/docflow/internal/config"
	"github.com/kirillkom/docflow/internal/core/anomaly"
	"github.com/kirillkom/docflow/internal/core/ports"
	"github.com/kirillkom/docflow/internal/core/rules"
	"github.com/kirillkom/docflow/internal/core/stages"
	"github.com/kirillkom/docflow/internal/core/usecase"
	"github.com/kirillkom/docflow/internal/core/workflow"
	"github.com/kirillkom/docflow/internal/infrastructure/decoder"
)

// PipelineDeps are the collaborators a pipeline is assembled from. History,
// fallbacks and observers may be left nil.
type PipelineDeps struct {
	Store    ports.StateStore
	Storage  ports.ObjectStorage
	Queue    ports.WorkQueue
	Notifier ports.Notifier

	Classifier         ports.DocumentClassifier
	Extractor          ports.FieldExtractor
	FallbackClassifier ports.DocumentClassifier
	FallbackExtractor  ports.FieldExtractor

	HistoryReader   ports.HistoryReader
	HistoryRecorder ports.HistoryRecorder

	StepObserver usecase.StepObserver
	WorkObserver usecase.WorkObserver
}

// Pipeline bundles the use cases shared by the API, the worker and the CLI.
type Pipeline struct {
	Runner  *usecase.Runner
	Worker  *usecase.Worker
	Submit  *usecase.SubmitDocumentUseCase
	Review  *usecase.ReviewGate
	Cancel  *usecase.CancelDocumentUseCase
	Status  *usecase.StatusQueryUseCase
	Sweeper *usecase.Sweeper
}

func NewPipeline(cfg config.Config, policy config.Policy, deps PipelineDeps) (*Pipeline, error) {
	policy = policy.WithThreshold(cfg.ReviewConfidenceThreshold)
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("policy: %w", err)
	}

	coordinator := workflow.NewCoordinator(policy.Workflow())
	executors := []ports.StageExecutor{
		stages.NewIngestion(decoder.NewDefault(deps.Storage, cfg.MaxUploadBytes), deps.Storage),
		stages.NewClassification(deps.Storage, deps.Classifier, deps.FallbackClassifier),
		stages.NewExtraction(deps.Storage, deps.Extractor, deps.FallbackExtractor),
		stages.NewValidation(policy.Validation, nil),
		stages.NewRuleEvaluation(rules.NewEngine(policy.RuleSet()), nil),
		stages.NewAnomalyDetection(anomaly.NewDetector(policy.Anomaly), deps.HistoryReader),
		stages.NewAuditLog(deps.Storage, deps.HistoryRecorder, nil),
	}

	retry := usecase.ConflictRetry{MaxRetries: cfg.VersionRetryMax}
	runner := usecase.NewRunner(deps.Store, coordinator, executors, deps.Notifier, usecase.RunnerConfig{
		StageTimeout:   cfg.StageTimeout,
		StageTimeouts:  cfg.StageTimeouts,
		VersionRetries: cfg.VersionRetryMax,
		Observer:       deps.StepObserver,
	})
	gate := usecase.NewReviewGate(deps.Store, coordinator, deps.Queue, deps.Notifier, retry)

	return &Pipeline{
		Runner: runner,
		Worker: usecase.NewWorker(runner, deps.Queue, deps.WorkObserver),
		Submit: usecase.NewSubmitDocumentUseCase(deps.Store, deps.Storage, deps.Queue),
		Review: gate,
		Cancel: usecase.NewCancelDocumentUseCase(deps.Store, deps.Queue, retry),
		Status: usecase.NewStatusQueryUseCase(deps.Store),
		Sweeper: usecase.NewSweeper(deps.Store, deps.Queue, gate, usecase.SweeperConfig{
			Schedule:   cfg.SweepSchedule,
			StallAfter: cfg.MaxProcessingTime,
		}),
	}, nil
}

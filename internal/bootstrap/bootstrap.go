package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/docflow/internal/config"
	"github.com/kirillkom/docflow/internal/core/ports"
	"github.com/kirillkom/docflow/internal/infrastructure/analysis/heuristic"
	historyredis "github.com/kirillkom/docflow/internal/infrastructure/history/redis"
	"github.com/kirillkom/docflow/internal/infrastructure/llm/ollama"
	natsqueue "github.com/kirillkom/docflow/internal/infrastructure/queue/nats"
	"github.com/kirillkom/docflow/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/docflow/internal/infrastructure/resilience"
	"github.com/kirillkom/docflow/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/docflow/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Policy config.Policy

	Store   ports.StateStore
	Queue   *natsqueue.Queue
	Events  *natsqueue.EventBus
	Metrics *metrics.WorkerMetrics

	*Pipeline

	closeFn func()
}

// New wires the production stack: Postgres, NATS, local object storage, the
// configured analysis provider and, when REDIS_ADDR is set, Redis history.
func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	policy, err := config.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}

	if cfg.AutoMigrate {
		if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
	}
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	store := postgres.NewStateRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	workerMetrics := metrics.NewWorkerMetrics(service)
	resilienceCfg := resilience.DefaultConfig()
	resilienceCfg.MaxConcurrency = cfg.AnalysisMaxConcurrency
	resilienceCfg.OnBreakerChange = workerMetrics.ObserveBreaker
	executor := resilience.NewExecutor(resilienceCfg)

	conn, err := natsqueue.Connect(cfg.NATSURL, natsqueue.Options{Name: service})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	queue := natsqueue.NewQueue(conn, cfg.NATSWorkSubject, natsqueue.Options{ResilienceExecutor: executor})
	events := natsqueue.NewEventBus(conn, cfg.NATSEventsSubject)

	deps := PipelineDeps{
		Store:        store,
		Storage:      storage,
		Queue:        queue,
		Notifier:     events,
		StepObserver: workerMetrics,
		WorkObserver: workerMetrics,
	}
	if err := wireAnalysis(cfg, executor, &deps); err != nil {
		conn.Close()
		_ = db.Close()
		return nil, err
	}

	var history *historyredis.History
	if cfg.RedisAddr != "" {
		history = historyredis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			historyredis.WithFingerprintTTL(cfg.FingerprintTTL),
			historyredis.WithResilienceExecutor(executor),
		)
		deps.HistoryReader = history
		deps.HistoryRecorder = history
	} else {
		slog.Info("history_disabled", "reason", "REDIS_ADDR is empty")
	}

	pipeline, err := NewPipeline(cfg, policy, deps)
	if err != nil {
		conn.Close()
		_ = db.Close()
		return nil, err
	}

	return &App{
		Config:   cfg,
		Policy:   policy,
		Store:    store,
		Queue:    queue,
		Events:   events,
		Metrics:  workerMetrics,
		Pipeline: pipeline,
		closeFn: func() {
			if err := conn.Drain(); err != nil {
				conn.Close()
			}
			if history != nil {
				_ = history.Close()
			}
			_ = db.Close()
		},
	}, nil
}

// wireAnalysis selects the analysis provider. Ollama runs with the heuristic
// analyzers as fallback; "heuristic" runs them alone.
func wireAnalysis(cfg config.Config, executor *resilience.Executor, deps *PipelineDeps) error {
	switch cfg.AnalysisProvider {
	case "ollama":
		client := ollama.New(cfg.OllamaURL, cfg.OllamaModel, ollama.WithResilienceExecutor(executor))
		deps.Classifier = ollama.NewClassifier(client)
		deps.Extractor = ollama.NewExtractor(client)
		deps.FallbackClassifier = heuristic.NewClassifier()
		deps.FallbackExtractor = heuristic.NewExtractor()
	case "heuristic":
		deps.Classifier = heuristic.NewClassifier()
		deps.Extractor = heuristic.NewExtractor()
	default:
		return fmt.Errorf("unknown analysis provider %q", cfg.AnalysisProvider)
	}
	return nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

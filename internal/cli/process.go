package cli

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/docflow/internal/bootstrap"
	"github.com/kirillkom/docflow/internal/config"
	"github.com/kirillkom/docflow/internal/core/domain"
	"github.com/kirillkom/docflow/internal/infrastructure/analysis/heuristic"
	"github.com/kirillkom/docflow/internal/infrastructure/notify"
	queuememory "github.com/kirillkom/docflow/internal/infrastructure/queue/memory"
	"github.com/kirillkom/docflow/internal/infrastructure/repository/memory"
	"github.com/kirillkom/docflow/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/docflow/internal/observability/logging"
)

const (
	processActor     = "docflowctl"
	maxReviewRounds  = 5
	processStageWait = 60 * time.Second
)

type processOptions struct {
	policyFile string
	approve    bool
	verbose    bool
}

func newProcessCommand() *cobra.Command {
	opts := &processOptions{}
	cmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Run one document through the workflow in-process",
		Long: "Runs a document through every stage with an in-memory state store and heuristic analysis. " +
			"Nothing is persisted; use it to try policies and rules against sample documents.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := processFile(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			return printValue(cmd.OutOrStdout(), domain.NewStatusView(state))
		},
	}
	cmd.Flags().StringVar(&opts.policyFile, "policy", "", "YAML policy file")
	cmd.Flags().BoolVar(&opts.approve, "approve", false, "approve every review round automatically")
	cmd.Flags().BoolVar(&opts.verbose, "verbose", false, "log workflow transitions to stderr")
	return cmd
}

func processFile(ctx context.Context, path string, opts *processOptions) (*domain.DocumentState, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	policy, err := config.LoadPolicy(opts.policyFile)
	if err != nil {
		return nil, err
	}

	workDir, err := os.MkdirTemp("", "docflowctl-*")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	storage, err := localfs.New(workDir)
	if err != nil {
		return nil, err
	}
	level := "warn"
	if opts.verbose {
		level = "info"
	}
	logger := logging.New(os.Stderr, "docflowctl", level, "text")

	pipeline, err := bootstrap.NewPipeline(config.Config{
		StageTimeout:    processStageWait,
		VersionRetryMax: 3,
	}, policy, bootstrap.PipelineDeps{
		Store:      memory.NewStateRepository(),
		Storage:    storage,
		Queue:      queuememory.NewQueue(0),
		Notifier:   notify.Log{Logger: logger},
		Classifier: heuristic.NewClassifier(),
		Extractor:  heuristic.NewExtractor(),
	})
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	submitted, err := pipeline.Submit.Upload(ctx, filepath.Base(path), mime.TypeByExtension(filepath.Ext(path)), file)
	if err != nil {
		return nil, err
	}

	state, err := pipeline.Runner.Advance(ctx, submitted.DocumentID)
	if err != nil {
		return nil, err
	}
	for round := 0; opts.approve && round < maxReviewRounds && state.Status == domain.StatusHumanReviewRequired && state.HumanReview != nil; round++ {
		slog.Debug("auto_approve", "document_id", state.DocumentID, "round", state.HumanReview.Round)
		if _, err := pipeline.Review.Submit(ctx, state.DocumentID, domain.ReviewSubmission{
			ReviewID: state.HumanReview.ReviewID,
			Decision: domain.DecisionApprove,
			Reviewer: processActor,
			Feedback: "approved by docflowctl process --approve",
		}); err != nil {
			return nil, err
		}
		if state, err = pipeline.Runner.Advance(ctx, state.DocumentID); err != nil {
			return nil, err
		}
	}
	return state, nil
}

package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/docflow/internal/core/domain"
)

func newStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <document-id>",
		Short: "Show the workflow status of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := opts.client().Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), raw)
		},
	}
}

func newResultsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "results <document-id>",
		Short: "Show the final results of a finished document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := opts.client().Results(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), raw)
		},
	}
}

func newReviewsCommand(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "reviews",
		Short: "List documents waiting for review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := opts.client().PendingReviews(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), raw)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of documents")
	return cmd
}

func newReviewCommand(opts *rootOptions) *cobra.Command {
	var (
		decision string
		reviewer string
		feedback string
		reviewID string
		sets     []string
	)
	cmd := &cobra.Command{
		Use:   "review <document-id>",
		Short: "Resolve the open review of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mods, err := parseAssignments(sets)
			if err != nil {
				return err
			}
			raw, err := opts.client().SubmitReview(cmd.Context(), args[0], domain.ReviewSubmission{
				ReviewID:      reviewID,
				Decision:      domain.ReviewDecision(strings.ToLower(decision)),
				Reviewer:      reviewer,
				Feedback:      feedback,
				Modifications: mods,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), raw)
		},
	}
	cmd.Flags().StringVar(&decision, "decision", "", "approve, reject, modify or escalate")
	cmd.Flags().StringVar(&reviewer, "reviewer", "", "reviewer identity")
	cmd.Flags().StringVar(&feedback, "feedback", "", "free-text feedback")
	cmd.Flags().StringVar(&reviewID, "review-id", "", "open review id")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field correction as key=value, repeatable")
	_ = cmd.MarkFlagRequired("decision")
	_ = cmd.MarkFlagRequired("reviewer")
	return cmd
}

func newCancelCommand(opts *rootOptions) *cobra.Command {
	var actor, reason string
	cmd := &cobra.Command{
		Use:   "cancel <document-id>",
		Short: "Cancel an in-flight document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := opts.client().Cancel(cmd.Context(), args[0], actor, reason)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), raw)
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "docflowctl", "who requests the cancellation")
	cmd.Flags().StringVar(&reason, "reason", "", "why the document is cancelled")
	return cmd
}

// parseAssignments turns key=value pairs into field corrections. Values that
// parse as JSON (numbers, booleans, null, arrays, objects) keep their type.
func parseAssignments(pairs []string) (domain.Fields, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(domain.Fields, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q, want key=value", pair)
		}
		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err == nil {
			out[key] = parsed
			continue
		}
		out[key] = value
	}
	return out, nil
}

// Package cli implements docflowctl, the operator command line for docflow.
package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

const defaultAPIURL = "http://localhost:8080"

type rootOptions struct {
	apiURL  string
	timeout time.Duration
}

func (o *rootOptions) client() *Client {
	return NewClient(o.apiURL, o.timeout)
}

// NewRootCommand builds the docflowctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "docflowctl",
		Short:         "Operate the docflow document workflow",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	apiURL := os.Getenv("DOCFLOW_API_URL")
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	root.PersistentFlags().StringVar(&opts.apiURL, "api", apiURL, "docflow API base URL")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "request timeout")

	root.AddCommand(
		newStatusCommand(opts),
		newResultsCommand(opts),
		newReviewCommand(opts),
		newCancelCommand(opts),
		newReviewsCommand(opts),
		newRulesCommand(),
		newProcessCommand(),
	)
	return root
}

// Execute runs docflowctl with the process arguments.
func Execute() error {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		return err
	}
	return nil
}

func printJSON(w io.Writer, raw []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		_, werr := w.Write(raw)
		return werr
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}

func printValue(w io.Writer, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(raw))
	return err
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/docflow/internal/config"
)

func newRulesCommand() *cobra.Command {
	rules := &cobra.Command{
		Use:   "rules",
		Short: "Inspect workflow policy and rules",
	}
	rules.AddCommand(&cobra.Command{
		Use:   "validate <policy-file>",
		Short: "Check a policy file for structural mistakes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := config.LoadPolicy(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "policy is valid: %d rules, review threshold %.2f\n",
				len(policy.RuleSet()), policy.ReviewThreshold)
			return err
		},
	})
	return rules
}

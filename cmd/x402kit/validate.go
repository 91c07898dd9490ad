package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/x402dev/x402kit/config"
	"github.com/x402dev/x402kit/policy"
	"github.com/x402dev/x402kit/types"
)

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <policy.yaml>",
		Short: "Load a policy file and report rule conflicts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := config.Load(args[0])
			if err != nil {
				return err
			}

			report := policy.ValidateRules(file.Policies)
			printReport(report)

			if report.HasErrors {
				return &types.KitError{
					Code:    types.ErrInvalidPolicy,
					Message: fmt.Sprintf("%s: policy set has errors", args[0]),
				}
			}
			fmt.Printf("%s: %d rule(s) OK\n", args[0], len(file.Policies))
			return nil
		},
	}
}

func printReport(report policy.Report) {
	for _, issue := range report.Issues {
		fmt.Printf("[%s] %s\n", issue.Severity, issue.Message)
		if issue.Details != "" {
			fmt.Printf("    %s\n", issue.Details)
		}
		for _, s := range issue.Suggestions {
			fmt.Printf("    suggestion: %s\n", s)
		}
	}
}

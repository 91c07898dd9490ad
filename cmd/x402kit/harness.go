package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/x402dev/x402kit/harness"
	"github.com/x402dev/x402kit/logger"
)

func harnessCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "harness <scenario.yaml>",
		Short: "Run a YAML scenario against an in-process mock server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := harness.LoadScenario(args[0])
			if err != nil {
				return err
			}

			var log logger.Logger = logger.NoopLogger{}
			if verbose {
				log = logger.NewZapLogger("debug")
			}

			report, err := harness.NewRunner(log).Run(cmd.Context(), sc)
			if err != nil {
				return err
			}

			for _, res := range report.Results {
				if res.Err != nil {
					fmt.Printf("ERROR %s: %v\n", res.Name, res.Err)
					continue
				}
				if res.Passed {
					fmt.Printf("PASS  %s (%d)\n", res.Name, res.Status)
					continue
				}
				fmt.Printf("FAIL  %s (%d)\n", res.Name, res.Status)
				for _, f := range res.Failures {
					fmt.Printf("      %s\n", f)
				}
			}

			if !report.Passed() {
				return fmt.Errorf("%s: %d of %d step(s) failed",
					report.Scenario, report.Failed(), len(report.Results))
			}
			fmt.Printf("%s: %d step(s) passed\n", report.Scenario, len(report.Results))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log each step")
	return cmd
}

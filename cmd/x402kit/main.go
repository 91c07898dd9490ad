// Command x402kit is the toolkit CLI: a mock x402 facilitator with policy
// enforcement, a policy validator, and a YAML scenario harness.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/x402dev/x402kit"
	"github.com/x402dev/x402kit/lifecycle"
	"github.com/x402dev/x402kit/types"
)

// Exit codes.
const (
	exitOK      = 0
	exitGeneral = 1
	exitConfig  = 2
	exitNetwork = 3
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "x402kit",
		Short:         "Developer toolkit for the x402 payment protocol",
		Version:       x402kit.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(startCmd())
	rootCmd.AddCommand(stopCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(restartCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(harnessCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error onto the CLI exit-code contract: 2 for
// configuration errors, 3 for network and resource errors, 1 otherwise.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	if errors.Is(err, lifecycle.ErrPortInUse) ||
		errors.Is(err, lifecycle.ErrAlreadyRunning) ||
		errors.Is(err, lifecycle.ErrNotRunning) {
		return exitNetwork
	}

	var kitErr *types.KitError
	if errors.As(err, &kitErr) {
		switch kitErr.Code {
		case types.ErrConfig, types.ErrInvalidPolicy, types.ErrInvalidPort,
			types.ErrInvalidAmount, types.ErrInvalidCurrency, types.ErrInvalidNetwork:
			return exitConfig
		case types.ErrResource:
			return exitNetwork
		}
	}
	return exitGeneral
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/x402dev/x402kit"
	"github.com/x402dev/x402kit/lifecycle"
	"github.com/x402dev/x402kit/logger"
	"github.com/x402dev/x402kit/types"
)

// serveFlags are shared by serve and start.
type serveFlags struct {
	port       int
	policyFile string
	simulation string
	network    string
	stateDir   string
}

func (f *serveFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.port, "port", "p", 4021, "listen port (1024-65535)")
	cmd.Flags().StringVarP(&f.policyFile, "policy", "f", "", "policy YAML file")
	cmd.Flags().StringVar(&f.simulation, "simulation", "success", "simulation mode: success, failure, timeout")
	cmd.Flags().StringVar(&f.network, "network", "devnet", "solana network for invoices")
	cmd.Flags().StringVar(&f.stateDir, "state-dir", "", "state directory (default ~/.x402kit)")
}

// buildToolkit assembles the toolkit from the shared flags.
func (f *serveFlags) buildToolkit(log logger.Logger) (*x402kit.Toolkit, error) {
	mode, err := types.ParseSimulationMode(f.simulation)
	if err != nil {
		return nil, err
	}
	network, err := types.ParseNetwork(f.network)
	if err != nil {
		return nil, err
	}
	opts := []x402kit.Option{
		x402kit.WithLogger(log),
		x402kit.WithSimulationMode(mode),
		x402kit.WithNetwork(network),
	}

	if f.policyFile != "" {
		return x402kit.FromFile(f.policyFile, opts...)
	}
	return x402kit.New(x402kit.Config{}, opts...)
}

func serveCmd() *cobra.Command {
	var flags serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the mock facilitator in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(&flags)
		},
	}
	flags.register(cmd)
	return cmd
}

func runServe(flags *serveFlags) error {
	log := logger.NewZapLogger("info")

	port, err := types.NewPort(flags.port)
	if err != nil {
		return err
	}
	kit, err := flags.buildToolkit(log)
	if err != nil {
		return err
	}

	ctrl, err := lifecycle.NewController(flags.stateDir, log)
	if err != nil {
		return err
	}
	errCh, err := ctrl.Start(port, kit.Handler())
	if err != nil {
		return err
	}

	reapCtx, stopReaper := context.WithCancel(context.Background())
	defer stopReaper()
	kit.Engine().StartReaper(reapCtx, time.Minute, 10*time.Minute)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-sigCh:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return ctrl.Shutdown(ctx)
}

package main

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"github.com/x402dev/x402kit/lifecycle"
)

const stopWait = 5 * time.Second

func startCmd() *cobra.Command {
	var flags serveFlags
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the mock facilitator in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(&flags)
		},
	}
	flags.register(cmd)
	return cmd
}

// runStart re-execs this binary as a detached `serve` child, then waits for
// the child's pidfile to confirm it came up.
func runStart(flags *serveFlags) error {
	ctrl, err := lifecycle.NewController(flags.stateDir, nil)
	if err != nil {
		return err
	}
	if st, err := ctrl.ReadStatus(); err == nil && st.Running {
		return fmt.Errorf("%w (pid %d, port %s)", lifecycle.ErrAlreadyRunning, st.PID, st.Port)
	}

	args := []string{
		"serve",
		"--port", fmt.Sprint(flags.port),
		"--simulation", flags.simulation,
		"--network", flags.network,
	}
	if flags.policyFile != "" {
		args = append(args, "--policy", flags.policyFile)
	}
	if flags.stateDir != "" {
		args = append(args, "--state-dir", flags.stateDir)
	}

	child := exec.Command(os.Args[0], args...)
	child.Stdout = nil
	child.Stderr = nil
	if err := child.Start(); err != nil {
		return fmt.Errorf("spawn server: %w", err)
	}
	// The child owns its own lifetime from here.
	if err := child.Process.Release(); err != nil {
		return err
	}

	deadline := time.Now().Add(stopWait)
	for time.Now().Before(deadline) {
		if st, err := ctrl.ReadStatus(); err == nil && st.Running {
			fmt.Printf("mock server started (pid %d, port %s)\n", st.PID, st.Port)
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("server did not come up within %s", stopWait)
}

func stopCmd() *cobra.Command {
	var stateDir string
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the running mock facilitator",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := lifecycle.NewController(stateDir, nil)
			if err != nil {
				return err
			}
			if err := ctrl.Stop(stopWait); err != nil {
				return err
			}
			fmt.Println("mock server stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&stateDir, "state-dir", "", "state directory (default ~/.x402kit)")
	return cmd
}

func statusCmd() *cobra.Command {
	var stateDir string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report whether the mock facilitator is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := lifecycle.NewController(stateDir, nil)
			if err != nil {
				return err
			}
			st, err := ctrl.ReadStatus()
			if err != nil {
				return err
			}
			if !st.Running {
				fmt.Println("not running")
				return nil
			}
			fmt.Printf("running (pid %d, port %s)\n", st.PID, st.Port)
			return nil
		},
	}
	cmd.Flags().StringVar(&stateDir, "state-dir", "", "state directory (default ~/.x402kit)")
	return cmd
}

func restartCmd() *cobra.Command {
	var flags serveFlags
	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the mock facilitator",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := lifecycle.NewController(flags.stateDir, nil)
			if err != nil {
				return err
			}
			if st, err := ctrl.ReadStatus(); err == nil && st.Running {
				if err := ctrl.Stop(stopWait); err != nil {
					return err
				}
			}
			return runStart(&flags)
		},
	}
	flags.register(cmd)
	return cmd
}

// Package lifecycle manages a running mock server process: pidfile
// bookkeeping, port probing, and start/stop/status/restart.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/x402dev/x402kit/logger"
	"github.com/x402dev/x402kit/types"
)

// ErrAlreadyRunning reports a pidfile held by a live process.
var ErrAlreadyRunning = errors.New("mock server already running")

// ErrPortInUse reports the listen port is occupied by someone else.
var ErrPortInUse = errors.New("port already in use")

// ErrNotRunning reports there is nothing to stop.
var ErrNotRunning = errors.New("mock server not running")

// Controller drives a mock server's process lifecycle around a pidfile kept
// in a per-user state directory.
type Controller struct {
	stateDir string
	log      logger.Logger

	httpServer *http.Server
}

// NewController creates a controller over the given state directory. An
// empty dir defaults to ~/.x402kit.
func NewController(stateDir string, log logger.Logger) (*Controller, error) {
	if stateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve state dir: %w", err)
		}
		stateDir = filepath.Join(home, ".x402kit")
	}
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Controller{stateDir: stateDir, log: log}, nil
}

// PidfilePath returns the pidfile location.
func (c *Controller) PidfilePath() string {
	return filepath.Join(c.stateDir, "pid")
}

// Status describes the recorded server process.
type Status struct {
	Running bool
	PID     int
	Port    types.Port
}

// Start binds the port and serves the handler in the calling process,
// recording this process in the pidfile. It returns once the listener is
// accepting; Serve errors after that surface on the returned channel.
func (c *Controller) Start(port types.Port, handler http.Handler) (<-chan error, error) {
	if st, err := c.ReadStatus(); err == nil && st.Running {
		return nil, fmt.Errorf("%w (pid %d, port %s)", ErrAlreadyRunning, st.PID, st.Port)
	}

	ln, err := c.probe(port)
	if err != nil {
		return nil, err
	}

	if err := c.writePidfile(os.Getpid(), port); err != nil {
		ln.Close()
		return nil, err
	}

	c.httpServer = &http.Server{Handler: handler}
	errCh := make(chan error, 1)
	go func() {
		serveErr := c.httpServer.Serve(ln)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
		close(errCh)
	}()

	c.log.Info("mock server started", map[string]any{
		"port": port.Int(),
		"pid":  os.Getpid(),
	})
	return errCh, nil
}

// probe attempts the bind up front so occupancy surfaces as a dedicated
// error instead of a late Serve failure.
func (c *Controller) probe(port types.Port) (net.Listener, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port.Int()))
	if err != nil {
		return nil, fmt.Errorf("%w: %d", ErrPortInUse, port.Int())
	}
	return ln, nil
}

// Shutdown gracefully stops the in-process server and removes the pidfile.
func (c *Controller) Shutdown(ctx context.Context) error {
	if c.httpServer == nil {
		return ErrNotRunning
	}
	err := c.httpServer.Shutdown(ctx)
	c.httpServer = nil
	if rmErr := os.Remove(c.PidfilePath()); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
		err = rmErr
	}
	c.log.Info("mock server stopped", nil)
	return err
}

// Stop signals the recorded process with SIGTERM, waits for it to exit, and
// removes the pidfile. Used against a server started by another process.
func (c *Controller) Stop(wait time.Duration) error {
	st, err := c.ReadStatus()
	if err != nil {
		return err
	}
	if !st.Running {
		return ErrNotRunning
	}

	proc, err := os.FindProcess(st.PID)
	if err != nil {
		return fmt.Errorf("find process %d: %w", st.PID, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal process %d: %w", st.PID, err)
	}

	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		if !processAlive(st.PID) {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	if err := os.Remove(c.PidfilePath()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ReadStatus reports whether the pidfile names a live process.
func (c *Controller) ReadStatus() (Status, error) {
	data, err := os.ReadFile(c.PidfilePath())
	if err != nil {
		if os.IsNotExist(err) {
			return Status{}, nil
		}
		return Status{}, err
	}

	lines := strings.SplitN(strings.TrimSpace(string(data)), "\n", 2)
	if len(lines) != 2 {
		return Status{}, fmt.Errorf("malformed pidfile %s", c.PidfilePath())
	}
	pid, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return Status{}, fmt.Errorf("malformed pid in pidfile: %w", err)
	}
	portNum, err := strconv.Atoi(strings.TrimSpace(lines[1]))
	if err != nil {
		return Status{}, fmt.Errorf("malformed port in pidfile: %w", err)
	}
	port, err := types.NewPort(portNum)
	if err != nil {
		return Status{}, err
	}

	return Status{
		Running: processAlive(pid),
		PID:     pid,
		Port:    port,
	}, nil
}

// writePidfile records "<pid>\n<port>\n", failing if another live holder
// exists. Creation is exclusive; a stale file from a dead process is
// replaced.
func (c *Controller) writePidfile(pid int, port types.Port) error {
	path := c.PidfilePath()
	content := fmt.Sprintf("%d\n%d\n", pid, port.Int())

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if !os.IsExist(err) {
			return err
		}
		st, readErr := c.ReadStatus()
		if readErr == nil && st.Running {
			return ErrAlreadyRunning
		}
		// Stale pidfile; take it over.
		return os.WriteFile(path, []byte(content), 0o644)
	}
	defer f.Close()

	_, err = f.WriteString(content)
	return err
}

// processAlive probes a PID with signal 0.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

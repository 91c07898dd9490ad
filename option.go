package x402kit

import (
	"time"

	"github.com/x402dev/x402kit/logger"
	"github.com/x402dev/x402kit/metrics"
	"github.com/x402dev/x402kit/types"
)

type Option func(*Toolkit)

func WithLogger(l logger.Logger) Option {
	return func(t *Toolkit) {
		t.log = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(t *Toolkit) {
		t.rec = r
	}
}

// WithClock substitutes the time source; tests use it to drive window
// arithmetic deterministically.
func WithClock(clock func() time.Time) Option {
	return func(t *Toolkit) {
		t.clock = clock
	}
}

func WithSimulationMode(mode types.SimulationMode) Option {
	return func(t *Toolkit) {
		t.mode = mode
	}
}

// WithNetwork sets the invoice network when the Config does not name one,
// e.g. when the toolkit is built from a policy file.
func WithNetwork(network types.Network) Option {
	return func(t *Toolkit) {
		t.network = network
	}
}

// WithTimeoutDelay sets how long the timeout simulation stalls before
// answering 408.
func WithTimeoutDelay(d time.Duration) Option {
	return func(t *Toolkit) {
		t.delay = d
	}
}

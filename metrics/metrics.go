// Package metrics defines the toolkit's instrumentation contract.
package metrics

import "time"

// Recorder receives admission and handshake events.
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}

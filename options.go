package wirebus

import (
	"time"

	"github.com/rs/zerolog"
)

// Option configures a Bus.
type Option func(*config)

// config contains construction-time configuration for the bus.
type config struct {
	// queueSize is the capacity of the bounded message queue.
	queueSize int

	// strict makes requests to unknown modules fail with ErrNotFound
	// instead of succeeding silently.
	strict bool

	// logger receives severity-gated bus diagnostics.
	logger zerolog.Logger

	// onError is the initial error-reporting callback.
	onError ErrorFunc

	// maxWait bounds how long the dispatcher blocks on its queue so it
	// stays responsive; minWait prevents busy-looping on overdue timers.
	maxWait time.Duration
	minWait time.Duration
}

// defaultConfig returns the default bus configuration.
func defaultConfig() config {
	return config{
		queueSize: 16,
		logger:    zerolog.Nop(),
		maxWait:   100 * time.Millisecond,
		minWait:   time.Millisecond,
	}
}

// WithQueueSize sets the capacity of the message queue.
func WithQueueSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// WithStrict enables strict mode: requests and routes addressed to
// unknown modules fail with ErrNotFound instead of being dropped.
func WithStrict(strict bool) Option {
	return func(c *config) {
		c.strict = strict
	}
}

// WithLogger sets the logger for bus diagnostics. The default logger
// discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithErrorFunc sets the initial error-reporting callback. It can be
// replaced at runtime with Bus.OnError.
func WithErrorFunc(fn ErrorFunc) Option {
	return func(c *config) {
		c.onError = fn
	}
}

package wirebus

import "errors"

// Sentinel errors for the bus.
var (
	// ErrNotRunning is returned when an operation is attempted before
	// Start or after Stop.
	ErrNotRunning = errors.New("bus is not running")

	// ErrInvalidArgument is returned for malformed patterns, oversized
	// identifiers and missing required fields.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAlreadyExists is returned when registering a module whose name
	// is already taken.
	ErrAlreadyExists = errors.New("module already registered")

	// ErrNotFound is returned for an unknown module in strict mode and
	// for unknown subscription or timer ids on removal.
	ErrNotFound = errors.New("not found")

	// ErrNotSupported is returned when the target module has no request
	// handler or its handler declines the action.
	ErrNotSupported = errors.New("not supported")

	// ErrTimeout is returned when a blocking request exceeds its
	// deadline.
	ErrTimeout = errors.New("request timed out")

	// ErrQueueFull is returned when the bounded message queue cannot
	// accept another message. Callers must treat this as a drop, not a
	// queued retry.
	ErrQueueFull = errors.New("message queue is full")
)

package bridge

import "errors"

// Domain errors for the bridge package.
var (
	// ErrConnection is returned by Connect when the broker is unreachable
	// or rejects the connection. It wraps the broker client's error.
	ErrConnection = errors.New("bridge: broker connection failed")

	// ErrPrinterUnavailable is returned by Connect when the printer's
	// device info cannot be read, so no last will can be built.
	ErrPrinterUnavailable = errors.New("bridge: printer unavailable")

	// ErrMissingTopic is returned by Connect when a signal has no
	// configured topic.
	ErrMissingTopic = errors.New("bridge: missing topic")

	// ErrInvalidConfig is returned by Connect when a required setting is
	// missing or out of range.
	ErrInvalidConfig = errors.New("bridge: invalid configuration")
)

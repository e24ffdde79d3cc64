package exception

import "errors"

// Error taxonomy. Every error returned by this module wraps exactly one of these,
// so callers can classify failures with errors.Is.
var (
	// ErrValidation is returned for input rejected before any I/O happens.
	ErrValidation = errors.New("validation error")

	// ErrCommunication is returned when a datagram cannot be sent or a reply does not arrive.
	ErrCommunication = errors.New("communication error")

	// ErrProtocol is returned for FAILURE replies, unknown handles and malformed messages.
	ErrProtocol = errors.New("protocol error")

	// ErrOperation is returned when an operation on a data block fails.
	ErrOperation = errors.New("operation error")
)

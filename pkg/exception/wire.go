package exception

import "fmt"

// Wire codec errors
var (
	ErrDelimiter           = fmt.Errorf("%w: payload contains the reserved delimiter", ErrValidation)
	ErrUnknownMessageType  = fmt.Errorf("%w: unknown message type", ErrProtocol)
	ErrMalformedMessage    = fmt.Errorf("%w: malformed message", ErrProtocol)
	ErrUnsupportedVersion  = fmt.Errorf("%w: unsupported envelope version", ErrProtocol)
	ErrUnknownArgumentType = fmt.Errorf("%w: unknown argument type", ErrProtocol)
)

package exception

import "fmt"

// RPC errors
var (
	ErrFailureStatus  = fmt.Errorf("%w: failure status returned", ErrProtocol)
	ErrUnknownHandle  = fmt.Errorf("%w: unknown handle", ErrProtocol)
	ErrUnknownMethod  = fmt.Errorf("%w: unknown method", ErrProtocol)
	ErrUnexpectedType = fmt.Errorf("%w: unexpected result type", ErrProtocol)
	ErrArgument       = fmt.Errorf("%w: argument mismatch", ErrProtocol)

	ErrProxyNotCreated = fmt.Errorf("%w: proxy has no remote handle", ErrValidation)
	ErrProxyCreated    = fmt.Errorf("%w: proxy already owns a remote handle", ErrValidation)
	ErrProxyDestroyed  = fmt.Errorf("%w: proxy already destroyed", ErrValidation)
	ErrNilFactory      = fmt.Errorf("%w: nil factory", ErrValidation)
	ErrNilServer       = fmt.Errorf("%w: nil server", ErrValidation)
	ErrServerListening = fmt.Errorf("%w: server already listening", ErrValidation)
	ErrServerNotListen = fmt.Errorf("%w: server not listening", ErrValidation)
)

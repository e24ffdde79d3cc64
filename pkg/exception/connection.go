package exception

import "fmt"

// Communication errors
var (
	ErrSendFailed     = fmt.Errorf("%w: send datagram", ErrCommunication)
	ErrReceiveTimeout = fmt.Errorf("%w: receive timed out", ErrCommunication)
	ErrConnClosed     = fmt.Errorf("%w: connection closed", ErrCommunication)
)

package exception

import "fmt"

// Data block errors
var (
	ErrUnknownItem      = fmt.Errorf("%w: block: unknown item", ErrOperation)
	ErrUnknownTopic     = fmt.Errorf("%w: block: unknown topic", ErrOperation)
	ErrIndexOutOfRange  = fmt.Errorf("%w: block: index out of range", ErrOperation)
	ErrInvalidBlockSize = fmt.Errorf("%w: block: invalid size", ErrOperation)
	ErrInvalidRange     = fmt.Errorf("%w: block: invalid snapshot range", ErrOperation)
	ErrDataLost         = fmt.Errorf("%w: block: unread data was overwritten", ErrOperation)
	ErrBlockClosed      = fmt.Errorf("%w: block: closed", ErrOperation)
)

package exception

import "fmt"

// UDP errors
var (
	// ErrEmptyAddressUDP is returned when a socket address is empty.
	ErrEmptyAddressUDP = fmt.Errorf("%w: udp: empty address", ErrValidation)

	// ErrNilClientUDP is returned when a nil client receiver is used.
	ErrNilClientUDP = fmt.Errorf("%w: udp: nil client", ErrValidation)
)

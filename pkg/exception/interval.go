package exception

import "fmt"

// Intervalize errors
var (
	ErrNilCallback      = fmt.Errorf("%w: intervalize: callback must not be nil", ErrValidation)
	ErrInvalidInterval  = fmt.Errorf("%w: intervalize: invalid interval", ErrValidation)
	ErrInvalidPeriod    = fmt.Errorf("%w: intervalize: invalid update period", ErrValidation)
	ErrDateTimeDisabled = fmt.Errorf("%w: intervalize: block does not have date-time enabled", ErrValidation)
	ErrMissingItem      = fmt.Errorf("%w: intervalize: block does not have item", ErrValidation)
	ErrMissingTopic     = fmt.Errorf("%w: intervalize: block does not have topic", ErrValidation)
	ErrNonNumericPoint  = fmt.Errorf("%w: intervalize: point value is not numeric", ErrOperation)
	ErrAlreadyStarted   = fmt.Errorf("%w: intervalize: already started", ErrValidation)
)

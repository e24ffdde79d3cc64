package exception

import "fmt"

var ErrConfig = fmt.Errorf("%w: config", ErrValidation)

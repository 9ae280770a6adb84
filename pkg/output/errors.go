package output

import (
	"errors"
	"fmt"
)

// Output control errors.
var (
	// ErrNotFound means a command or lookup referenced an unknown output.
	ErrNotFound = errors.New("output not found")

	// ErrInvalidQualifier means the command's qualifier is not supported by
	// the output's type. No driver call is attempted.
	ErrInvalidQualifier = errors.New("invalid qualifier")

	// ErrDriverFailure means the driver failed or timed out. The output is
	// marked unreachable. The command is not retried.
	ErrDriverFailure = errors.New("driver failure")

	// ErrConfiguration is the parent of registry configuration errors.
	ErrConfiguration = errors.New("configuration error")

	// ErrUnknownType means an output type is not in the registered
	// capability set.
	ErrUnknownType = fmt.Errorf("%w: unknown output type", ErrConfiguration)

	// ErrInvalidOperation means a registry operation referenced an unknown
	// identifier or carried invalid arguments.
	ErrInvalidOperation = fmt.Errorf("%w: invalid operation", ErrConfiguration)
)

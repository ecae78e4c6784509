package relay

import "errors"

var (
	ErrBootstrap           = errors.New("relay bootstrap failed")
	ErrListVariables       = errors.New("failed to list variables")
	ErrWriteFailed         = errors.New("variable write failed")
	ErrInvalidConcurrency  = errors.New("write_concurrency must be positive")
	errMissingRemoteAPI    = errors.New("remote API is required")
	errUnexpectedFlightVal = errors.New("unexpected single-flight result")
)

package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrRetryExhausted     = errors.New("retry limit reached")
	ErrJobConflict        = errors.New("job already claimed")
	ErrInvalidTransition  = errors.New("invalid job status transition")
	ErrRateLimited        = errors.New("too many requests")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid database execution context")
)

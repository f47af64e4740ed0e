package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("operation failed")
	ErrInvalidExecContext = errors.New("invalid exec context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Billing errors
	ErrUnknownPlan         = errors.New("unknown plan")
	ErrPriceOutOfRange     = errors.New("plan price outside configured sane range")
	ErrChargeConflict      = errors.New("different charge already attached to session")
	ErrIntentNotResolvable = errors.New("no local intent resolvable for charge")
)

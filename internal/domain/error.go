package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrPackageUnavailable = errors.New("package does not exist or is inactive")
	ErrInvalidAmount      = errors.New("amount outside the allowed bounds")

	// Settlement taxonomy. Webhook handlers map these to HTTP statuses:
	// terminal kinds are acknowledged so the provider stops redelivering,
	// retryable kinds surface as 5xx so it retries.
	ErrSignatureInvalid          = errors.New("webhook signature verification failed")
	ErrCorrelationNotFound       = errors.New("settlement event matches no payment")
	ErrAmbiguousCorrelation      = errors.New("settlement event matches more than one pending payment")
	ErrCompensationInconsistency = errors.New("refund received for a payment that never succeeded")
	ErrProviderCallFailure       = errors.New("provider call failed")

	// Storage-layer sentinels
	ErrOperationFailed    = errors.New("storage operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid transaction execution context")
)

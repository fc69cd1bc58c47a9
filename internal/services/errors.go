package services

import "errors"

// Define common service errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict") // e.g., a second open agreement for a job
	ErrValidation   = errors.New("validation failed")
	ErrInvalidState = errors.New("invalid state for operation")

	// ErrGateway wraps settlement API failures. The caller may retry the step.
	ErrGateway = errors.New("settlement gateway error")
	// ErrTrustlineMissing means a counterparty wallet cannot hold the escrow asset.
	ErrTrustlineMissing = errors.New("wallet is missing the escrow asset trustline")
	// ErrLedgerUnreconciled means the external effect happened but could not be recorded.
	ErrLedgerUnreconciled = errors.New("settlement succeeded but the ledger could not be updated")
	// ErrSignerUnavailable means no platform signing key is configured.
	ErrSignerUnavailable = errors.New("platform signer is not configured")
)

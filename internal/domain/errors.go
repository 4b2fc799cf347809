package domain

import "errors"

// Run-level error taxonomy. The engine wraps collaborator failures in one
// of these so callers can branch with errors.Is.
var (
	// ErrRequestNotFound: the MatchRequest does not exist. The run
	// returns empty with this error signaled.
	ErrRequestNotFound = errors.New("match request not found")

	// ErrCatalogUnavailable: the catalog read failed. Recoverable via
	// retry; the run aborts with no partial writes.
	ErrCatalogUnavailable = errors.New("catalog unavailable")

	// ErrPersistence: the result write failed after scoring. The whole
	// run is retried; results are never partially committed.
	ErrPersistence = errors.New("persistence failure")

	// ErrInvalidConfig: weights or thresholds are out of range. Fatal
	// at startup.
	ErrInvalidConfig = errors.New("invalid configuration")
)

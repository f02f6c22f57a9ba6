package store

import "errors"

var (
	// ErrNotFound is returned when a job id is unknown or has been evicted.
	// Callers must treat it as distinct from "still queued".
	ErrNotFound = errors.New("store: job not found")
)

package journal

import "errors"

var (
	// ErrCycleIDRequired is returned when a cycle or entry has no cycle id.
	ErrCycleIDRequired = errors.New("journal: cycle id is required")

	// ErrCycleNotFound is returned when finishing a cycle that was never started.
	ErrCycleNotFound = errors.New("journal: cycle not found")
)

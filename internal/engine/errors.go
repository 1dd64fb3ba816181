package engine

import "errors"

var (
	// ErrPersistence is returned when a store write keeps failing after the
	// bounded retries; the campaign is moved to the failed status with the
	// triggering reason recorded.
	ErrPersistence = errors.New("persistent store write failure")
	// ErrInterrupted is returned when the dispatch context is cancelled
	// mid-loop; the campaign is checkpointed and paused so a re-trigger
	// resumes from the same position.
	ErrInterrupted = errors.New("dispatch interrupted")
)

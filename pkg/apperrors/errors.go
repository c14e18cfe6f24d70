package apperrors

import "errors"

var (
	// ErrProviderFailure wraps failed embedding or LLM calls.
	ErrProviderFailure = errors.New("provider failure")
	// ErrDataIntegrity marks a query record that references a passage no longer stored.
	ErrDataIntegrity = errors.New("data integrity warning")
	// ErrSchedulerRun marks an ingestion step that failed during an update run.
	ErrSchedulerRun = errors.New("scheduler run error")

	ErrInvalidFeedback = errors.New("feedback must be -1, 0 or 1")
	ErrNotFound        = errors.New("not found")
	ErrInvalidCron     = errors.New("invalid cron expression")
)

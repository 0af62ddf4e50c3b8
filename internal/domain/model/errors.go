package model

import "errors"

// Pipeline error taxonomy. Stage runners tag every returned error with
// exactly one of these sentinels; workers classify with errors.Is to decide
// between dead-lettering, backoff retry, delayed requeue and terminal failure.
var (
	// ErrValidation marks a malformed event or attempt payload. Never
	// retried; the job is dead-lettered and the run fails at its stage.
	ErrValidation = errors.New("validation error")

	// ErrTransient marks a recoverable fault such as a prediction service
	// timeout or a store write conflict. Retried with backoff up to a cap.
	ErrTransient = errors.New("transient error")

	// ErrLockContention marks a job that lost the per-(user, topic) lease
	// race. The job is requeued with a delay, not counted as a failure.
	ErrLockContention = errors.New("lock contention")

	// ErrFatal marks an unrecoverable fault, including an exhausted retry
	// budget. The run is marked failed and no further stages execute.
	ErrFatal = errors.New("fatal error")
)

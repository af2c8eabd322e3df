package standarderrors

import "errors"

var (
	// ErrValidation is returned for malformed or missing input. It is always
	// surfaced synchronously to the caller; a job is never created from
	// invalid input.
	ErrValidation = errors.New("validation error")

	// ErrResourceInUse is returned when a plan or configuration cannot be
	// deleted because a non-terminal job still references it.
	ErrResourceInUse = errors.New("resource in use")

	// ErrInfeasibleConfiguration is returned when the configuration makes
	// optimization structurally impossible, e.g. no active calendar days for
	// a non-empty plan.
	ErrInfeasibleConfiguration = errors.New("infeasible configuration")

	// ErrInfeasible is returned when the search exhausted its budget without
	// finding an assignment that satisfies all hard constraints.
	ErrInfeasible = errors.New("no feasible assignment found")

	// ErrDeadlineExceeded is returned when a job exceeds its wall-clock
	// budget.
	ErrDeadlineExceeded = errors.New("job deadline exceeded")

	// ErrNotReady is returned when a result is requested for a job that has
	// not completed.
	ErrNotReady = errors.New("result not ready")

	// ErrJobNotFound is returned when no job with the given id exists.
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidTransition is returned by the job state machine when an
	// event is not allowed from the current state.
	ErrInvalidTransition = errors.New("invalid job state transition")
)

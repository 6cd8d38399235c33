package scheduler

import "errors"

var (
	// ErrAlreadyRegistered is returned when a job name is registered
	// twice before installation; the second registration is rejected
	// rather than silently replacing the first.
	ErrAlreadyRegistered = errors.New("scheduler: job already registered")

	// ErrNotStarted names the not-started condition. No operation in
	// this package returns it: registering jobs before Start queues them.
	ErrNotStarted = errors.New("scheduler: not started")
)

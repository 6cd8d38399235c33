package scheduler

import "context"

// ExecutorJob is an in-process fixed-delay job. Task is the opaque
// effectful operation run on each tick; any error it returns is logged
// and swallowed so the next tick still runs.
type ExecutorJob struct {
	Name  string
	Delay FixedDelay
	Task  func(ctx context.Context) error
}

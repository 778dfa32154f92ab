// Package scheduler provides the interval loop that drains pending outbound messages.
package scheduler

import "errors"

var (
	ErrSchedulerAlreadyRunning = errors.New("scheduler is already running")
	ErrSchedulerNotRunning     = errors.New("scheduler is not running")
	ErrTaskPanicked            = errors.New("scheduled task panicked")
)

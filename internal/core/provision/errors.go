// Package provision runs the per-host provisioning sequence and schedules it across hosts.
package provision

import (
	"fmt"
	"time"
)

// ConnectionError represents a failure to connect or authenticate to a host.
type ConnectionError struct {
	Target string
	Cause  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.Target, e.Cause)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// StepError is the terminal failure of a host's sequence.
type StepError struct {
	Host     string
	Stage    Stage
	StepNum  int
	TotalNum int
	Step     string
	Cause    error
}

func (e *StepError) Error() string {
	if e.StepNum == 0 {
		return fmt.Sprintf("%s on '%s' failed: %v", e.Stage, e.Host, e.Cause)
	}
	return fmt.Sprintf("%s step %d/%d (%s) on '%s' failed: %v", e.Stage, e.StepNum, e.TotalNum, e.Step, e.Host, e.Cause)
}

func (e *StepError) Unwrap() error { return e.Cause }

// CommandError represents a remote command that could not be started or did not exit cleanly.
type CommandError struct {
	Command    string
	Output     string
	ExitStatus int
	Cause      error
}

func (e *CommandError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("command '%s' failed: %v\nOutput: %s", e.Command, e.Cause, e.Output)
	}
	return fmt.Sprintf("command '%s' failed: %v", e.Command, e.Cause)
}

func (e *CommandError) Unwrap() error { return e.Cause }

// APIError represents a failed control plane call. Status is zero when the
// panel could not be reached at all.
type APIError struct {
	Endpoint string
	Status   int
	Body     string
	Cause    error
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("request to %s failed: %v", e.Endpoint, e.Cause)
	}
	if e.Cause != nil {
		return fmt.Sprintf("request to %s returned %d: %v", e.Endpoint, e.Status, e.Cause)
	}
	return fmt.Sprintf("request to %s returned %d: %s", e.Endpoint, e.Status, e.Body)
}

func (e *APIError) Unwrap() error { return e.Cause }

// TimeoutError is returned when a command or registration exceeds its time limit.
type TimeoutError struct {
	Operation string
	Limit     time.Duration
	Cause     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("'%s' did not complete within %s", e.Operation, e.Limit)
}

func (e *TimeoutError) Unwrap() error { return e.Cause }

package senaka

import "fmt"

// ErrProvider reports a failed chat completion: a non-2xx response or a
// transport failure (Status 0).
type ErrProvider struct {
	Status int
	Body   string
	Cause  error
}

func (e *ErrProvider) Error() string {
	if e.Status == 0 && e.Cause != nil {
		return fmt.Sprintf("provider: %v", e.Cause)
	}
	return fmt.Sprintf("provider: http %d: %s", e.Status, e.Body)
}

func (e *ErrProvider) Unwrap() error { return e.Cause }

// ErrValidation reports a structured output that stayed malformed after the
// repair budget was spent. Kind names the phase ("worker-action",
// "main-decision", "planning"); Step is set for worker failures.
type ErrValidation struct {
	Kind     string
	Reason   string
	Attempts int
	Step     int
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("%s: invalid after %d attempts: %s", e.Kind, e.Attempts, e.Reason)
}

// ErrPolicy reports a command the safety gate refused to pass to the sandbox.
type ErrPolicy struct {
	Reason string
}

func (e *ErrPolicy) Error() string {
	return "policy: " + e.Reason
}

// ErrConfig reports an unusable run configuration: a missing askUser callback
// when the worker asks, an unreadable worker prompt file, or absent loop
// dependencies. Not recoverable within a run.
type ErrConfig struct {
	Reason string
}

func (e *ErrConfig) Error() string {
	return "config: " + e.Reason
}

// ErrStore reports a failed session persistence operation. The run aborts;
// the session on disk keeps its last durable state.
type ErrStore struct {
	Op  string
	Err error
}

func (e *ErrStore) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *ErrStore) Unwrap() error { return e.Err }

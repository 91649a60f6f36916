package gemini

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyPrompt indicates Execute was called with an empty prompt
	ErrEmptyPrompt = errors.New("prompt cannot be empty")

	// ErrEmptyWorkDir indicates Execute was called with an empty working directory
	ErrEmptyWorkDir = errors.New("working directory cannot be empty")

	// ErrTimeout indicates the Gemini CLI run exceeded its time bound
	ErrTimeout = errors.New("gemini execution timed out")
)

// ExecutionError wraps a Gemini CLI run that exited unsuccessfully
type ExecutionError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("gemini execution failed (exit %d)", e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

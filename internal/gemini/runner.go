// Package gemini runs the Gemini CLI against a repository working tree and
// prepares the configuration files it reads.
package gemini

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/jonathan/codecraft/internal/metrics"
)

// maxCapturedOutput bounds how much of stdout/stderr is kept per run.
const maxCapturedOutput = 64 << 10

// ExecuteOptions configures one Gemini CLI run
type ExecuteOptions struct {
	// Prompt is the instruction passed with -p
	Prompt string

	// WorkDir is the repository working tree the CLI edits
	WorkDir string

	// Model overrides the CLI's default model when set
	Model string

	// Timeout bounds the run; zero means the runner default
	Timeout time.Duration
}

// ExecuteResult contains the outcome of a Gemini CLI run
type ExecuteResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Runner executes the Gemini CLI as a one-shot, non-interactive process.
type Runner interface {
	Execute(ctx context.Context, opts ExecuteOptions) (*ExecuteResult, error)
}

// CLIRunner implements Runner by invoking the gemini binary as a subprocess
type CLIRunner struct {
	binary         string
	defaultTimeout time.Duration
}

// NewCLIRunner creates a runner for the given binary. An empty binary means "gemini".
func NewCLIRunner(binary string, defaultTimeout time.Duration) *CLIRunner {
	if binary == "" {
		binary = "gemini"
	}
	if defaultTimeout <= 0 {
		defaultTimeout = 10 * time.Minute
	}
	return &CLIRunner{binary: binary, defaultTimeout: defaultTimeout}
}

// Execute runs the CLI and waits for it to exit or for the timeout to expire.
// A timed-out run returns ErrTimeout; a nonzero exit returns *ExecutionError.
func (r *CLIRunner) Execute(ctx context.Context, opts ExecuteOptions) (*ExecuteResult, error) {
	if opts.Prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if opts.WorkDir == "" {
		return nil, ErrEmptyWorkDir
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(cmdCtx, r.binary, r.buildArgs(opts)...)
	cmd.Dir = opts.WorkDir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Children that inherit the pipes must not keep Wait blocked past the deadline.
	cmd.WaitDelay = 5 * time.Second

	log := clog.FromContext(ctx).With("workdir", opts.WorkDir)
	log.Infof("Running %s (timeout %s)", r.binary, timeout)

	start := time.Now()
	err := cmd.Run()
	result := &ExecuteResult{
		Stdout:   tail(stdout.String()),
		Stderr:   tail(stderr.String()),
		Duration: time.Since(start),
	}

	switch {
	case err == nil:
		metrics.GeminiRuns.WithLabelValues("success").Inc()
		log.Infof("Gemini CLI finished in %s", result.Duration)
		return result, nil

	case errors.Is(cmdCtx.Err(), context.DeadlineExceeded):
		metrics.GeminiRuns.WithLabelValues("timeout").Inc()
		log.Warnf("Gemini CLI timed out after %s", timeout)
		result.ExitCode = -1
		return result, ErrTimeout
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
	} else {
		result.ExitCode = -1
	}
	metrics.GeminiRuns.WithLabelValues("failure").Inc()
	log.Warnf("Gemini CLI failed (exit %d): %v", result.ExitCode, err)
	return result, &ExecutionError{
		ExitCode: result.ExitCode,
		Stderr:   strings.TrimSpace(result.Stderr),
		Err:      err,
	}
}

// buildArgs constructs the command-line arguments for the gemini binary
func (r *CLIRunner) buildArgs(opts ExecuteOptions) []string {
	args := []string{"--yolo", "-p", opts.Prompt}
	if opts.Model != "" {
		args = append(args, "-m", opts.Model)
	}
	return args
}

// tail keeps the last maxCapturedOutput bytes of s.
func tail(s string) string {
	if len(s) <= maxCapturedOutput {
		return s
	}
	return s[len(s)-maxCapturedOutput:]
}

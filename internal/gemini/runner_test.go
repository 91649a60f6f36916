package gemini

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScript creates an executable shell script standing in for the gemini binary.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gemini")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestCLIRunner_Execute_Validation(t *testing.T) {
	r := NewCLIRunner("gemini", time.Second)

	_, err := r.Execute(context.Background(), ExecuteOptions{WorkDir: t.TempDir()})
	assert.ErrorIs(t, err, ErrEmptyPrompt)

	_, err = r.Execute(context.Background(), ExecuteOptions{Prompt: "do it"})
	assert.ErrorIs(t, err, ErrEmptyWorkDir)
}

func TestCLIRunner_Execute_Success(t *testing.T) {
	bin := writeScript(t, `echo "args: $@"; pwd; echo changed > result.txt`)
	dir := t.TempDir()

	res, err := NewCLIRunner(bin, 5*time.Second).Execute(context.Background(), ExecuteOptions{
		Prompt:  "add tests",
		WorkDir: dir,
		Model:   "gemini-2.5-pro",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, res.Stdout, "args: --yolo -p add tests -m gemini-2.5-pro")
	assert.FileExists(t, filepath.Join(dir, "result.txt"))
}

func TestCLIRunner_Execute_NonZeroExit(t *testing.T) {
	bin := writeScript(t, `echo "quota exceeded" >&2; exit 3`)

	res, err := NewCLIRunner(bin, 5*time.Second).Execute(context.Background(), ExecuteOptions{
		Prompt:  "add tests",
		WorkDir: t.TempDir(),
	})
	require.Error(t, err)

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, 3, execErr.ExitCode)
	assert.Equal(t, "quota exceeded", execErr.Stderr)
	assert.Equal(t, 3, res.ExitCode)
	assert.False(t, errors.Is(err, ErrTimeout))
}

func TestCLIRunner_Execute_Timeout(t *testing.T) {
	bin := writeScript(t, `exec sleep 5`)

	start := time.Now()
	_, err := NewCLIRunner(bin, time.Minute).Execute(context.Background(), ExecuteOptions{
		Prompt:  "add tests",
		WorkDir: t.TempDir(),
		Timeout: 200 * time.Millisecond,
	})
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestCLIRunner_Execute_MissingBinary(t *testing.T) {
	_, err := NewCLIRunner(filepath.Join(t.TempDir(), "missing"), time.Second).Execute(context.Background(), ExecuteOptions{
		Prompt:  "add tests",
		WorkDir: t.TempDir(),
	})
	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, -1, execErr.ExitCode)
}

func TestBuildArgs(t *testing.T) {
	r := NewCLIRunner("", 0)
	assert.Equal(t, []string{"--yolo", "-p", "x"}, r.buildArgs(ExecuteOptions{Prompt: "x"}))
	assert.Equal(t, []string{"--yolo", "-p", "x", "-m", "m"}, r.buildArgs(ExecuteOptions{Prompt: "x", Model: "m"}))
	assert.Equal(t, "gemini", r.binary)
	assert.Equal(t, 10*time.Minute, r.defaultTimeout)
}

func TestTail(t *testing.T) {
	assert.Equal(t, "short", tail("short"))

	long := strings.Repeat("a", maxCapturedOutput) + "end"
	got := tail(long)
	assert.Len(t, got, maxCapturedOutput)
	assert.True(t, strings.HasSuffix(got, "end"))
}

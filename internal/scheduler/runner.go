package scheduler

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/apfelbeet/crs/internal/dvcs"
	"github.com/apfelbeet/crs/internal/regression"
)

// OutputFunc opens the stdout/stderr writers a job's child process
// should use, given the commit under test. Returning nil, nil, func(){}
// discards output.
type OutputFunc func(commit string) (stdout, stderr io.Writer, closeFn func())

// ProcessRunner is the default Runner: it checks out the commit via a
// dvcs.DVCS, spawns the test script as a child process, and polls for
// completion so it can react to a cancellation signal mid-run.
type ProcessRunner struct {
	DVCS       dvcs.DVCS
	Script     string
	ScriptArgs []string
	Output     OutputFunc
	// PollInterval controls how often the poll loop checks the child's
	// completion and the cancellation channel. Defaults to 200ms.
	PollInterval time.Duration
}

var _ Runner = (*ProcessRunner)(nil)

// Run implements Runner: pre-interrupt check, checkout, spawn, poll
// (interruptible), exit-code interpretation.
func (r *ProcessRunner) Run(ctx context.Context, wt dvcs.Worktree, commit string, cancel <-chan struct{}) JobResult {
	start := time.Now()

	select {
	case <-cancel:
		return JobResult{Commit: commit, Interrupted: true}
	default:
	}

	if err := r.DVCS.Checkout(ctx, wt, commit); err != nil {
		return JobResult{Commit: commit, Err: fmt.Errorf("checking out %s: %w", commit, err)}
	}
	setup := time.Since(start)

	var stdout, stderr io.Writer
	closeFn := func() {}
	if r.Output != nil {
		stdout, stderr, closeFn = r.Output(commit)
	}
	defer closeFn()

	queryStart := time.Now()
	cmd := exec.CommandContext(ctx, r.Script, r.ScriptArgs...)
	cmd.Dir = wt.Location
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return JobResult{Commit: commit, Err: fmt.Errorf("spawning test script: %w", err)}
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	interval := r.PollInterval
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-cancel:
			if cmd.Process != nil {
				_ = cmd.Process.Kill()
			}
			<-done
			return JobResult{Commit: commit, Interrupted: true, Setup: setup, Total: time.Since(start)}
		case err := <-done:
			query := time.Since(queryStart)
			total := time.Since(start)
			return interpretExit(commit, err, setup, query, total)
		case <-ticker.C:
		}
	}
}

// interpretExit maps the child process's exit status onto a TestResult:
// 0 Pass, 125 Skip, >=128 fatal, anything else non-zero Fail.
func interpretExit(commit string, runErr error, setup, query, total time.Duration) JobResult {
	if runErr == nil {
		return JobResult{Commit: commit, Result: regression.Pass, Setup: setup, Query: query, Total: total}
	}

	exitErr, ok := runErr.(*exec.ExitError)
	if !ok {
		return JobResult{Commit: commit, Err: fmt.Errorf("running test script: %w", runErr)}
	}

	code := exitErr.ExitCode()
	switch {
	case code == 125:
		return JobResult{Commit: commit, Result: regression.Skip, Setup: setup, Query: query, Total: total}
	case code >= 128:
		return JobResult{Commit: commit, Err: fmt.Errorf("test script exited with fatal code %d", code)}
	default:
		return JobResult{Commit: commit, Result: regression.Fail, Setup: setup, Query: query, Total: total}
	}
}

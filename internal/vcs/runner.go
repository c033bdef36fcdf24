package vcs

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Lock-file retry and concurrency settings. Concurrent git processes on the
// same repository contend on index.lock, so the runner bounds them.
const (
	DefaultMaxConcurrent = 8
	maxLockRetries       = 6
	lockRetryBase        = 50 * time.Millisecond
	lockRetryMax         = 800 * time.Millisecond
)

// Runner executes git with args in dir and returns stdout.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) ([]byte, error)
}

// ExecRunner runs the git binary as a child process.
type ExecRunner struct {
	GitBin string
	Logger *slog.Logger
	sem    chan struct{}
}

// NewExecRunner returns a runner that allows at most maxConcurrent git
// processes at once.
func NewExecRunner(gitBin string, maxConcurrent int, logger *slog.Logger) *ExecRunner {
	if strings.TrimSpace(gitBin) == "" {
		gitBin = "git"
	}
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecRunner{
		GitBin: gitBin,
		Logger: logger,
		sem:    make(chan struct{}, maxConcurrent),
	}
}

var (
	defaultRunnerOnce sync.Once
	defaultRunner     *ExecRunner
)

// DefaultRunner returns the process-wide runner shared by clients opened
// without an explicit one.
func DefaultRunner() *ExecRunner {
	defaultRunnerOnce.Do(func() {
		defaultRunner = NewExecRunner("git", DefaultMaxConcurrent, nil)
	})
	return defaultRunner
}

func (r *ExecRunner) acquire(ctx context.Context) error {
	select {
	case r.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *ExecRunner) release() {
	<-r.sem
}

// Run executes git, retrying with backoff while another process holds a
// repository lock file.
func (r *ExecRunner) Run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("git: no command specified")
	}
	if err := r.acquire(ctx); err != nil {
		return nil, fmt.Errorf("git %s: %w", args[0], err)
	}
	defer r.release()

	start := time.Now()
	defer func() {
		r.Logger.Debug("git command completed",
			"component", "vcs",
			"dir", dir,
			"args", args,
			"duration_ms", time.Since(start).Milliseconds())
	}()

	for attempt := 0; ; attempt++ {
		cmd := exec.CommandContext(ctx, r.GitBin, args...)
		cmd.Dir = dir
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		err := cmd.Run()
		if err == nil {
			return stdout.Bytes(), nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("git %s: %w", args[0], ctx.Err())
		}
		errMsg := stderr.String()
		if !isLockFileConflict(errMsg) || attempt >= maxLockRetries-1 {
			return stdout.Bytes(), parseGitError(args, errMsg, err)
		}

		backoff := lockRetryBase << uint(attempt)
		if backoff > lockRetryMax {
			backoff = lockRetryMax
		}
		r.Logger.Debug("git lock file conflict, retrying",
			"component", "vcs", "attempt", attempt+1, "backoff_ms", backoff.Milliseconds())
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, fmt.Errorf("git %s: %w", args[0], ctx.Err())
		}
	}
}

// isLockFileConflict reports whether stderr describes a held lock file.
func isLockFileConflict(errMsg string) bool {
	return strings.Contains(errMsg, "index.lock") ||
		(strings.Contains(errMsg, "Unable to create") && strings.Contains(errMsg, "File exists"))
}

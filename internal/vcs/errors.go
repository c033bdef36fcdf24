package vcs

import (
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

var (
	// ErrNotRepository is returned when the path is not inside a git work tree.
	ErrNotRepository = errors.New("not a git repository")
	// ErrUnknownRevision is returned for refs, commits or ranges git cannot resolve.
	ErrUnknownRevision = errors.New("unknown revision")
	// ErrPathNotFound is returned when a path does not exist at the given ref.
	ErrPathNotFound = errors.New("path not found")
	// ErrGitNotFound is returned when the git binary is not on PATH.
	ErrGitNotFound = errors.New("git executable not found")
)

// parseGitError maps git's stderr to one of the package sentinels.
func parseGitError(args []string, stderr string, originalErr error) error {
	if errors.Is(originalErr, exec.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrGitNotFound, originalErr)
	}
	msg := strings.TrimSpace(stderr)
	lower := strings.ToLower(msg)
	op := "git"
	if len(args) > 0 {
		op = "git " + args[0]
	}

	switch {
	case strings.Contains(lower, "not a git repository"):
		return fmt.Errorf("%s: %w: %s", op, ErrNotRepository, msg)
	case strings.Contains(lower, "does not exist in"),
		strings.Contains(lower, "exists on disk, but not in"),
		strings.Contains(lower, "pathspec") && strings.Contains(lower, "did not match"):
		return fmt.Errorf("%s: %w: %s", op, ErrPathNotFound, msg)
	case strings.Contains(lower, "unknown revision"),
		strings.Contains(lower, "bad revision"),
		strings.Contains(lower, "bad object"),
		strings.Contains(lower, "invalid object name"),
		strings.Contains(lower, "not a valid object name"),
		strings.Contains(lower, "needed a single revision"),
		strings.Contains(lower, "ambiguous argument"),
		strings.Contains(lower, "couldn't find remote ref"),
		strings.Contains(lower, "no merge base"):
		return fmt.Errorf("%s: %w: %s", op, ErrUnknownRevision, msg)
	}

	if msg == "" {
		return fmt.Errorf("%s failed: %w", op, originalErr)
	}
	return fmt.Errorf("%s failed: %w: %s", op, originalErr, redactTokens(msg))
}

var (
	credentialURLRe = regexp.MustCompile(`https?://[^\s@/]+@`)
	tokenParamRe    = regexp.MustCompile(`(?i)(token|secret|password|bearer)=\S+`)
)

// redactTokens removes credentials embedded in remote URLs from messages.
func redactTokens(s string) string {
	s = credentialURLRe.ReplaceAllString(s, "https://<redacted>@")
	return tokenParamRe.ReplaceAllString(s, "$1=<redacted>")
}

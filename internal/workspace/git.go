package workspace

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sergeknystautas/diffview/internal/apperr"
	"github.com/sergeknystautas/diffview/internal/vcs"
)

var branchNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+(?:[._/-][A-Za-z0-9_]+)*$`)

// ErrInvalidBranchName is returned when a branch name fails validation.
var ErrInvalidBranchName = errors.New("invalid branch name")

// ValidateBranchName checks whether a branch name is acceptable for use.
// Returns nil if valid, or an error describing the problem.
func ValidateBranchName(branch string) error {
	branch = strings.TrimSpace(branch)
	if branch == "" {
		return fmt.Errorf("%w: branch name cannot be empty", ErrInvalidBranchName)
	}
	if !branchNamePattern.MatchString(branch) {
		return fmt.Errorf("%w: %q does not match required format (alphanumeric, underscores, hyphens, forward slashes, or periods)", ErrInvalidBranchName, branch)
	}
	// Check for consecutive separators (-, ., /, _)
	for i := 0; i < len(branch)-1; i++ {
		if branch[i] == branch[i+1] && (branch[i] == '-' || branch[i] == '.' || branch[i] == '/' || branch[i] == '_') {
			return fmt.Errorf("%w: %q has consecutive characters", ErrInvalidBranchName, branch)
		}
	}
	return nil
}

// Fetch updates remote-tracking refs from origin.
func (m *Manager) Fetch(ctx context.Context, client vcs.Client) error {
	const op = "workspace.Fetch"
	if _, err := client.RemoteURL(ctx, "origin"); err != nil {
		return apperr.Wrap(apperr.KindInvalidInput, op, err, "repository has no origin remote")
	}
	m.logger.Info("fetching origin", "repo", client.RepoPath())
	if err := client.Fetch(ctx, "origin"); err != nil {
		return apperr.Unavailable(op, err, "fetch from origin failed")
	}
	return nil
}

// worktreePath returns where the worktree for PR number of repoPath lives.
func (m *Manager) worktreePath(repoPath string, number int) string {
	name := fmt.Sprintf("%s-pr-%d", filepath.Base(repoPath), number)
	if m.worktreeRoot != "" {
		return filepath.Join(m.worktreeRoot, name)
	}
	return filepath.Join(filepath.Dir(repoPath), name)
}

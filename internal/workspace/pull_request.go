package workspace

import (
	"context"

	"github.com/sergeknystautas/diffview/internal/apperr"
	"github.com/sergeknystautas/diffview/internal/github"
	"github.com/sergeknystautas/diffview/internal/vcs"
)

// CheckoutPR fetches the PR head and checks it out in the work tree on the
// PR branch, resetting that branch if it already exists. Returns the branch.
func (m *Manager) CheckoutPR(ctx context.Context, client vcs.Client, prs PRResolver, number int) (string, error) {
	const op = "workspace.CheckoutPR"
	if number <= 0 {
		return "", apperr.Invalid(op, "invalid PR number %d", number)
	}
	lock := m.repoLock(client.RepoPath())
	lock.Lock()
	defer lock.Unlock()

	meta, _ := prs.PRMeta(ctx, number)
	ref, err := prs.FetchPRHead(ctx, number)
	if err != nil {
		return "", err
	}
	branch := github.PRBranchName(meta)
	if err := ValidateBranchName(branch); err != nil {
		return "", apperr.Wrap(apperr.KindInvalidInput, op, err, "invalid PR branch name %q", branch)
	}

	m.logger.Info("checking out PR", "pr", number, "branch", branch, "repo", client.RepoPath())
	if err := client.Checkout(ctx, branch, ref); err != nil {
		// Usually local changes that would be overwritten.
		return "", apperr.Wrap(apperr.KindInvalidInput, op, err, "cannot check out PR #%d", number)
	}
	return branch, nil
}

package github

import (
	"fmt"

	"github.com/sergeknystautas/diffview/internal/api/contracts"
)

// PRBranchName returns the local branch name for checking out a PR.
func PRBranchName(pr contracts.PullRequest) string {
	if pr.IsFork && pr.ForkOwner != "" {
		return fmt.Sprintf("pr/%s/%d", pr.ForkOwner, pr.Number)
	}
	return fmt.Sprintf("pr/%d", pr.Number)
}

// PRHeadRefspec returns the refspec that fetches a PR's head into a ref
// namespace owned by diffview, leaving user branches untouched.
func PRHeadRefspec(number int) string {
	return fmt.Sprintf("+refs/pull/%d/head:%s", number, PRLocalRef(number))
}

// PRLocalRef is where PRHeadRefspec stores the PR head.
func PRLocalRef(number int) string {
	return fmt.Sprintf("refs/diffview/pr/%d", number)
}

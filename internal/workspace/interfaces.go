package workspace

import (
	"context"

	"github.com/sergeknystautas/diffview/internal/api/contracts"
	"github.com/sergeknystautas/diffview/internal/vcs"
)

// WorkspaceManager defines the interface for worktree and PR checkout
// operations. Every method acts on the repository client is bound to.
type WorkspaceManager interface {
	// ListWorktrees returns the repository's worktrees, most recently active
	// first. activePath marks the worktree the server is serving.
	ListWorktrees(ctx context.Context, client vcs.Client, activePath string) ([]contracts.WorktreeInfo, error)

	// Fetch updates remote-tracking refs from origin.
	Fetch(ctx context.Context, client vcs.Client) error

	// CheckoutPR checks the PR head out into a local branch in the work tree.
	CheckoutPR(ctx context.Context, client vcs.Client, prs PRResolver, number int) (string, error)

	// OpenPRWorktree creates (or reuses) a worktree for the PR.
	OpenPRWorktree(ctx context.Context, client vcs.Client, prs PRResolver, number int) (contracts.PRWorktreeResponse, error)

	// ClosePRWorktree removes the worktree opened for the PR.
	ClosePRWorktree(ctx context.Context, client vcs.Client, number int) error
}

// Ensure *Manager implements WorkspaceManager at compile time.
var _ WorkspaceManager = (*Manager)(nil)

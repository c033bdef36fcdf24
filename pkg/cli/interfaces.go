package cli

import (
	"context"

	"github.com/sergeknystautas/diffview/internal/api/contracts"
)

// DaemonClient is the interface for communicating with the diffview daemon.
type DaemonClient interface {
	// IsRunning checks if the daemon is running.
	IsRunning() bool

	Health(ctx context.Context) (contracts.HealthResponse, error)
	GetConfig(ctx context.Context) (contracts.ClientConfig, error)

	WorkingDiff(ctx context.Context) (contracts.DiffResult, error)
	FilePatch(ctx context.Context, q FilePatchQuery) (string, error)
	FileContent(ctx context.Context, path, ref string) (contracts.FileContent, error)
	History(ctx context.Context, ref string, page, perPage int) (contracts.HistoryPage, error)
	Commit(ctx context.Context, sha string) (contracts.CommitDiff, error)
	Branches(ctx context.Context) (contracts.BranchList, error)
	Compare(ctx context.Context, base, head string, useMergeBase bool) (contracts.CompareResult, error)

	PRs(ctx context.Context) (contracts.PRsResponse, error)
	PR(ctx context.Context, n int) (contracts.PRDiff, error)
	CheckoutPR(ctx context.Context, n int) (string, error)
	OpenPRWorktree(ctx context.Context, n int) (contracts.PRWorktreeResponse, error)
	ClosePRWorktree(ctx context.Context, n int) error
	Fetch(ctx context.Context) error

	Worktrees(ctx context.Context) ([]contracts.WorktreeInfo, error)
	SwitchWorktree(ctx context.Context, path string) (string, error)
	OpenFile(ctx context.Context, path string, line int) error

	// Subscribe streams change notifications for the active repository.
	Subscribe(ctx context.Context) (<-chan contracts.ChangeEvent, error)
}

// Ensure *Client implements DaemonClient at compile time.
var _ DaemonClient = (*Client)(nil)

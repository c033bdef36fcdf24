package state

import "time"

// StateStore defines the interface for state persistence.
type StateStore interface {
	// Repository history
	GetActiveRepo() string
	SetActiveRepo(path string, now time.Time)
	GetRecentRepos() []RecentRepo

	// PR worktrees
	AddPRWorktree(w PRWorktree)
	GetPRWorktree(repoPath string, number int) (PRWorktree, bool)
	GetPRWorktrees() []PRWorktree
	RemovePRWorktree(repoPath string, number int)

	// Persistence
	Save() error
}

// Ensure State implements StateStore at compile time.
var _ StateStore = (*State)(nil)

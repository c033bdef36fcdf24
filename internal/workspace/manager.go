// Package workspace manages the worktrees of the active repository: listing
// them with their divergence from the main branch, and checking pull requests
// out into a branch or a dedicated worktree.
package workspace

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sergeknystautas/diffview/internal/api/contracts"
	"github.com/sergeknystautas/diffview/internal/state"
)

// PRResolver supplies pull request metadata and fetches PR heads into local
// refs. *diff.Service satisfies it.
type PRResolver interface {
	PRMeta(ctx context.Context, number int) (contracts.PullRequest, bool)
	FetchPRHead(ctx context.Context, number int) (string, error)
}

// Options configures a Manager.
type Options struct {
	State state.StateStore
	// WorktreeRoot is where PR worktrees are created. Empty places them next
	// to the repository as "<repo>-pr-<n>".
	WorktreeRoot string
	Logger       *slog.Logger
}

// Manager runs worktree and PR checkout operations.
type Manager struct {
	state        state.StateStore
	worktreeRoot string
	logger       *slog.Logger
	now          func() time.Time

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New creates a new workspace manager.
func New(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Manager{
		state:        opts.State,
		worktreeRoot: opts.WorktreeRoot,
		logger:       opts.Logger.With("component", "workspace"),
		now:          time.Now,
		locks:        make(map[string]*sync.Mutex),
	}
}

// repoLock returns the mutex serializing mutations of one repository.
func (m *Manager) repoLock(repoPath string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	lock, ok := m.locks[repoPath]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[repoPath] = lock
	}
	return lock
}

// saveState persists state, logging failures. State is a cache of what git
// already knows, so a failed save never fails the operation.
func (m *Manager) saveState() {
	if m.state == nil {
		return
	}
	if err := m.state.Save(); err != nil {
		m.logger.Warn("failed to save state", "err", err)
	}
}

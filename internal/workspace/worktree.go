package workspace

import (
	"context"
	"errors"
	"os"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sergeknystautas/diffview/internal/api/contracts"
	"github.com/sergeknystautas/diffview/internal/apperr"
	"github.com/sergeknystautas/diffview/internal/github"
	"github.com/sergeknystautas/diffview/internal/state"
	"github.com/sergeknystautas/diffview/internal/vcs"
)

// maxWorktreeQueries bounds concurrent per-worktree git queries.
const maxWorktreeQueries = 4

// ListWorktrees returns every non-bare worktree with its divergence from the
// default branch, sorted by last activity, newest first.
func (m *Manager) ListWorktrees(ctx context.Context, client vcs.Client, activePath string) ([]contracts.WorktreeInfo, error) {
	const op = "workspace.ListWorktrees"
	list, err := client.WorktreeList(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, op, err, "failed to list worktrees")
	}
	main, err := client.DefaultBranch(ctx)
	if err != nil {
		m.logger.Debug("default branch unknown, skipping divergence", "err", err)
		main = ""
	}

	var worktrees []vcs.Worktree
	for _, wt := range list {
		if !wt.Bare {
			worktrees = append(worktrees, wt)
		}
	}

	infos := make([]contracts.WorktreeInfo, len(worktrees))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorktreeQueries)
	for i, wt := range worktrees {
		infos[i] = contracts.WorktreeInfo{
			Path:      wt.Path,
			Branch:    wt.Branch,
			Commit:    vcs.ShortSHA(wt.Head),
			IsCurrent: wt.Path == client.RepoPath(),
			IsActive:  wt.Path == activePath,
		}
		if wt.Head == "" {
			continue
		}
		g.Go(func() error {
			info := &infos[i]
			if c, err := client.CommitInfo(gctx, wt.Head); err == nil {
				info.LastActivity = c.Date
			}
			if main != "" {
				ahead, behind, err := client.AheadBehind(gctx, main, wt.Head)
				if err != nil {
					m.logger.Debug("ahead/behind failed", "path", wt.Path, "err", err)
					return nil
				}
				info.AheadOfMain, info.BehindMain = ahead, behind
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sortByActivity(infos)
	return infos, nil
}

// sortByActivity orders worktrees by LastActivity, newest first. Entries
// without a parseable timestamp sort last, by path.
func sortByActivity(infos []contracts.WorktreeInfo) {
	parsed := make(map[string]time.Time, len(infos))
	for _, info := range infos {
		if t, err := time.Parse(time.RFC3339, info.LastActivity); err == nil {
			parsed[info.Path] = t
		}
	}
	sort.SliceStable(infos, func(i, j int) bool {
		ti, iok := parsed[infos[i].Path]
		tj, jok := parsed[infos[j].Path]
		switch {
		case iok && jok && !ti.Equal(tj):
			return ti.After(tj)
		case iok != jok:
			return iok
		default:
			return infos[i].Path < infos[j].Path
		}
	})
}

// OpenPRWorktree creates a worktree with the PR head checked out on its PR
// branch. An already open worktree for the PR is returned as is.
func (m *Manager) OpenPRWorktree(ctx context.Context, client vcs.Client, prs PRResolver, number int) (contracts.PRWorktreeResponse, error) {
	const op = "workspace.OpenPRWorktree"
	if number <= 0 {
		return contracts.PRWorktreeResponse{}, apperr.Invalid(op, "invalid PR number %d", number)
	}
	repo := client.RepoPath()
	lock := m.repoLock(repo)
	lock.Lock()
	defer lock.Unlock()

	if m.state != nil {
		if w, ok := m.state.GetPRWorktree(repo, number); ok {
			if _, err := os.Stat(w.Path); err == nil {
				return contracts.PRWorktreeResponse{Path: w.Path, Branch: w.Branch}, nil
			}
			m.logger.Info("PR worktree missing on disk, recreating", "pr", number, "path", w.Path)
			m.state.RemovePRWorktree(repo, number)
		}
	}

	meta, _ := prs.PRMeta(ctx, number)
	ref, err := prs.FetchPRHead(ctx, number)
	if err != nil {
		return contracts.PRWorktreeResponse{}, err
	}
	branch := github.PRBranchName(meta)
	if err := ValidateBranchName(branch); err != nil {
		return contracts.PRWorktreeResponse{}, apperr.Wrap(apperr.KindInvalidInput, op, err, "invalid PR branch name %q", branch)
	}

	path := m.worktreePath(repo, number)
	if _, err := os.Stat(path); err == nil {
		return contracts.PRWorktreeResponse{}, apperr.Invalid(op, "%s already exists", path)
	}
	m.logger.Info("adding PR worktree", "pr", number, "path", path, "branch", branch)
	if err := client.WorktreeAdd(ctx, path, branch, ref); err != nil {
		return contracts.PRWorktreeResponse{}, apperr.Wrap(apperr.KindInternal, op, err, "failed to create worktree for PR #%d", number)
	}

	if m.state != nil {
		m.state.AddPRWorktree(state.PRWorktree{
			RepoPath:  repo,
			Number:    number,
			Path:      path,
			Branch:    branch,
			CreatedAt: m.now(),
		})
		m.saveState()
	}
	return contracts.PRWorktreeResponse{Path: path, Branch: branch}, nil
}

// ClosePRWorktree removes the PR's worktree and its branch. The worktree
// must have been opened by OpenPRWorktree.
func (m *Manager) ClosePRWorktree(ctx context.Context, client vcs.Client, number int) error {
	const op = "workspace.ClosePRWorktree"
	repo := client.RepoPath()
	lock := m.repoLock(repo)
	lock.Lock()
	defer lock.Unlock()

	if m.state == nil {
		return apperr.NotFound(op, "no worktree open for PR #%d", number)
	}
	w, ok := m.state.GetPRWorktree(repo, number)
	if !ok {
		return apperr.NotFound(op, "no worktree open for PR #%d", number)
	}

	if err := client.WorktreeRemove(ctx, w.Path); err != nil {
		if _, statErr := os.Stat(w.Path); !errors.Is(statErr, os.ErrNotExist) {
			return apperr.Wrap(apperr.KindInternal, op, err, "failed to remove worktree %s", w.Path)
		}
		m.logger.Warn("worktree already gone", "path", w.Path, "err", err)
	}
	if err := client.DeleteBranch(ctx, w.Branch); err != nil {
		m.logger.Warn("failed to delete PR branch", "branch", w.Branch, "err", err)
	}
	m.state.RemovePRWorktree(repo, number)
	m.saveState()
	return nil
}

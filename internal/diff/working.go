package diff

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/sergeknystautas/diffview/internal/api/contracts"
	"github.com/sergeknystautas/diffview/internal/difftool"
	"github.com/sergeknystautas/diffview/internal/patch"
	"github.com/sergeknystautas/diffview/internal/vcs"
)

// workingBase is the ref the working tree is diffed against: HEAD, or the
// empty tree in a repository without commits.
func (s *Service) workingBase(ctx context.Context) string {
	if s.client.HasHead(ctx) {
		return "HEAD"
	}
	return vcs.EmptyTree
}

// WorkingTree returns uncommitted changes (staged and unstaged) plus
// untracked files.
func (s *Service) WorkingTree(ctx context.Context) (result contracts.DiffResult, err error) {
	const op = "diff.WorkingTree"
	ctx, span := s.startSpan(ctx, op)
	defer func() { endSpan(span, err) }()

	base := s.workingBase(ctx)

	var (
		numstat   []vcs.NumstatEntry
		statuses  []vcs.NameStatusEntry
		untracked []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		numstat, err = s.client.DiffSummary(gctx, base)
		return err
	})
	g.Go(func() error {
		var err error
		if statuses, err = s.client.NameStatus(gctx, base); err != nil {
			s.logger.Debug("name-status failed, statuses default to modified", "err", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if untracked, err = s.client.ListUntracked(gctx); err != nil {
			s.logger.Debug("untracked enumeration failed", "err", err)
			untracked = nil
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return contracts.DiffResult{}, mapVCSError(op, err, "failed to read working tree changes")
	}

	tracked := mergeSummary(numstat, statuses)
	untracked = sortedCopy(untracked)

	files := make([]contracts.FileDiffInfo, len(tracked)+len(untracked))
	copy(files, tracked)
	for i, p := range untracked {
		files[len(tracked)+i] = contracts.FileDiffInfo{Path: p, Status: contracts.StatusUntracked}
	}

	repo := s.client.RepoPath()
	fetch, fctx := errgroup.WithContext(ctx)
	fetch.SetLimit(s.parallel)
	for i := range files {
		f := &files[i]
		if f.Status == contracts.StatusUntracked {
			fetch.Go(func() error {
				s.fillUntracked(repo, f)
				return nil
			})
			continue
		}
		fetch.Go(func() error {
			if !f.Binary {
				p, err := s.client.RawDiff(fctx, base, "", patchPaths(*f)...)
				if err != nil {
					s.logger.Debug("patch fetch failed", "path", f.Path, "err", err)
				} else {
					s.gate(f, p)
				}
			}
			if f.Status != contracts.StatusDeleted {
				f.ModifiedTime = modTime(repo, f.Path)
			}
			return nil
		})
	}
	// Per-file failures are logged and swallowed, so Wait never errors.
	_ = fetch.Wait()
	if err := ctx.Err(); err != nil {
		return contracts.DiffResult{}, mapVCSError(op, err, "working tree diff cancelled")
	}

	span.SetAttributes(attribute.Int("diff.files", len(files)))
	return contracts.NewDiffResult(files), nil
}

// fillUntracked presents an untracked file as an all-additions patch.
func (s *Service) fillUntracked(repo string, f *contracts.FileDiffInfo) {
	full := filepath.Join(repo, f.Path)
	f.ModifiedTime = modTime(repo, f.Path)

	data, err := os.ReadFile(full)
	if err != nil {
		s.logger.Debug("untracked read failed", "path", f.Path, "err", err)
		return
	}
	if difftool.IsBinary(data) {
		f.Binary = true
		return
	}
	text, additions := patch.SynthesizeAdded(f.Path, string(data))
	f.Additions = additions
	s.gate(f, text)
}

// untrackedPatch returns the synthesized patch for an untracked path, or ""
// when path is tracked or unreadable.
func (s *Service) untrackedPatch(ctx context.Context, path string) (string, bool) {
	untracked, err := s.client.ListUntracked(ctx)
	if err != nil {
		return "", false
	}
	for _, p := range untracked {
		if p != path {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.client.RepoPath(), path))
		if err != nil || difftool.IsBinary(data) {
			return "", true
		}
		text, _ := patch.SynthesizeAdded(path, string(data))
		return text, true
	}
	return "", false
}

// modTime returns the file's mtime in epoch milliseconds, or nil.
func modTime(repo, path string) *int64 {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	info, err := os.Stat(filepath.Join(repo, path))
	if err != nil {
		return nil
	}
	ms := info.ModTime().UnixMilli()
	return &ms
}

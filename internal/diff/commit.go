package diff

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/sergeknystautas/diffview/internal/api/contracts"
	"github.com/sergeknystautas/diffview/internal/apperr"
	"github.com/sergeknystautas/diffview/internal/vcs"
)

// treeDiff computes the files changed between two commits.
func (s *Service) treeDiff(ctx context.Context, from, to string) ([]contracts.FileDiffInfo, error) {
	var (
		numstat  []vcs.NumstatEntry
		statuses []vcs.NameStatusEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		numstat, err = s.client.DiffSummary(gctx, from, to)
		return err
	})
	g.Go(func() error {
		var err error
		if statuses, err = s.client.NameStatus(gctx, from, to); err != nil {
			s.logger.Debug("name-status failed, statuses default to modified", "from", from, "to", to, "err", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	files := mergeSummary(numstat, statuses)
	fetch, fctx := errgroup.WithContext(ctx)
	fetch.SetLimit(s.parallel)
	for i := range files {
		f := &files[i]
		if f.Binary {
			continue
		}
		fetch.Go(func() error {
			p, err := s.client.RawDiff(fctx, from, to, patchPaths(*f)...)
			if err != nil {
				s.logger.Debug("patch fetch failed", "path", f.Path, "err", err)
				return nil
			}
			s.gate(f, p)
			return nil
		})
	}
	// Per-file failures are logged and swallowed, so Wait never errors.
	_ = fetch.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if files == nil {
		files = []contracts.FileDiffInfo{}
	}
	return files, nil
}

func commitCacheKey(repo, sha string) string {
	return repo + "@" + sha
}

func toCommitInfo(c vcs.Commit) contracts.CommitInfo {
	return contracts.CommitInfo{
		SHA:         c.SHA,
		ShortSHA:    c.ShortSHA,
		Message:     c.Message,
		Author:      c.Author,
		AuthorEmail: c.AuthorEmail,
		Date:        c.Date,
		Parents:     c.Parents,
	}
}

// Commit returns the files changed by one commit. A root commit is diffed
// against the empty tree. Results are cached by full sha.
func (s *Service) Commit(ctx context.Context, ref string) (result contracts.CommitDiff, err error) {
	const op = "diff.Commit"
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return contracts.CommitDiff{}, apperr.Invalid(op, "commit sha is required")
	}
	ctx, span := s.startSpan(ctx, op, attribute.String("commit.ref", ref))
	defer func() { endSpan(span, err) }()

	sha, err := s.client.ResolveRef(ctx, ref)
	if err != nil {
		return contracts.CommitDiff{}, mapVCSError(op, err, "commit %s not found", ref)
	}
	key := commitCacheKey(s.client.RepoPath(), sha)
	if v, ok := s.commits.Get(key); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return v.(contracts.CommitDiff), nil
	}

	c, err := s.client.CommitInfo(ctx, sha)
	if err != nil {
		return contracts.CommitDiff{}, mapVCSError(op, err, "commit %s not found", ref)
	}
	parent := vcs.EmptyTree
	if len(c.Parents) > 0 {
		parent = c.Parents[0]
	}

	files, err := s.treeDiff(ctx, parent, sha)
	if err != nil {
		return contracts.CommitDiff{}, mapVCSError(op, err, "failed to diff commit %s", vcs.ShortSHA(sha))
	}

	stats := contracts.ComputeStats(files)
	info := toCommitInfo(c)
	info.Stats = &stats
	result = contracts.CommitDiff{Commit: info, Files: files, Stats: stats}
	s.commits.SetDefault(key, result)
	span.SetAttributes(attribute.Int("diff.files", len(files)))
	return result, nil
}

package diff

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sergeknystautas/diffview/internal/api/contracts"
	"github.com/sergeknystautas/diffview/internal/apperr"
	"github.com/sergeknystautas/diffview/internal/github"
	"github.com/sergeknystautas/diffview/internal/vcs"
)

// CompareOptions selects how two refs are compared.
type CompareOptions struct {
	// UseMergeBase diffs from the merge base of base and head (three-dot
	// semantics) rather than from base itself.
	UseMergeBase bool
}

// Compare diffs head against base. CommitCount is always the number of
// commits in base..head; MergeBase is only reported in merge-base mode.
func (s *Service) Compare(ctx context.Context, base, head string, opts CompareOptions) (result contracts.CompareResult, err error) {
	const op = "diff.Compare"
	base, head = strings.TrimSpace(base), strings.TrimSpace(head)
	if base == "" || head == "" {
		return contracts.CompareResult{}, apperr.Invalid(op, "base and head are required")
	}
	ctx, span := s.startSpan(ctx, op,
		attribute.String("compare.base", base),
		attribute.String("compare.head", head),
		attribute.Bool("compare.merge_base", opts.UseMergeBase))
	defer func() { endSpan(span, err) }()

	baseSHA, err := s.client.ResolveRef(ctx, base)
	if err != nil {
		return contracts.CompareResult{}, mapVCSError(op, err, "branch or ref %q not found", base)
	}
	headSHA, err := s.client.ResolveRef(ctx, head)
	if err != nil {
		return contracts.CompareResult{}, mapVCSError(op, err, "branch or ref %q not found", head)
	}

	result = contracts.CompareResult{Base: base, Head: head, UseMergeBase: opts.UseMergeBase}

	count, err := s.client.RevListCount(ctx, baseSHA+".."+headSHA)
	if err != nil {
		return contracts.CompareResult{}, mapVCSError(op, err, "failed to count commits")
	}
	result.CommitCount = count

	from := baseSHA
	if opts.UseMergeBase {
		mb, err := s.client.MergeBase(ctx, baseSHA, headSHA)
		if err != nil {
			return contracts.CompareResult{}, mapVCSError(op, err, "%s and %s have no common ancestor", base, head)
		}
		from = mb
		result.MergeBase = mb
		if c, err := s.client.CommitInfo(ctx, mb); err == nil {
			result.MergeBaseDate = c.Date
		} else {
			s.logger.Debug("merge base date lookup failed", "merge_base", mb, "err", err)
		}
	}

	files, err := s.treeDiff(ctx, from, headSHA)
	if err != nil {
		return contracts.CompareResult{}, mapVCSError(op, err, "failed to compare %s and %s", base, head)
	}
	result.DiffResult = contracts.NewDiffResult(files)
	span.SetAttributes(attribute.Int("diff.files", len(files)))
	return result, nil
}

// ListPRs returns open pull requests. A provider that cannot be reached
// yields an empty, flagged response rather than an error.
func (s *Service) ListPRs(ctx context.Context) (contracts.PRsResponse, error) {
	const op = "diff.ListPRs"
	if s.prs == nil {
		return contracts.PRsResponse{PullRequests: []contracts.PullRequest{}, MetadataUnavailable: true, Error: "no pull request provider configured"}, nil
	}
	prs, err := s.prs.ListPRs(ctx, s.client.RepoPath())
	if err != nil {
		var rle *github.RateLimitError
		if errors.Is(err, github.ErrUnavailable) || errors.As(err, &rle) {
			s.logger.Info("pull request metadata unavailable", "err", err)
			return contracts.PRsResponse{PullRequests: []contracts.PullRequest{}, MetadataUnavailable: true, Error: err.Error()}, nil
		}
		return contracts.PRsResponse{}, apperr.Wrap(apperr.KindInternal, op, err, "failed to list pull requests")
	}
	if prs == nil {
		prs = []contracts.PullRequest{}
	}
	return contracts.PRsResponse{PullRequests: prs}, nil
}

// PRMeta returns metadata for PR number, or a placeholder flagged as
// unavailable when the provider fails.
func (s *Service) PRMeta(ctx context.Context, number int) (contracts.PullRequest, bool) {
	if s.prs != nil {
		pr, err := s.prs.GetPR(ctx, s.client.RepoPath(), number)
		if err == nil {
			return pr, false
		}
		s.logger.Info("pull request metadata degraded", "pr", number, "err", err)
	}
	return contracts.PullRequest{Number: number, Title: fmt.Sprintf("PR #%d", number)}, true
}

// FetchPRHead fetches the PR head into its diffview-owned ref and returns
// that ref. An existing local copy is used when the fetch fails.
func (s *Service) FetchPRHead(ctx context.Context, number int) (string, error) {
	const op = "diff.FetchPRHead"
	ref := github.PRLocalRef(number)
	ferr := s.client.Fetch(ctx, "origin", github.PRHeadRefspec(number))
	if ferr == nil {
		return ref, nil
	}
	if _, err := s.client.ResolveRef(ctx, ref); err == nil {
		s.logger.Warn("PR fetch failed, using local copy", "pr", number, "err", ferr)
		return ref, nil
	}
	if errors.Is(ferr, vcs.ErrUnknownRevision) {
		return "", apperr.Wrap(apperr.KindNotFound, op, ferr, "PR #%d not found on origin", number)
	}
	return "", apperr.Unavailable(op, ferr, "could not fetch PR #%d from origin", number)
}

// prBase picks the ref a PR is compared against: the remote-tracking copy of
// its target branch when present, otherwise the local branch.
func (s *Service) prBase(ctx context.Context, target string) (string, error) {
	if target == "" {
		var err error
		if target, err = s.client.DefaultBranch(ctx); err != nil {
			return "", err
		}
	}
	if _, err := s.client.ResolveRef(ctx, "origin/"+target); err == nil {
		return "origin/" + target, nil
	}
	return target, nil
}

// PR returns a pull request's changes in merge-base mode with its metadata
// merged in.
func (s *Service) PR(ctx context.Context, number int) (result contracts.PRDiff, err error) {
	const op = "diff.PR"
	if number <= 0 {
		return contracts.PRDiff{}, apperr.Invalid(op, "invalid PR number %d", number)
	}
	ctx, span := s.startSpan(ctx, op, attribute.Int("pr.number", number))
	defer func() { endSpan(span, err) }()

	meta, degraded := s.PRMeta(ctx, number)
	span.SetAttributes(attribute.Bool("pr.metadata_unavailable", degraded))

	head, err := s.FetchPRHead(ctx, number)
	if err != nil {
		return contracts.PRDiff{}, err
	}
	base, err := s.prBase(ctx, meta.TargetBranch)
	if err != nil {
		return contracts.PRDiff{}, mapVCSError(op, err, "could not determine the base branch of PR #%d", number)
	}

	cmp, err := s.Compare(ctx, base, head, CompareOptions{UseMergeBase: true})
	if err != nil {
		return contracts.PRDiff{}, err
	}
	if meta.TargetBranch == "" {
		meta.TargetBranch = strings.TrimPrefix(base, "origin/")
	}
	return contracts.PRDiff{CompareResult: cmp, PR: meta, MetadataUnavailable: degraded}, nil
}

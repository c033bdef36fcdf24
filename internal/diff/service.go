// Package diff computes structured diff results from repository state:
// working-tree changes, single commits, branch comparisons and pull requests.
//
// Every aggregate operation fans out per-file work through a bounded errgroup
// and rejoins results by index, so output order is deterministic regardless
// of completion order. Per-file failures degrade that file (empty patch, no
// mtime) and never fail the whole result.
package diff

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sergeknystautas/diffview/internal/apperr"
	"github.com/sergeknystautas/diffview/internal/github"
	"github.com/sergeknystautas/diffview/internal/vcs"
)

const (
	// DefaultLargeFileThreshold is the patch size in bytes above which a
	// patch is withheld from aggregate results.
	DefaultLargeFileThreshold = 50000
	// DefaultMaxParallel bounds concurrent per-file fetches.
	DefaultMaxParallel = 8
	// DefaultCommitCacheTTL is how long computed commit diffs are kept.
	DefaultCommitCacheTTL = 30 * time.Minute

	defaultPerPage = 50
	maxPerPage     = 200
)

const tracerName = "github.com/sergeknystautas/diffview/internal/diff"

// Options configures a Service.
type Options struct {
	LargeFileThreshold int
	MaxParallel        int
	// CommitCache holds computed commit diffs. It may be shared between
	// services bound to different repositories; keys include the repo path.
	CommitCache *cache.Cache
	PRs         github.PRSource
	Logger      *slog.Logger
}

// Service computes diffs for one repository.
type Service struct {
	client    vcs.Client
	threshold int
	parallel  int
	commits   *cache.Cache
	prs       github.PRSource
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewCommitCache returns a cache suitable for Options.CommitCache.
func NewCommitCache(ttl time.Duration) *cache.Cache {
	if ttl <= 0 {
		ttl = DefaultCommitCacheTTL
	}
	return cache.New(ttl, 2*ttl)
}

// New returns a Service bound to client.
func New(client vcs.Client, opts Options) *Service {
	if opts.LargeFileThreshold <= 0 {
		opts.LargeFileThreshold = DefaultLargeFileThreshold
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = DefaultMaxParallel
	}
	if opts.CommitCache == nil {
		opts.CommitCache = NewCommitCache(0)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		client:    client,
		threshold: opts.LargeFileThreshold,
		parallel:  opts.MaxParallel,
		commits:   opts.CommitCache,
		prs:       opts.PRs,
		logger:    opts.Logger.With("component", "diff"),
		tracer:    otel.Tracer(tracerName),
	}
}

// RepoPath returns the repository the service is bound to.
func (s *Service) RepoPath() string {
	return s.client.RepoPath()
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("repo.path", s.client.RepoPath()))
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// mapVCSError converts a vcs error into the API error taxonomy.
func mapVCSError(op string, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	switch {
	case errors.Is(err, vcs.ErrUnknownRevision), errors.Is(err, vcs.ErrPathNotFound):
		return apperr.Wrap(apperr.KindNotFound, op, err, format, args...)
	case errors.Is(err, vcs.ErrNotRepository):
		return apperr.Wrap(apperr.KindInvalidInput, op, err, format, args...)
	case errors.Is(err, vcs.ErrGitNotFound):
		return apperr.Wrap(apperr.KindUnavailable, op, err, format, args...)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperr.Wrap(apperr.KindTransient, op, err, format, args...)
	}
	return apperr.Wrap(apperr.KindInternal, op, err, format, args...)
}

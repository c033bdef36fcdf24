package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/sergeknystautas/diffview/internal/api/contracts"
)

// DefaultCacheTTL bounds how stale cached PR metadata may be.
const DefaultCacheTTL = time.Minute

// PRSource supplies pull request metadata for a repository directory.
type PRSource interface {
	ListPRs(ctx context.Context, repoDir string) ([]contracts.PullRequest, error)
	GetPR(ctx context.Context, repoDir string, number int) (contracts.PullRequest, error)
}

// RemoteURLFunc returns the origin URL of the repository at repoDir.
type RemoteURLFunc func(ctx context.Context, repoDir string) (string, error)

// Source reads PR metadata through gh, falls back to the anonymous REST API
// for public GitHub remotes, and caches results per repository.
type Source struct {
	GH        *GHClient
	REST      *RESTClient
	RemoteURL RemoteURLFunc
	Logger    *slog.Logger

	cache *cache.Cache
}

var _ PRSource = (*Source)(nil)

// NewSource returns a Source with the given cache TTL (DefaultCacheTTL when <= 0).
func NewSource(gh *GHClient, remoteURL RemoteURLFunc, ttl time.Duration, logger *slog.Logger) *Source {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		GH:        gh,
		REST:      &RESTClient{},
		RemoteURL: remoteURL,
		Logger:    logger,
		cache:     cache.New(ttl, 2*ttl),
	}
}

func listKey(repoDir string) string {
	return "list:" + repoDir
}

func prKey(repoDir string, number int) string {
	return "pr:" + repoDir + ":" + strconv.Itoa(number)
}

// ListPRs returns open pull requests, from cache when fresh.
func (s *Source) ListPRs(ctx context.Context, repoDir string) ([]contracts.PullRequest, error) {
	if v, ok := s.cache.Get(listKey(repoDir)); ok {
		return v.([]contracts.PullRequest), nil
	}

	var prs []contracts.PullRequest
	var err error
	if s.GH != nil {
		prs, err = s.GH.ListPRs(ctx, repoDir)
	} else {
		err = fmt.Errorf("%w: gh disabled", ErrUnavailable)
	}
	if errors.Is(err, ErrUnavailable) {
		s.Logger.Debug("gh unavailable, trying REST", "component", "github", "err", err)
		var info RepoInfo
		if info, err = s.repoInfo(ctx, repoDir); err == nil {
			prs, err = s.REST.FetchOpenPRs(ctx, info)
		}
	}
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(listKey(repoDir), prs)
	for _, pr := range prs {
		s.cache.SetDefault(prKey(repoDir, pr.Number), pr)
	}
	return prs, nil
}

// GetPR returns one pull request, from cache when fresh.
func (s *Source) GetPR(ctx context.Context, repoDir string, number int) (contracts.PullRequest, error) {
	if v, ok := s.cache.Get(prKey(repoDir, number)); ok {
		return v.(contracts.PullRequest), nil
	}

	var pr contracts.PullRequest
	var err error
	if s.GH != nil {
		pr, err = s.GH.GetPR(ctx, repoDir, number)
	} else {
		err = fmt.Errorf("%w: gh disabled", ErrUnavailable)
	}
	if errors.Is(err, ErrUnavailable) {
		var info RepoInfo
		if info, err = s.repoInfo(ctx, repoDir); err == nil {
			pr, err = s.REST.FetchPR(ctx, info, number)
		}
	}
	if err != nil {
		return contracts.PullRequest{}, err
	}
	s.cache.SetDefault(prKey(repoDir, number), pr)
	return pr, nil
}

// Invalidate drops cached entries for repoDir.
func (s *Source) Invalidate(repoDir string) {
	s.cache.Delete(listKey(repoDir))
	prefix := "pr:" + repoDir + ":"
	for k := range s.cache.Items() {
		if strings.HasPrefix(k, prefix) {
			s.cache.Delete(k)
		}
	}
}

func (s *Source) repoInfo(ctx context.Context, repoDir string) (RepoInfo, error) {
	if s.RemoteURL == nil {
		return RepoInfo{}, fmt.Errorf("%w: no remote resolver", ErrUnavailable)
	}
	url, err := s.RemoteURL(ctx, repoDir)
	if err != nil {
		return RepoInfo{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !IsGitHubURL(url) {
		return RepoInfo{}, fmt.Errorf("%w: %s is not a GitHub remote", ErrUnavailable, url)
	}
	info, err := ParseRepoURL(url)
	if err != nil {
		return RepoInfo{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return info, nil
}

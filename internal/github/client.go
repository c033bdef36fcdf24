package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sergeknystautas/diffview/internal/api/contracts"
)

const (
	userAgent = "diffview"
	maxPRs    = 30
)

// apiBaseURL is the GitHub API base URL. Var for testing.
var apiBaseURL = "https://api.github.com"

var httpClient = &http.Client{Timeout: 30 * time.Second}

// RateLimitError is returned when the GitHub API rate limit is exceeded.
type RateLimitError struct {
	RetryAfterSec int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("GitHub API rate limit exceeded, retry after %d seconds", e.RetryAfterSec)
}

// RESTClient reads public pull requests from the GitHub REST API without
// authentication. It is the fallback when the gh CLI is not usable.
type RESTClient struct{}

func (RESTClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", apiBaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden, http.StatusTooManyRequests:
		return &RateLimitError{RetryAfterSec: parseRetryAfter(resp)}
	case http.StatusNotFound:
		// Private repos look the same as missing ones to anonymous callers.
		return fmt.Errorf("%w: %s not found", ErrUnavailable, path)
	default:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d from %s: %s", resp.StatusCode, path, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// FetchOpenPRs fetches open pull requests for a public GitHub repo.
func (c RESTClient) FetchOpenPRs(ctx context.Context, info RepoInfo) ([]contracts.PullRequest, error) {
	var ghPRs []ghPullRequest
	path := fmt.Sprintf("/repos/%s/pulls?state=open&per_page=%d", info.APIPath(), maxPRs)
	if err := c.get(ctx, path, &ghPRs); err != nil {
		return nil, fmt.Errorf("failed to fetch PRs: %w", err)
	}
	prs := make([]contracts.PullRequest, 0, len(ghPRs))
	for _, gh := range ghPRs {
		prs = append(prs, gh.toContract())
	}
	return prs, nil
}

// FetchPR fetches one pull request.
func (c RESTClient) FetchPR(ctx context.Context, info RepoInfo, number int) (contracts.PullRequest, error) {
	var gh ghPullRequest
	if err := c.get(ctx, fmt.Sprintf("/repos/%s/pulls/%d", info.APIPath(), number), &gh); err != nil {
		return contracts.PullRequest{}, fmt.Errorf("failed to fetch PR #%d: %w", number, err)
	}
	return gh.toContract(), nil
}

// ghPullRequest is the GitHub API pull request response shape.
type ghPullRequest struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	State     string    `json:"state"`
	Draft     bool      `json:"draft"`
	HTMLURL   string    `json:"html_url"`
	CreatedAt time.Time `json:"created_at"`
	User      struct {
		Login string `json:"login"`
	} `json:"user"`
	Head struct {
		Ref  string `json:"ref"`
		Repo struct {
			Fork  bool `json:"fork"`
			Owner struct {
				Login string `json:"login"`
			} `json:"owner"`
		} `json:"repo"`
	} `json:"head"`
	Base struct {
		Ref string `json:"ref"`
	} `json:"base"`
}

func (gh ghPullRequest) toContract() contracts.PullRequest {
	pr := contracts.PullRequest{
		Number:       gh.Number,
		Title:        gh.Title,
		Body:         gh.Body,
		State:        gh.State,
		SourceBranch: gh.Head.Ref,
		TargetBranch: gh.Base.Ref,
		Author:       gh.User.Login,
		CreatedAt:    gh.CreatedAt,
		HTMLURL:      gh.HTMLURL,
		IsDraft:      gh.Draft,
	}
	if gh.Head.Repo.Fork {
		pr.IsFork = true
		pr.ForkOwner = gh.Head.Repo.Owner.Login
	}
	return pr
}

func parseRetryAfter(resp *http.Response) int {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil {
			return sec
		}
	}
	return 60
}

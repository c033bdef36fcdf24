package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/sergeknystautas/diffview/internal/api/contracts"
)

// ErrUnavailable is returned when PR metadata cannot be obtained from any
// provider: gh missing or unauthenticated, or the repo is not on GitHub.
var ErrUnavailable = errors.New("pull request metadata unavailable")

// prFields is the --json field list requested from gh.
const prFields = "number,title,body,state,isDraft,url,createdAt,author,headRefName,baseRefName,isCrossRepository,headRepositoryOwner"

// CommandRunner runs name with args in dir and returns stdout.
type CommandRunner func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%w: %s", err, msg)
		}
		return out, err
	}
	return out, nil
}

// GHClient reads pull requests through the gh CLI, which carries the user's
// own GitHub authentication.
type GHClient struct {
	Bin string
	Run CommandRunner
}

// NewGHClient returns a client for the gh binary on PATH.
func NewGHClient() *GHClient {
	return &GHClient{Bin: "gh", Run: execRunner}
}

// ghPR is the `gh pr view --json` shape.
type ghPR struct {
	Number            int       `json:"number"`
	Title             string    `json:"title"`
	Body              string    `json:"body"`
	State             string    `json:"state"`
	IsDraft           bool      `json:"isDraft"`
	URL               string    `json:"url"`
	CreatedAt         time.Time `json:"createdAt"`
	HeadRefName       string    `json:"headRefName"`
	BaseRefName       string    `json:"baseRefName"`
	IsCrossRepository bool      `json:"isCrossRepository"`
	Author            struct {
		Login string `json:"login"`
	} `json:"author"`
	HeadRepositoryOwner struct {
		Login string `json:"login"`
	} `json:"headRepositoryOwner"`
}

func (p ghPR) toContract() contracts.PullRequest {
	pr := contracts.PullRequest{
		Number:       p.Number,
		Title:        p.Title,
		Body:         p.Body,
		State:        strings.ToLower(p.State),
		SourceBranch: p.HeadRefName,
		TargetBranch: p.BaseRefName,
		Author:       p.Author.Login,
		CreatedAt:    p.CreatedAt,
		HTMLURL:      p.URL,
		IsDraft:      p.IsDraft,
	}
	if p.IsCrossRepository {
		pr.IsFork = true
		pr.ForkOwner = p.HeadRepositoryOwner.Login
	}
	return pr
}

func (c *GHClient) run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	bin := c.Bin
	if bin == "" {
		bin = "gh"
	}
	run := c.Run
	if run == nil {
		run = execRunner
	}
	out, err := run(ctx, dir, bin, args...)
	if err == nil {
		return out, nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		return nil, fmt.Errorf("%w: gh not installed", ErrUnavailable)
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "gh auth login") || strings.Contains(msg, "not logged") ||
		strings.Contains(msg, "none of the git remotes") || strings.Contains(msg, "no git remotes") {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil, err
}

// ListPRs returns open pull requests of the repository at dir.
func (c *GHClient) ListPRs(ctx context.Context, dir string) ([]contracts.PullRequest, error) {
	out, err := c.run(ctx, dir, "pr", "list", "--state", "open", "--limit", strconv.Itoa(maxPRs), "--json", prFields)
	if err != nil {
		return nil, err
	}
	var raw []ghPR
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode gh pr list: %w", err)
	}
	prs := make([]contracts.PullRequest, 0, len(raw))
	for _, p := range raw {
		prs = append(prs, p.toContract())
	}
	return prs, nil
}

// GetPR returns one pull request of the repository at dir.
func (c *GHClient) GetPR(ctx context.Context, dir string, number int) (contracts.PullRequest, error) {
	out, err := c.run(ctx, dir, "pr", "view", strconv.Itoa(number), "--json", prFields)
	if err != nil {
		return contracts.PullRequest{}, err
	}
	var raw ghPR
	if err := json.Unmarshal(out, &raw); err != nil {
		return contracts.PullRequest{}, fmt.Errorf("failed to decode gh pr view: %w", err)
	}
	return raw.toContract(), nil
}

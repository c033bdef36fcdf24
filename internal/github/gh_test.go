package github

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"testing"

	"github.com/sergeknystautas/diffview/internal/api/contracts"
)

const ghViewJSON = `{
  "number": 7,
  "title": "Fix the parser",
  "body": "Details",
  "state": "OPEN",
  "isDraft": false,
  "url": "https://github.com/user/repo/pull/7",
  "createdAt": "2025-03-01T12:00:00Z",
  "author": {"login": "octo"},
  "headRefName": "fix-parser",
  "baseRefName": "main",
  "isCrossRepository": false,
  "headRepositoryOwner": {"login": "user"}
}`

func fakeRunner(out string, err error, calls *[]string) CommandRunner {
	return func(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
		if calls != nil {
			*calls = append(*calls, name+" "+strings.Join(args, " "))
		}
		return []byte(out), err
	}
}

func TestGHClientGetPR(t *testing.T) {
	var calls []string
	c := &GHClient{Bin: "gh", Run: fakeRunner(ghViewJSON, nil, &calls)}

	pr, err := c.GetPR(context.Background(), "/repo", 7)
	if err != nil {
		t.Fatalf("GetPR() error: %v", err)
	}
	if pr.Number != 7 || pr.Title != "Fix the parser" || pr.State != "open" {
		t.Errorf("unexpected PR %+v", pr)
	}
	if pr.SourceBranch != "fix-parser" || pr.TargetBranch != "main" || pr.Author != "octo" {
		t.Errorf("unexpected PR %+v", pr)
	}
	if pr.IsFork {
		t.Error("same-repo PR marked as fork")
	}
	if len(calls) != 1 || !strings.HasPrefix(calls[0], "gh pr view 7 --json ") {
		t.Errorf("calls = %v", calls)
	}
}

func TestGHClientListPRs(t *testing.T) {
	c := &GHClient{Run: fakeRunner("["+ghViewJSON+"]", nil, nil)}
	prs, err := c.ListPRs(context.Background(), "/repo")
	if err != nil {
		t.Fatalf("ListPRs() error: %v", err)
	}
	if len(prs) != 1 || prs[0].Number != 7 {
		t.Errorf("ListPRs() = %+v", prs)
	}
}

func TestGHClientUnavailable(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"not installed", &exec.Error{Name: "gh", Err: exec.ErrNotFound}},
		{"not authenticated", fmt.Errorf("exit status 4: To get started with GitHub CLI, please run:  gh auth login")},
		{"no remotes", fmt.Errorf("exit status 1: none of the git remotes configured for this repository point to a known GitHub host")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &GHClient{Run: fakeRunner("", tt.err, nil)}
			_, err := c.GetPR(context.Background(), "/repo", 1)
			if !errors.Is(err, ErrUnavailable) {
				t.Errorf("expected ErrUnavailable, got %v", err)
			}
		})
	}
}

func TestGHClientOtherErrorsPropagate(t *testing.T) {
	c := &GHClient{Run: fakeRunner("", fmt.Errorf("exit status 1: no pull requests found for 99"), nil)}
	_, err := c.GetPR(context.Background(), "/repo", 99)
	if err == nil || errors.Is(err, ErrUnavailable) {
		t.Errorf("expected plain error, got %v", err)
	}
}

func TestSourceCachesAndInvalidates(t *testing.T) {
	var calls []string
	gh := &GHClient{Run: fakeRunner("["+ghViewJSON+"]", nil, &calls)}
	s := NewSource(gh, nil, 0, nil)
	ctx := context.Background()

	if _, err := s.ListPRs(ctx, "/repo"); err != nil {
		t.Fatalf("ListPRs() error: %v", err)
	}
	if _, err := s.ListPRs(ctx, "/repo"); err != nil {
		t.Fatalf("ListPRs() error: %v", err)
	}
	pr, err := s.GetPR(ctx, "/repo", 7)
	if err != nil {
		t.Fatalf("GetPR() error: %v", err)
	}
	if pr.Title != "Fix the parser" {
		t.Errorf("GetPR() title = %q", pr.Title)
	}
	if len(calls) != 1 {
		t.Errorf("expected 1 gh call with cache, got %d: %v", len(calls), calls)
	}

	s.Invalidate("/repo")
	if _, err := s.ListPRs(ctx, "/repo"); err != nil {
		t.Fatalf("ListPRs() error: %v", err)
	}
	if len(calls) != 2 {
		t.Errorf("expected a fresh gh call after Invalidate, got %d", len(calls))
	}
}

func TestSourceUnavailableWithoutGitHubRemote(t *testing.T) {
	gh := &GHClient{Run: fakeRunner("", &exec.Error{Name: "gh", Err: exec.ErrNotFound}, nil)}
	remote := func(ctx context.Context, dir string) (string, error) {
		return "git@gitlab.com:user/repo.git", nil
	}
	s := NewSource(gh, remote, 0, nil)

	_, err := s.GetPR(context.Background(), "/repo", 7)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestPRBranchName(t *testing.T) {
	tests := []struct {
		name string
		pr   contracts.PullRequest
		want string
	}{
		{
			name: "regular PR",
			pr:   contracts.PullRequest{Number: 42},
			want: "pr/42",
		},
		{
			name: "fork PR",
			pr:   contracts.PullRequest{Number: 42, IsFork: true, ForkOwner: "contributor"},
			want: "pr/contributor/42",
		},
		{
			name: "fork without owner",
			pr:   contracts.PullRequest{Number: 42, IsFork: true},
			want: "pr/42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PRBranchName(tt.pr); got != tt.want {
				t.Errorf("PRBranchName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPRRefs(t *testing.T) {
	if got := PRHeadRefspec(12); got != "+refs/pull/12/head:refs/diffview/pr/12" {
		t.Errorf("PRHeadRefspec(12) = %q", got)
	}
	if got := PRLocalRef(12); got != "refs/diffview/pr/12" {
		t.Errorf("PRLocalRef(12) = %q", got)
	}
}

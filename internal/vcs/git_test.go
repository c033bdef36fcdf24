package vcs

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sergeknystautas/diffview/internal/gittest"
)

func TestParseNumstatZ(t *testing.T) {
	out := []byte("3\t1\tsrc/a.go\x00-\t-\timage.png\x000\t0\t\x00old name.txt\x00new name.txt\x00")
	got := parseNumstatZ(out)
	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3: %+v", len(got), got)
	}
	if got[0].Path != "src/a.go" || got[0].Additions != 3 || got[0].Deletions != 1 {
		t.Errorf("entry 0 = %+v", got[0])
	}
	if !got[1].Binary || got[1].Path != "image.png" {
		t.Errorf("entry 1 = %+v, want binary image.png", got[1])
	}
	if got[2].OldPath != "old name.txt" || got[2].Path != "new name.txt" {
		t.Errorf("entry 2 = %+v, want rename", got[2])
	}
}

func TestParseNameStatusZ(t *testing.T) {
	out := []byte("M\x00a.go\x00R087\x00old.go\x00new.go\x00D\x00gone.txt\x00A\x00added.txt\x00")
	got := parseNameStatusZ(out)
	want := []NameStatusEntry{
		{Letter: 'M', Path: "a.go"},
		{Letter: 'R', OldPath: "old.go", Path: "new.go"},
		{Letter: 'D', Path: "gone.txt"},
		{Letter: 'A', Path: "added.txt"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseWorktreePorcelain(t *testing.T) {
	out := []byte(`worktree /repo
HEAD 1111111111111111111111111111111111111111
branch refs/heads/main

worktree /repo-wt/pr-7
HEAD 2222222222222222222222222222222222222222
detached

`)
	got := parseWorktreePorcelain(out)
	if len(got) != 2 {
		t.Fatalf("got %d worktrees, want 2", len(got))
	}
	if got[0].Path != "/repo" || got[0].Branch != "main" {
		t.Errorf("worktree 0 = %+v", got[0])
	}
	if !got[1].Detached || got[1].Branch != "" {
		t.Errorf("worktree 1 = %+v, want detached", got[1])
	}
}

func TestParseLogSubjectWithPipe(t *testing.T) {
	out := []byte("abcdef0123456789\x1fAda\x1fada@example.com\x1f2024-01-01T00:00:00Z\x1fp1 p2\x1ffix: a | b\x1e\n")
	commits := parseLog(out)
	if len(commits) != 1 {
		t.Fatalf("got %d commits, want 1", len(commits))
	}
	c := commits[0]
	if c.Message != "fix: a | b" {
		t.Errorf("Message = %q", c.Message)
	}
	if c.ShortSHA != "abcdef0" {
		t.Errorf("ShortSHA = %q, want abcdef0", c.ShortSHA)
	}
	if len(c.Parents) != 2 {
		t.Errorf("Parents = %v, want 2", c.Parents)
	}
}

func TestParseGitVersion(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"git version 2.39.3 (Apple Git-146)", "2.39.3"},
		{"git version 2.45.1.windows.1", "2.45.1"},
		{"git version 2.30", "2.30.0"},
	}
	for _, tt := range tests {
		v, err := ParseGitVersion(tt.in)
		if err != nil {
			t.Errorf("ParseGitVersion(%q) error: %v", tt.in, err)
			continue
		}
		if v.String() != tt.want {
			t.Errorf("ParseGitVersion(%q) = %s, want %s", tt.in, v, tt.want)
		}
	}
	if _, err := ParseGitVersion("nope"); err == nil {
		t.Error("expected error for unrecognized output")
	}
}

func TestGitClientAgainstRepo(t *testing.T) {
	ctx := context.Background()
	dir := gittest.WorkTree(t)
	gittest.WriteFile(t, dir, "a.txt", "one\ntwo\n")
	first := gittest.Commit(t, dir, "add a")

	gittest.WriteFile(t, dir, "a.txt", "one\nTWO\nthree\n")
	gittest.WriteFile(t, dir, "new.txt", "fresh\n")

	client, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	summary, err := client.DiffSummary(ctx, "HEAD")
	if err != nil {
		t.Fatalf("DiffSummary() error: %v", err)
	}
	if len(summary) != 1 || summary[0].Path != "a.txt" || summary[0].Additions != 2 || summary[0].Deletions != 1 {
		t.Errorf("DiffSummary() = %+v", summary)
	}

	untracked, err := client.ListUntracked(ctx)
	if err != nil {
		t.Fatalf("ListUntracked() error: %v", err)
	}
	if len(untracked) != 1 || untracked[0] != "new.txt" {
		t.Errorf("ListUntracked() = %v", untracked)
	}

	patch, err := client.RawDiff(ctx, "HEAD", "", "a.txt")
	if err != nil {
		t.Fatalf("RawDiff() error: %v", err)
	}
	if !strings.Contains(patch, "+TWO") || !strings.Contains(patch, "-two") {
		t.Errorf("RawDiff() missing changes:\n%s", patch)
	}

	top, err := client.TopLevel(ctx)
	if err != nil || top != dir {
		t.Errorf("TopLevel() = %q, %v; want %q", top, err, dir)
	}

	info, err := client.CommitInfo(ctx, first)
	if err != nil {
		t.Fatalf("CommitInfo() error: %v", err)
	}
	if info.Message != "add a" || info.SHA != first {
		t.Errorf("CommitInfo() = %+v", info)
	}

	count, err := client.RevListCount(ctx, "HEAD")
	if err != nil || count != 2 {
		t.Errorf("RevListCount() = %d, %v; want 2", count, err)
	}

	content, err := client.Show(ctx, "HEAD", "a.txt")
	if err != nil || string(content) != "one\ntwo\n" {
		t.Errorf("Show() = %q, %v", content, err)
	}

	branch, err := client.DefaultBranch(ctx)
	if err != nil || branch != "main" {
		t.Errorf("DefaultBranch() = %q, %v; want main", branch, err)
	}
}

func TestGitClientErrors(t *testing.T) {
	ctx := context.Background()
	dir := gittest.WorkTree(t)
	client, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	if _, err := client.ResolveRef(ctx, "does-not-exist"); !errors.Is(err, ErrUnknownRevision) {
		t.Errorf("ResolveRef() error = %v, want ErrUnknownRevision", err)
	}
	if _, err := client.CommitInfo(ctx, "does-not-exist"); !errors.Is(err, ErrUnknownRevision) {
		t.Errorf("CommitInfo() error = %v, want ErrUnknownRevision", err)
	}
	if _, err := client.Show(ctx, "HEAD", "missing.txt"); !errors.Is(err, ErrPathNotFound) {
		t.Errorf("Show() error = %v, want ErrPathNotFound", err)
	}

	notRepo := t.TempDir()
	other, err := Open(notRepo, nil)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if _, err := other.TopLevel(ctx); !errors.Is(err, ErrNotRepository) {
		t.Errorf("TopLevel() error = %v, want ErrNotRepository", err)
	}

	if _, err := Open(notRepo+"/missing", nil); !errors.Is(err, ErrNotRepository) {
		t.Errorf("Open(missing) error = %v, want ErrNotRepository", err)
	}
}

func TestMergeBaseAndAheadBehind(t *testing.T) {
	ctx := context.Background()
	dir := gittest.WorkTree(t)
	base := gittest.Run(t, dir, "rev-parse", "HEAD")

	gittest.Run(t, dir, "checkout", "-b", "feature")
	gittest.WriteFile(t, dir, "f.txt", "feature\n")
	gittest.Commit(t, dir, "feature work")
	gittest.Run(t, dir, "checkout", "main")
	gittest.WriteFile(t, dir, "m.txt", "main\n")
	gittest.Commit(t, dir, "main work")

	client, _ := Open(dir, nil)
	mb, err := client.MergeBase(ctx, "main", "feature")
	if err != nil || mb != base {
		t.Errorf("MergeBase() = %q, %v; want %q", mb, err, base)
	}
	ahead, behind, err := client.AheadBehind(ctx, "main", "feature")
	if err != nil || ahead != 1 || behind != 1 {
		t.Errorf("AheadBehind() = %d, %d, %v; want 1, 1", ahead, behind, err)
	}

	branches, err := client.BranchList(ctx)
	if err != nil {
		t.Fatalf("BranchList() error: %v", err)
	}
	names := map[string]bool{}
	for _, b := range branches {
		names[b.Name] = b.IsCurrent
	}
	if current, ok := names["main"]; !ok || !current {
		t.Errorf("BranchList() = %+v, want current main", branches)
	}
	if _, ok := names["feature"]; !ok {
		t.Errorf("BranchList() = %+v, want feature", branches)
	}
}

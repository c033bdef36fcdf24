package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if s.GetActiveRepo() != "" || len(s.GetRecentRepos()) != 0 {
		t.Errorf("expected empty state, got %+v", s.GetRecentRepos())
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	s := New(path)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s.SetActiveRepo("/repos/a", now)
	s.AddPRWorktree(PRWorktree{RepoPath: "/repos/a", Number: 7, Path: "/repos/a-pr-7", Branch: "pr/7", CreatedAt: now})

	if err := s.Save(); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file should be renamed away")
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.GetActiveRepo() != "/repos/a" {
		t.Errorf("ActiveRepo = %q, want /repos/a", loaded.GetActiveRepo())
	}
	w, ok := loaded.GetPRWorktree("/repos/a", 7)
	if !ok || w.Branch != "pr/7" || !w.CreatedAt.Equal(now) {
		t.Errorf("GetPRWorktree() = %+v, %v", w, ok)
	}
}

func TestSaveWithoutPath(t *testing.T) {
	if err := New("").Save(); err == nil {
		t.Error("expected error when path is empty")
	}
}

func TestSetActiveRepoMaintainsRecentList(t *testing.T) {
	s := New("")
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	s.SetActiveRepo("/a", base)
	s.SetActiveRepo("/b", base.Add(time.Minute))
	s.SetActiveRepo("/a", base.Add(2*time.Minute))

	recent := s.GetRecentRepos()
	if len(recent) != 2 {
		t.Fatalf("expected 2 recent repos, got %d", len(recent))
	}
	if recent[0].Path != "/a" || recent[1].Path != "/b" {
		t.Errorf("recent order = %v", recent)
	}

	for i := 0; i < MaxRecentRepos+5; i++ {
		s.SetActiveRepo(filepath.Join("/r", string(rune('a'+i))), base.Add(time.Duration(i+3)*time.Minute))
	}
	if got := len(s.GetRecentRepos()); got != MaxRecentRepos {
		t.Errorf("recent repos = %d, want %d", got, MaxRecentRepos)
	}
}

func TestPRWorktrees(t *testing.T) {
	s := New("")
	s.AddPRWorktree(PRWorktree{RepoPath: "/a", Number: 1, Path: "/a-1"})
	s.AddPRWorktree(PRWorktree{RepoPath: "/a", Number: 2, Path: "/a-2"})
	s.AddPRWorktree(PRWorktree{RepoPath: "/a", Number: 1, Path: "/a-1-again"})

	if got := len(s.GetPRWorktrees()); got != 2 {
		t.Fatalf("expected 2 worktrees, got %d", got)
	}
	if w, _ := s.GetPRWorktree("/a", 1); w.Path != "/a-1-again" {
		t.Errorf("expected replaced entry, got %q", w.Path)
	}

	s.RemovePRWorktree("/a", 1)
	if _, ok := s.GetPRWorktree("/a", 1); ok {
		t.Error("worktree 1 should be removed")
	}
	s.RemovePRWorktree("/a", 99)
	if got := len(s.GetPRWorktrees()); got != 1 {
		t.Errorf("expected 1 worktree, got %d", got)
	}
}

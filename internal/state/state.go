package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// MaxRecentRepos bounds the recent repository list.
const MaxRecentRepos = 10

// State represents the server's persisted state.
type State struct {
	ActiveRepo  string       `json:"active_repo,omitempty"`
	RecentRepos []RecentRepo `json:"recent_repos"`
	PRWorktrees []PRWorktree `json:"pr_worktrees,omitempty"` // worktrees opened for pull requests
	path        string       // path to the state file
	mu          sync.RWMutex
}

// RecentRepo is a repository the server was switched to.
type RecentRepo struct {
	Path       string    `json:"path"`
	LastOpened time.Time `json:"last_opened"`
}

// PRWorktree tracks a worktree created for a pull request so it can be
// closed later.
type PRWorktree struct {
	RepoPath  string    `json:"repo_path"` // main work tree the worktree belongs to
	Number    int       `json:"number"`
	Path      string    `json:"path"`
	Branch    string    `json:"branch"`
	CreatedAt time.Time `json:"created_at"`
}

// New creates a new empty State instance.
func New(path string) *State {
	return &State{
		RecentRepos: []RecentRepo{},
		path:        path,
	}
}

// Load loads the state from the given path.
// Returns an empty state if the file doesn't exist.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(path), nil
		}
		return nil, fmt.Errorf("failed to read state: %w", err)
	}

	var st State
	st.path = path
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	if st.RecentRepos == nil {
		st.RecentRepos = []RecentRepo{}
	}
	return &st, nil
}

// Save writes the state to its configured path through a temp file.
func (s *State) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return fmt.Errorf("state path is empty, cannot save")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace state: %w", err)
	}
	return nil
}

// GetActiveRepo returns the last active repository path.
func (s *State) GetActiveRepo() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ActiveRepo
}

// SetActiveRepo records path as active and moves it to the front of the
// recent list.
func (s *State) SetActiveRepo(path string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ActiveRepo = path

	recent := []RecentRepo{{Path: path, LastOpened: now}}
	for _, r := range s.RecentRepos {
		if r.Path != path {
			recent = append(recent, r)
		}
	}
	if len(recent) > MaxRecentRepos {
		recent = recent[:MaxRecentRepos]
	}
	s.RecentRepos = recent
}

// GetRecentRepos returns recent repositories, most recent first.
// Returns a copy to prevent callers from modifying internal state.
func (s *State) GetRecentRepos() []RecentRepo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recent := make([]RecentRepo, len(s.RecentRepos))
	copy(recent, s.RecentRepos)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].LastOpened.After(recent[j].LastOpened)
	})
	return recent
}

// AddPRWorktree records a PR worktree, replacing any entry for the same
// repository and PR number.
func (s *State) AddPRWorktree(w PRWorktree) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.PRWorktrees {
		if existing.RepoPath == w.RepoPath && existing.Number == w.Number {
			s.PRWorktrees[i] = w
			return
		}
	}
	s.PRWorktrees = append(s.PRWorktrees, w)
}

// GetPRWorktree returns the worktree opened for PR number in repoPath.
func (s *State) GetPRWorktree(repoPath string, number int) (PRWorktree, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, w := range s.PRWorktrees {
		if w.RepoPath == repoPath && w.Number == number {
			return w, true
		}
	}
	return PRWorktree{}, false
}

// GetPRWorktrees returns all tracked PR worktrees.
func (s *State) GetPRWorktrees() []PRWorktree {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]PRWorktree, len(s.PRWorktrees))
	copy(result, s.PRWorktrees)
	return result
}

// RemovePRWorktree forgets the worktree for PR number in repoPath.
func (s *State) RemovePRWorktree(repoPath string, number int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, w := range s.PRWorktrees {
		if w.RepoPath == repoPath && w.Number == number {
			s.PRWorktrees = append(s.PRWorktrees[:i], s.PRWorktrees[i+1:]...)
			return
		}
	}
}

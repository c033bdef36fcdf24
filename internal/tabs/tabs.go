// Package tabs is the client's tab collection. Exactly one tab is active and
// the collection is never empty; every mutation is persisted whole.
package tabs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/sergeknystautas/diffview/internal/localstore"
)

// Type is the kind of view a tab shows.
type Type string

const (
	TypeWorkingChanges Type = "working-changes"
	TypeBranchCompare  Type = "branch-compare"
	TypeCommit         Type = "commit"
	TypeHistory        Type = "history"
	TypeWorktree       Type = "worktree"
	TypePR             Type = "pr"
)

// Context holds the type-specific parameters of a tab.
type Context struct {
	BaseBranch string `json:"base_branch,omitempty"`
	HeadBranch string `json:"head_branch,omitempty"`
	// UseMergeBase is nil for the default (merge-base mode).
	UseMergeBase *bool  `json:"use_merge_base,omitempty"`
	CommitSHA    string `json:"commit_sha,omitempty"`
	PRNumber     int    `json:"pr_number,omitempty"`
	PRBranch     string `json:"pr_branch,omitempty"`
}

// ViewState is the per-tab presentation state.
type ViewState struct {
	// SelectedFile is "" when no file is selected.
	SelectedFile    string   `json:"selected_file,omitempty"`
	DiffStyle       string   `json:"diff_style"`
	ScrollPosition  int      `json:"scroll_position,omitempty"`
	ExpandedFolders []string `json:"expanded_folders,omitempty"`
}

// Tab is one open view.
type Tab struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Label     string    `json:"label"`
	RepoPath  string    `json:"repo_path"`
	Context   Context   `json:"context"`
	ViewState ViewState `json:"view_state"`
}

// Config describes a tab to create. Empty fields take defaults.
type Config struct {
	Type      Type
	Label     string
	RepoPath  string
	Context   Context
	ViewState *ViewState
}

// Patch updates top-level tab fields; nil fields are left unchanged.
type Patch struct {
	Label    *string
	RepoPath *string
}

// ViewStatePatch updates view state; nil fields are left unchanged.
type ViewStatePatch struct {
	SelectedFile    *string
	DiffStyle       *string
	ScrollPosition  *int
	ExpandedFolders []string
}

// CleanupFunc releases resources backing a closed tab (a PR worktree).
type CleanupFunc func(ctx context.Context, tab Tab) error

// Persister stores the tab collection. *localstore.Store satisfies it.
type Persister interface {
	GetJSON(ctx context.Context, key string, v any) error
	SetJSON(ctx context.Context, key string, v any) error
}

// Options configures a Store.
type Options struct {
	Persister   Persister
	DefaultRepo string
	DiffStyle   string
	Cleanup     CleanupFunc
	Logger      *slog.Logger
	// NewID generates tab ids; uuid.NewString when nil.
	NewID func() string
}

// snapshot is the persisted shape.
type snapshot struct {
	Tabs        []Tab  `json:"tabs"`
	ActiveTabID string `json:"active_tab_id"`
}

// Store owns the tab collection.
type Store struct {
	persister   Persister
	defaultRepo string
	diffStyle   string
	cleanup     CleanupFunc
	logger      *slog.Logger
	newID       func() string

	mu       sync.Mutex
	tabs     []Tab
	activeID string

	cleanups sync.WaitGroup
}

// New returns a Store holding one default working-changes tab.
func New(opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.DiffStyle == "" {
		opts.DiffStyle = "unified"
	}
	s := &Store{
		persister:   opts.Persister,
		defaultRepo: opts.DefaultRepo,
		diffStyle:   opts.DiffStyle,
		cleanup:     opts.Cleanup,
		logger:      opts.Logger.With("component", "tabs"),
		newID:       opts.NewID,
	}
	t := s.build(Config{Type: TypeWorkingChanges})
	s.tabs = []Tab{t}
	s.activeID = t.ID
	return s
}

// Label returns the default label for a tab of type t.
func Label(t Type, c Context, repoPath string) string {
	switch t {
	case TypeBranchCompare:
		return c.BaseBranch + "..." + c.HeadBranch
	case TypeCommit:
		if len(c.CommitSHA) > 7 {
			return c.CommitSHA[:7]
		}
		return c.CommitSHA
	case TypeHistory:
		return "History"
	case TypeWorktree:
		if repoPath == "" {
			return "Worktree"
		}
		return filepath.Base(repoPath)
	case TypePR:
		return fmt.Sprintf("PR #%d", c.PRNumber)
	default:
		return "Working Changes"
	}
}

func (s *Store) build(cfg Config) Tab {
	if cfg.Type == "" {
		cfg.Type = TypeWorkingChanges
	}
	t := Tab{
		ID:       s.newID(),
		Type:     cfg.Type,
		Label:    cfg.Label,
		RepoPath: cfg.RepoPath,
		Context:  cfg.Context,
	}
	if t.RepoPath == "" {
		t.RepoPath = s.defaultRepo
	}
	if t.Label == "" {
		t.Label = Label(t.Type, t.Context, t.RepoPath)
	}
	if cfg.ViewState != nil {
		t.ViewState = cloneViewState(*cfg.ViewState)
	}
	if t.ViewState.DiffStyle == "" {
		t.ViewState.DiffStyle = s.diffStyle
	}
	return t
}

func cloneViewState(v ViewState) ViewState {
	v.ExpandedFolders = slices.Clone(v.ExpandedFolders)
	return v
}

func cloneTab(t Tab) Tab {
	t.ViewState = cloneViewState(t.ViewState)
	if t.Context.UseMergeBase != nil {
		b := *t.Context.UseMergeBase
		t.Context.UseMergeBase = &b
	}
	return t
}

func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.tabs, func(t Tab) bool { return t.ID == id })
}

// persist writes the collection. Called with mu held.
func (s *Store) persist() {
	if s.persister == nil {
		return
	}
	snap := snapshot{Tabs: make([]Tab, len(s.tabs)), ActiveTabID: s.activeID}
	for i, t := range s.tabs {
		snap.Tabs[i] = cloneTab(t)
	}
	if err := s.persister.SetJSON(context.Background(), localstore.KeyTabs, snap); err != nil {
		s.logger.Warn("failed to persist tabs", "err", err)
	}
}

// Load replaces the collection with the persisted one. Tabs without a repo
// path get the default repo; a dangling active id falls back to the first
// tab. Nothing persisted keeps the current collection.
func (s *Store) Load(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	var snap snapshot
	if err := s.persister.GetJSON(ctx, localstore.KeyTabs, &snap); err != nil {
		if errors.Is(err, localstore.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load tabs: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(snap.Tabs) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(snap.Tabs))
	loaded := make([]Tab, 0, len(snap.Tabs))
	for _, t := range snap.Tabs {
		if t.ID == "" || seen[t.ID] {
			t.ID = s.newID()
		}
		seen[t.ID] = true
		if t.RepoPath == "" {
			t.RepoPath = s.defaultRepo
		}
		if t.Type == "" {
			t.Type = TypeWorkingChanges
		}
		if t.ViewState.DiffStyle == "" {
			t.ViewState.DiffStyle = s.diffStyle
		}
		loaded = append(loaded, t)
	}
	s.tabs = loaded
	s.activeID = snap.ActiveTabID
	if s.indexOf(s.activeID) < 0 {
		s.activeID = s.tabs[0].ID
	}
	return nil
}

// Tabs returns a copy of the collection in display order.
func (s *Store) Tabs() []Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Tab, len(s.tabs))
	for i, t := range s.tabs {
		out[i] = cloneTab(t)
	}
	return out
}

// Active returns the active tab.
func (s *Store) Active() Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneTab(s.tabs[s.indexOf(s.activeID)])
}

// ActiveIndex returns the position of the active tab.
func (s *Store) ActiveIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOf(s.activeID)
}

// Get returns the tab with id.
func (s *Store) Get(id string) (Tab, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return Tab{}, false
	}
	return cloneTab(s.tabs[i]), true
}

// Create appends a tab built from cfg and activates it.
func (s *Store) Create(cfg Config) Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.build(cfg)
	s.tabs = append(s.tabs, t)
	s.activeID = t.ID
	s.persist()
	return cloneTab(t)
}

// Close removes the tab with id. A PR tab's cleanup runs in the background;
// its failure is logged only. Closing the last tab leaves a fresh default
// tab. Returns false for unknown ids.
func (s *Store) Close(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	closed := s.tabs[i]
	s.tabs = slices.Delete(s.tabs, i, i+1)

	if closed.Type == TypePR && s.cleanup != nil {
		s.cleanups.Add(1)
		go func(t Tab) {
			defer s.cleanups.Done()
			if err := s.cleanup(context.Background(), t); err != nil {
				s.logger.Warn("tab cleanup failed", "tab", t.Label, "pr", t.Context.PRNumber, "err", err)
			}
		}(cloneTab(closed))
	}

	if len(s.tabs) == 0 {
		t := s.build(Config{Type: TypeWorkingChanges})
		s.tabs = []Tab{t}
		s.activeID = t.ID
	} else if closed.ID == s.activeID {
		s.activeID = s.tabs[min(i, len(s.tabs)-1)].ID
	}
	s.persist()
	return true
}

// WaitCleanups blocks until background cleanups started by Close finish.
func (s *Store) WaitCleanups() {
	s.cleanups.Wait()
}

// Switch activates the tab with id.
func (s *Store) Switch(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(id) < 0 {
		return false
	}
	s.activeID = id
	s.persist()
	return true
}

// Update applies p to the tab with id.
func (s *Store) Update(id string, p Patch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	if p.Label != nil {
		s.tabs[i].Label = *p.Label
	}
	if p.RepoPath != nil {
		s.tabs[i].RepoPath = *p.RepoPath
	}
	s.persist()
	return true
}

// UpdateViewState applies p to the view state of the tab with id.
func (s *Store) UpdateViewState(id string, p ViewStatePatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	vs := &s.tabs[i].ViewState
	if p.SelectedFile != nil {
		vs.SelectedFile = *p.SelectedFile
	}
	if p.DiffStyle != nil {
		vs.DiffStyle = *p.DiffStyle
	}
	if p.ScrollPosition != nil {
		vs.ScrollPosition = *p.ScrollPosition
	}
	if p.ExpandedFolders != nil {
		vs.ExpandedFolders = slices.Clone(p.ExpandedFolders)
	}
	s.persist()
	return true
}

// UpdateContext replaces the context of the tab with id. The label follows
// the new context unless it had been renamed.
func (s *Store) UpdateContext(id string, c Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	t := &s.tabs[i]
	if t.Label == Label(t.Type, t.Context, t.RepoPath) {
		t.Label = Label(t.Type, c, t.RepoPath)
	}
	t.Context = c
	s.persist()
	return true
}

// Reorder moves the tab at from to position to.
func (s *Store) Reorder(from, to int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if from < 0 || from >= len(s.tabs) || to < 0 || to >= len(s.tabs) {
		return false
	}
	if from == to {
		return true
	}
	t := s.tabs[from]
	s.tabs = slices.Delete(s.tabs, from, from+1)
	s.tabs = slices.Insert(s.tabs, to, t)
	s.persist()
	return true
}

// Duplicate clones the tab with id right after it and activates the clone.
// The clone gets a fresh id and the default label for its type.
func (s *Store) Duplicate(id string) (Tab, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return Tab{}, false
	}
	clone := cloneTab(s.tabs[i])
	clone.ID = s.newID()
	clone.Label = Label(clone.Type, clone.Context, clone.RepoPath)
	s.tabs = slices.Insert(s.tabs, i+1, clone)
	s.activeID = clone.ID
	s.persist()
	return cloneTab(clone), true
}

// Package vcs runs version-control queries against one repository path.
//
// A Client is bound to a single repository and is stateless between calls, so
// a short-lived Client can be built per request without coordination.
package vcs

import "context"

// EmptyTree is the object id of git's empty tree. Diffing a root commit
// against it yields every file as added.
const EmptyTree = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

// NumstatEntry is one line of `git diff --numstat`.
type NumstatEntry struct {
	Path      string
	OldPath   string
	Additions int
	Deletions int
	Binary    bool
}

// NameStatusEntry is one record of `git diff --name-status`.
type NameStatusEntry struct {
	// Letter is the single status letter (A, C, D, M, R, T, U, X).
	Letter  byte
	Path    string
	OldPath string
}

// Commit is commit metadata parsed from `git log`.
type Commit struct {
	SHA         string
	ShortSHA    string
	Message     string
	Author      string
	AuthorEmail string
	Date        string
	Parents     []string
}

// LogOptions selects a page of history.
type LogOptions struct {
	Ref      string
	MaxCount int
	Skip     int
}

// Branch is a local or remote-tracking branch.
type Branch struct {
	Name         string
	Commit       string
	IsRemote     bool
	IsCurrent    bool
	LastActivity string
}

// Worktree is one entry of `git worktree list --porcelain`.
type Worktree struct {
	Path     string
	Head     string
	Branch   string
	Bare     bool
	Detached bool
}

// Client is the set of queries the diff engine needs from the VCS.
type Client interface {
	// RepoPath returns the directory the client is bound to.
	RepoPath() string

	// DiffSummary returns per-file line counts for `git diff <revs>`.
	DiffSummary(ctx context.Context, revs ...string) ([]NumstatEntry, error)
	// NameStatus returns per-file status letters for `git diff <revs>`.
	NameStatus(ctx context.Context, revs ...string) ([]NameStatusEntry, error)
	// RawDiff returns unified diff text between refA and refB. An empty refB
	// diffs refA against the working tree.
	RawDiff(ctx context.Context, refA, refB string, paths ...string) (string, error)

	Log(ctx context.Context, opts LogOptions) ([]Commit, error)
	CommitInfo(ctx context.Context, ref string) (Commit, error)
	TopLevel(ctx context.Context) (string, error)
	ListUntracked(ctx context.Context) ([]string, error)
	BranchList(ctx context.Context) ([]Branch, error)
	CurrentBranch(ctx context.Context) (string, error)
	WorktreeList(ctx context.Context) ([]Worktree, error)
	RemoteURL(ctx context.Context, remote string) (string, error)
	Fetch(ctx context.Context, remote string, refspecs ...string) error

	MergeBase(ctx context.Context, a, b string) (string, error)
	RevListCount(ctx context.Context, revRange string) (int, error)
	AheadBehind(ctx context.Context, left, right string) (ahead, behind int, err error)
	ResolveRef(ctx context.Context, ref string) (string, error)
	HasHead(ctx context.Context) bool
	DefaultBranch(ctx context.Context) (string, error)
	Show(ctx context.Context, ref, path string) ([]byte, error)

	Checkout(ctx context.Context, branch, startPoint string) error
	WorktreeAdd(ctx context.Context, path, branch, commitish string) error
	WorktreeRemove(ctx context.Context, path string) error
	DeleteBranch(ctx context.Context, branch string) error
}

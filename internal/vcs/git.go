package vcs

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Field and record separators used in --format strings. Subjects may contain
// any printable character, including "|".
const (
	fieldSep   = "\x1f"
	recordSep  = "\x1e"
	logFormat  = "--format=%H%x1f%an%x1f%ae%x1f%aI%x1f%P%x1f%s%x1e"
	showFormat = "--format=%H%x1f%an%x1f%ae%x1f%aI%x1f%P%x1f%B%x1e"
)

// GitClient implements Client by running the git binary in a repository path.
type GitClient struct {
	path   string
	runner Runner
}

var _ Client = (*GitClient)(nil)

// RepoPath returns the directory the client is bound to.
func (g *GitClient) RepoPath() string {
	return g.path
}

func (g *GitClient) run(ctx context.Context, args ...string) ([]byte, error) {
	return g.runner.Run(ctx, g.path, args...)
}

func (g *GitClient) runTrim(ctx context.Context, args ...string) (string, error) {
	out, err := g.run(ctx, args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// DiffSummary runs `git diff --numstat -z -M <revs>`.
func (g *GitClient) DiffSummary(ctx context.Context, revs ...string) ([]NumstatEntry, error) {
	args := append([]string{"diff", "--no-color", "--no-ext-diff", "--numstat", "-z", "-M"}, revs...)
	args = append(args, "--")
	out, err := g.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	return parseNumstatZ(out), nil
}

// parseNumstatZ parses -z numstat output. Renames are emitted as
// "add\tdel\t\0old\0new\0"; everything else as "add\tdel\tpath\0".
func parseNumstatZ(out []byte) []NumstatEntry {
	tokens := strings.Split(string(out), "\x00")
	var entries []NumstatEntry
	for i := 0; i < len(tokens); i++ {
		tok := strings.TrimPrefix(tokens[i], "\n")
		if tok == "" {
			continue
		}
		parts := strings.SplitN(tok, "\t", 3)
		if len(parts) != 3 {
			continue
		}
		e := NumstatEntry{}
		if parts[0] == "-" && parts[1] == "-" {
			e.Binary = true
		} else {
			e.Additions, _ = strconv.Atoi(parts[0])
			e.Deletions, _ = strconv.Atoi(parts[1])
		}
		if parts[2] == "" {
			if i+2 >= len(tokens) {
				break
			}
			e.OldPath = tokens[i+1]
			e.Path = tokens[i+2]
			i += 2
		} else {
			e.Path = parts[2]
		}
		entries = append(entries, e)
	}
	return entries
}

// NameStatus runs `git diff --name-status -z -M <revs>`.
func (g *GitClient) NameStatus(ctx context.Context, revs ...string) ([]NameStatusEntry, error) {
	args := append([]string{"diff", "--no-color", "--no-ext-diff", "--name-status", "-z", "-M"}, revs...)
	args = append(args, "--")
	out, err := g.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	return parseNameStatusZ(out), nil
}

func parseNameStatusZ(out []byte) []NameStatusEntry {
	tokens := strings.Split(string(out), "\x00")
	var entries []NameStatusEntry
	for i := 0; i < len(tokens); i++ {
		status := strings.TrimPrefix(tokens[i], "\n")
		if status == "" {
			continue
		}
		letter := status[0]
		if letter == 'R' || letter == 'C' {
			if i+2 >= len(tokens) {
				break
			}
			entries = append(entries, NameStatusEntry{Letter: letter, OldPath: tokens[i+1], Path: tokens[i+2]})
			i += 2
			continue
		}
		if i+1 >= len(tokens) {
			break
		}
		entries = append(entries, NameStatusEntry{Letter: letter, Path: tokens[i+1]})
		i++
	}
	return entries
}

// RawDiff returns unified diff text. An empty refB diffs against the working tree.
func (g *GitClient) RawDiff(ctx context.Context, refA, refB string, paths ...string) (string, error) {
	if refA == "" {
		return "", fmt.Errorf("%w: empty base ref", ErrUnknownRevision)
	}
	args := []string{"diff", "--no-color", "--no-ext-diff", "-M", refA}
	if refB != "" {
		args = append(args, refB)
	}
	args = append(args, "--")
	args = append(args, paths...)
	out, err := g.run(ctx, args...)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Log returns a page of commits reachable from opts.Ref (HEAD when empty).
func (g *GitClient) Log(ctx context.Context, opts LogOptions) ([]Commit, error) {
	args := []string{"log", logFormat}
	if opts.MaxCount > 0 {
		args = append(args, fmt.Sprintf("--max-count=%d", opts.MaxCount))
	}
	if opts.Skip > 0 {
		args = append(args, fmt.Sprintf("--skip=%d", opts.Skip))
	}
	ref := opts.Ref
	if ref == "" {
		ref = "HEAD"
	}
	args = append(args, ref, "--")
	out, err := g.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	return parseLog(out), nil
}

// CommitInfo returns metadata with the full message for one commit.
func (g *GitClient) CommitInfo(ctx context.Context, ref string) (Commit, error) {
	out, err := g.run(ctx, "log", "-1", showFormat, ref, "--")
	if err != nil {
		return Commit{}, err
	}
	commits := parseLog(out)
	if len(commits) == 0 {
		return Commit{}, fmt.Errorf("%w: %s", ErrUnknownRevision, ref)
	}
	return commits[0], nil
}

func parseLog(out []byte) []Commit {
	var commits []Commit
	for _, rec := range strings.Split(string(out), recordSep) {
		rec = strings.TrimLeft(rec, "\n")
		if rec == "" {
			continue
		}
		fields := strings.SplitN(rec, fieldSep, 6)
		if len(fields) != 6 {
			continue
		}
		c := Commit{
			SHA:         fields[0],
			ShortSHA:    ShortSHA(fields[0]),
			Author:      fields[1],
			AuthorEmail: fields[2],
			Date:        fields[3],
			Message:     strings.TrimSpace(fields[5]),
		}
		if p := strings.TrimSpace(fields[4]); p != "" {
			c.Parents = strings.Fields(p)
		}
		commits = append(commits, c)
	}
	return commits
}

// ShortSHA returns the first seven characters of sha.
func ShortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

// TopLevel returns the absolute root of the work tree.
func (g *GitClient) TopLevel(ctx context.Context) (string, error) {
	return g.runTrim(ctx, "rev-parse", "--show-toplevel")
}

// ListUntracked returns untracked, non-ignored paths.
func (g *GitClient) ListUntracked(ctx context.Context) ([]string, error) {
	out, err := g.run(ctx, "ls-files", "--others", "--exclude-standard", "-z")
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, p := range strings.Split(string(out), "\x00") {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths, nil
}

// BranchList returns local and remote-tracking branches.
func (g *GitClient) BranchList(ctx context.Context) ([]Branch, error) {
	out, err := g.run(ctx, "for-each-ref",
		"--format=%(refname)%1f%(objectname:short)%1f%(committerdate:iso-strict)%1f%(HEAD)",
		"refs/heads", "refs/remotes")
	if err != nil {
		return nil, err
	}
	var branches []Branch
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Split(line, fieldSep)
		if len(fields) != 4 {
			continue
		}
		ref := fields[0]
		b := Branch{Commit: fields[1], LastActivity: fields[2], IsCurrent: fields[3] == "*"}
		switch {
		case strings.HasPrefix(ref, "refs/heads/"):
			b.Name = strings.TrimPrefix(ref, "refs/heads/")
		case strings.HasPrefix(ref, "refs/remotes/"):
			if strings.HasSuffix(ref, "/HEAD") {
				continue
			}
			b.Name = strings.TrimPrefix(ref, "refs/remotes/")
			b.IsRemote = true
		default:
			continue
		}
		branches = append(branches, b)
	}
	return branches, nil
}

// CurrentBranch returns the checked-out branch, or "" when HEAD is detached.
func (g *GitClient) CurrentBranch(ctx context.Context) (string, error) {
	return g.runTrim(ctx, "branch", "--show-current")
}

// WorktreeList parses `git worktree list --porcelain`.
func (g *GitClient) WorktreeList(ctx context.Context) ([]Worktree, error) {
	out, err := g.run(ctx, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}
	return parseWorktreePorcelain(out), nil
}

func parseWorktreePorcelain(out []byte) []Worktree {
	var worktrees []Worktree
	var cur *Worktree
	flush := func() {
		if cur != nil {
			worktrees = append(worktrees, *cur)
			cur = nil
		}
	}
	for _, line := range strings.Split(string(out), "\n") {
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "worktree "):
			flush()
			cur = &Worktree{Path: strings.TrimPrefix(line, "worktree ")}
		case cur == nil:
			continue
		case strings.HasPrefix(line, "HEAD "):
			cur.Head = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			cur.Branch = strings.TrimPrefix(strings.TrimPrefix(line, "branch "), "refs/heads/")
		case line == "detached":
			cur.Detached = true
		case line == "bare":
			cur.Bare = true
		}
	}
	flush()
	return worktrees
}

// RemoteURL returns the fetch URL of remote.
func (g *GitClient) RemoteURL(ctx context.Context, remote string) (string, error) {
	if remote == "" {
		remote = "origin"
	}
	return g.runTrim(ctx, "remote", "get-url", remote)
}

// Fetch fetches refspecs (or the default refspec) from remote.
func (g *GitClient) Fetch(ctx context.Context, remote string, refspecs ...string) error {
	if remote == "" {
		remote = "origin"
	}
	args := append([]string{"fetch", "--no-tags", remote}, refspecs...)
	_, err := g.run(ctx, args...)
	return err
}

// MergeBase returns the best common ancestor of a and b.
func (g *GitClient) MergeBase(ctx context.Context, a, b string) (string, error) {
	sha, err := g.runTrim(ctx, "merge-base", a, b)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return "", fmt.Errorf("%w: no merge base between %s and %s", ErrUnknownRevision, a, b)
		}
		return "", err
	}
	return sha, nil
}

// RevListCount returns `git rev-list --count <revRange>`.
func (g *GitClient) RevListCount(ctx context.Context, revRange string) (int, error) {
	out, err := g.runTrim(ctx, "rev-list", "--count", revRange, "--")
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(out)
	if err != nil {
		return 0, fmt.Errorf("parse rev-list count %q: %w", out, err)
	}
	return n, nil
}

// AheadBehind returns how many commits head has that base lacks (ahead) and
// the reverse (behind).
func (g *GitClient) AheadBehind(ctx context.Context, base, head string) (int, int, error) {
	out, err := g.runTrim(ctx, "rev-list", "--left-right", "--count", base+"..."+head, "--")
	if err != nil {
		return 0, 0, err
	}
	fields := strings.Fields(out)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("unexpected rev-list output %q", out)
	}
	behind, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("parse behind count: %w", err)
	}
	ahead, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, fmt.Errorf("parse ahead count: %w", err)
	}
	return ahead, behind, nil
}

// ResolveRef resolves ref to a full commit sha.
func (g *GitClient) ResolveRef(ctx context.Context, ref string) (string, error) {
	sha, err := g.runTrim(ctx, "rev-parse", "--verify", "--quiet", ref+"^{commit}")
	if err != nil {
		// --quiet exits 1 without stderr for unknown refs.
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%w: %s", ErrUnknownRevision, ref)
		}
		return "", err
	}
	return sha, nil
}

// HasHead reports whether the repository has at least one commit.
func (g *GitClient) HasHead(ctx context.Context) bool {
	_, err := g.run(ctx, "rev-parse", "--verify", "--quiet", "HEAD")
	return err == nil
}

// DefaultBranch detects the repository's main branch name: origin/HEAD first,
// then a local main or master, then the current branch.
func (g *GitClient) DefaultBranch(ctx context.Context) (string, error) {
	if ref, err := g.runTrim(ctx, "symbolic-ref", "--quiet", "--short", "refs/remotes/origin/HEAD"); err == nil && ref != "" {
		return strings.TrimPrefix(ref, "origin/"), nil
	}
	for _, name := range []string{"main", "master"} {
		if _, err := g.run(ctx, "rev-parse", "--verify", "--quiet", "refs/heads/"+name); err == nil {
			return name, nil
		}
	}
	cur, err := g.CurrentBranch(ctx)
	if err != nil {
		return "", err
	}
	if cur == "" {
		return "", fmt.Errorf("%w: cannot detect default branch", ErrUnknownRevision)
	}
	return cur, nil
}

// Show returns the content of path at ref.
func (g *GitClient) Show(ctx context.Context, ref, path string) ([]byte, error) {
	out, err := g.run(ctx, "show", ref+":"+path)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Checkout switches the work tree to branch. A non-empty startPoint creates
// branch there, or resets it when it already exists.
func (g *GitClient) Checkout(ctx context.Context, branch, startPoint string) error {
	args := []string{"checkout", branch}
	if startPoint != "" {
		args = []string{"checkout", "-B", branch, startPoint}
	}
	_, err := g.run(ctx, args...)
	return err
}

// WorktreeAdd creates a worktree at path. A non-empty branch is created or
// reset to commitish; otherwise the worktree is detached at commitish.
func (g *GitClient) WorktreeAdd(ctx context.Context, path, branch, commitish string) error {
	args := []string{"worktree", "add"}
	if branch != "" {
		args = append(args, "-B", branch, path, commitish)
	} else {
		args = append(args, "--detach", path, commitish)
	}
	_, err := g.run(ctx, args...)
	return err
}

// WorktreeRemove force-removes the worktree at path and prunes stale metadata.
func (g *GitClient) WorktreeRemove(ctx context.Context, path string) error {
	if _, err := g.run(ctx, "worktree", "remove", "--force", path); err != nil {
		return err
	}
	_, err := g.run(ctx, "worktree", "prune")
	return err
}

// DeleteBranch force-deletes a local branch.
func (g *GitClient) DeleteBranch(ctx context.Context, branch string) error {
	_, err := g.run(ctx, "branch", "-D", branch)
	return err
}

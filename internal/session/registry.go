// Package session holds the server's active repository: the VCS client, its
// path and its change-notification channel, swapped as one unit.
package session

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/sergeknystautas/diffview/internal/apperr"
	"github.com/sergeknystautas/diffview/internal/vcs"
	"github.com/sergeknystautas/diffview/internal/watch"
)

// Active is a consistent view of the repository a request operates on.
type Active struct {
	Client   vcs.Client
	RepoPath string
	// Channel is nil for ephemeral overrides and when watching failed.
	Channel *watch.Channel
	// Ephemeral is set when the client was built for a single request.
	Ephemeral bool
}

// SwitchListener is notified after the active repository changed.
type SwitchListener func(old, current Active)

// Options configures a Registry.
type Options struct {
	NewClient  func(path string) (vcs.Client, error)
	NewChannel func(root string) (*watch.Channel, error)
	Logger     *slog.Logger
}

// Registry owns the shared active repository. Switch is the only mutator.
type Registry struct {
	newClient  func(path string) (vcs.Client, error)
	newChannel func(root string) (*watch.Channel, error)
	logger     *slog.Logger

	switchMu sync.Mutex // serializes Switch and Close

	mu        sync.RWMutex
	active    Active
	listeners []SwitchListener
}

// New returns an empty Registry.
func New(opts Options) *Registry {
	if opts.NewClient == nil {
		opts.NewClient = func(path string) (vcs.Client, error) { return vcs.Open(path, nil) }
	}
	if opts.NewChannel == nil {
		opts.NewChannel = func(root string) (*watch.Channel, error) { return watch.New(root, watch.Options{}) }
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Registry{
		newClient:  opts.NewClient,
		newChannel: opts.NewChannel,
		logger:     opts.Logger.With("component", "session"),
	}
}

// Snapshot returns the active repository and whether one is set.
func (r *Registry) Snapshot() (Active, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active, r.active.Client != nil
}

// OnSwitch registers l to run after every successful Switch.
func (r *Registry) OnSwitch(l SwitchListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// Resolve returns the repository a request should use. An empty override
// yields the shared active repository. A non-empty override must be an
// existing directory; it gets a client of its own and leaves shared state
// untouched. The release func must be called when the request is done.
func (r *Registry) Resolve(override string) (Active, func(), error) {
	const op = "session.Resolve"
	release := func() {}

	if override == "" {
		a, ok := r.Snapshot()
		if !ok {
			return Active{}, release, apperr.Invalid(op, "no active repository; select one or pass a repo path")
		}
		return a, release, nil
	}

	path, err := cleanDir(override)
	if err != nil {
		return Active{}, release, apperr.Invalid(op, "repository path %q is not an existing directory", override)
	}
	if a, ok := r.Snapshot(); ok && a.RepoPath == path {
		return a, release, nil
	}
	client, err := r.newClient(path)
	if err != nil {
		return Active{}, release, apperr.Wrap(apperr.KindInvalidInput, op, err, "cannot open repository %s", path)
	}
	return Active{Client: client, RepoPath: path, Ephemeral: true}, release, nil
}

// Switch makes path (resolved to its work-tree root) the active repository.
// The previous channel is closed, which disconnects its subscribers, and
// listeners are notified once the new triple is visible.
func (r *Registry) Switch(ctx context.Context, path string) (Active, error) {
	const op = "session.Switch"
	r.switchMu.Lock()
	defer r.switchMu.Unlock()

	dir, err := cleanDir(path)
	if err != nil {
		return Active{}, apperr.Invalid(op, "repository path %q is not an existing directory", path)
	}
	candidate, err := r.newClient(dir)
	if err != nil {
		return Active{}, apperr.Wrap(apperr.KindInvalidInput, op, err, "cannot open repository %s", dir)
	}
	top, err := candidate.TopLevel(ctx)
	if err != nil {
		if errors.Is(err, vcs.ErrNotRepository) {
			return Active{}, apperr.Wrap(apperr.KindInvalidInput, op, err, "%s is not inside a git work tree", dir)
		}
		return Active{}, apperr.Wrap(apperr.KindInternal, op, err, "failed to inspect %s", dir)
	}
	if resolved, err := filepath.EvalSymlinks(top); err == nil {
		top = resolved
	}

	if current, ok := r.Snapshot(); ok && current.RepoPath == top {
		return current, nil
	}

	client := candidate
	if top != dir {
		if client, err = r.newClient(top); err != nil {
			return Active{}, apperr.Wrap(apperr.KindInternal, op, err, "cannot open repository %s", top)
		}
	}
	ch, err := r.newChannel(top)
	if err != nil {
		r.logger.Warn("live reload disabled, watcher failed", "repo", top, "err", err)
		ch = nil
	}

	next := Active{Client: client, RepoPath: top, Channel: ch}
	r.mu.Lock()
	old := r.active
	r.active = next
	listeners := append([]SwitchListener(nil), r.listeners...)
	r.mu.Unlock()

	if old.Channel != nil {
		old.Channel.Close()
	}
	r.logger.Info("active repository switched", "from", old.RepoPath, "to", top)
	for _, l := range listeners {
		l(old, next)
	}
	return next, nil
}

// Close tears down the active channel. The registry keeps its client.
func (r *Registry) Close() {
	r.switchMu.Lock()
	defer r.switchMu.Unlock()

	r.mu.Lock()
	ch := r.active.Channel
	r.active.Channel = nil
	r.mu.Unlock()
	if ch != nil {
		ch.Close()
	}
}

// cleanDir returns path as a clean absolute directory with symlinks resolved.
func cleanDir(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", errors.New("not a directory")
	}
	return abs, nil
}

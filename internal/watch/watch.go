// Package watch turns file-system activity under a repository root into
// debounced change notifications for connected subscribers.
package watch

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sergeknystautas/diffview/internal/api/contracts"
	"github.com/sergeknystautas/diffview/internal/debounce"
)

const (
	// DefaultDebounce is the quiet window before a burst is reported.
	DefaultDebounce = 300 * time.Millisecond
	// DefaultSweepInterval is how often dead subscribers are pruned.
	DefaultSweepInterval = 30 * time.Second
)

// Close reasons passed to Subscriber.Close.
const (
	ReasonClosing    = "closing"
	ReasonSendFailed = "send-failed"
	ReasonStale      = "stale"
)

// ErrClosed is returned by Subscribe once the channel has been closed.
var ErrClosed = errors.New("watch: channel closed")

// DefaultExcludeDirs are directory names never watched or reported.
var DefaultExcludeDirs = []string{".git", "node_modules", "dist", "build", "out", "target", ".next", "vendor", "coverage"}

// Subscriber receives change events. Implementations must be comparable
// (typically pointers) and safe for concurrent use.
type Subscriber interface {
	Send(contracts.ChangeEvent) error
	Alive() bool
	Close(reason string)
}

// Options configures a Channel.
type Options struct {
	Debounce      time.Duration
	SweepInterval time.Duration
	ExcludeDirs   []string
	Logger        *slog.Logger
}

// Channel watches one repository root.
type Channel struct {
	root      string
	watcher   *fsnotify.Watcher
	debouncer *debounce.Debouncer
	excludes  map[string]bool
	logger    *slog.Logger

	subsMu sync.Mutex
	subs   map[Subscriber]struct{}
	closed bool

	watchedMu sync.Mutex
	watched   map[string]bool

	stopCh    chan struct{}
	stopOnce  sync.Once
	loopsDone sync.WaitGroup
}

// New starts watching root recursively.
func New(root string, opts Options) (*Channel, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.ExcludeDirs == nil {
		opts.ExcludeDirs = DefaultExcludeDirs
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	c := &Channel{
		root:     filepath.Clean(root),
		watcher:  w,
		excludes: make(map[string]bool, len(opts.ExcludeDirs)),
		logger:   opts.Logger.With("component", "watch"),
		subs:     make(map[Subscriber]struct{}),
		watched:  make(map[string]bool),
		stopCh:   make(chan struct{}),
	}
	for _, d := range opts.ExcludeDirs {
		c.excludes[d] = true
	}
	c.debouncer = debounce.New(opts.Debounce, c.fire)

	if err := c.watchRecursive(c.root); err != nil {
		w.Close()
		return nil, err
	}

	c.loopsDone.Add(2)
	go c.eventLoop()
	go c.sweepLoop(opts.SweepInterval)
	c.logger.Info("watching", "root", c.root)
	return c, nil
}

// Root returns the watched directory.
func (c *Channel) Root() string {
	return c.root
}

// excluded reports whether path lies in an excluded directory.
func (c *Channel) excluded(path string) bool {
	rel, err := filepath.Rel(c.root, path)
	if err != nil || rel == "." {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if c.excludes[part] {
			return true
		}
	}
	return false
}

// watchRecursive watches dir and all non-excluded subdirectories.
func (c *Channel) watchRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return fmt.Errorf("failed to walk %s: %w", dir, err)
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if c.excluded(path) {
			return filepath.SkipDir
		}
		c.addWatch(path)
		return nil
	})
}

func (c *Channel) addWatch(path string) {
	c.watchedMu.Lock()
	if c.watched[path] {
		c.watchedMu.Unlock()
		return
	}
	c.watched[path] = true
	c.watchedMu.Unlock()

	if err := c.watcher.Add(path); err != nil {
		c.logger.Warn("failed to watch", "path", path, "err", err)
	}
}

// eventLoop processes fsnotify events and errors.
func (c *Channel) eventLoop() {
	defer c.loopsDone.Done()
	for {
		select {
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			c.handleEvent(event)
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			c.logger.Warn("watcher error", "err", err)
		case <-c.stopCh:
			return
		}
	}
}

func (c *Channel) handleEvent(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod || c.excluded(event.Name) {
		return
	}
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := c.watchRecursive(event.Name); err != nil {
				c.logger.Debug("failed to watch new directory", "path", event.Name, "err", err)
			}
		}
	}
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		c.watchedMu.Lock()
		delete(c.watched, event.Name)
		c.watchedMu.Unlock()
	}

	rel, err := filepath.Rel(c.root, event.Name)
	if err != nil {
		rel = event.Name
	}
	c.debouncer.Schedule(filepath.ToSlash(rel))
}

// Touch reports a change at path as if the file system had, for mutations
// diffview performs itself.
func (c *Channel) Touch(path string) {
	c.debouncer.Schedule(path)
}

func (c *Channel) fire(b debounce.Batch) {
	c.logger.Debug("change detected", "path", b.Last, "events", b.Count)
	c.Broadcast(contracts.ChangeEvent{
		Type:      contracts.WSTypeChanged,
		Changed:   true,
		Path:      b.Last,
		Timestamp: time.Now().UnixMilli(),
	})
}

// Subscribe registers s for change events. It returns ErrClosed, without
// touching s, when the channel has already been closed.
func (c *Channel) Subscribe(s Subscriber) error {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.subs[s] = struct{}{}
	return nil
}

// Unsubscribe removes s without closing it.
func (c *Channel) Unsubscribe(s Subscriber) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	delete(c.subs, s)
}

// SubscriberCount returns the number of registered subscribers.
func (c *Channel) SubscriberCount() int {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	return len(c.subs)
}

func (c *Channel) snapshot() []Subscriber {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	out := make([]Subscriber, 0, len(c.subs))
	for s := range c.subs {
		out = append(out, s)
	}
	return out
}

// Broadcast delivers ev to every subscriber. A subscriber whose Send fails
// is removed and closed.
func (c *Channel) Broadcast(ev contracts.ChangeEvent) {
	for _, s := range c.snapshot() {
		if err := s.Send(ev); err != nil {
			c.logger.Warn("dropping subscriber after failed send", "err", err)
			c.Unsubscribe(s)
			s.Close(ReasonSendFailed)
		}
	}
}

// Sweep removes subscribers that are no longer alive and returns how many
// were removed.
func (c *Channel) Sweep() int {
	var dead []Subscriber
	c.subsMu.Lock()
	for s := range c.subs {
		if !s.Alive() {
			dead = append(dead, s)
			delete(c.subs, s)
		}
	}
	c.subsMu.Unlock()

	for _, s := range dead {
		s.Close(ReasonStale)
	}
	if len(dead) > 0 {
		c.logger.Debug("pruned stale subscribers", "count", len(dead))
	}
	return len(dead)
}

func (c *Channel) sweepLoop(interval time.Duration) {
	defer c.loopsDone.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.Sweep()
		case <-c.stopCh:
			return
		}
	}
}

// Close stops watching, drops pending notifications and force-closes every
// subscriber. Safe to call multiple times.
func (c *Channel) Close() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		c.debouncer.Close()
		if err := c.watcher.Close(); err != nil {
			c.logger.Debug("watcher close failed", "err", err)
		}
		c.loopsDone.Wait()

		c.subsMu.Lock()
		subs := c.subs
		c.subs = make(map[Subscriber]struct{})
		c.closed = true
		c.subsMu.Unlock()
		for s := range subs {
			s.Close(ReasonClosing)
		}
		c.logger.Info("stopped watching", "root", c.root)
	})
}

package watch

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sergeknystautas/diffview/internal/api/contracts"
)

type fakeSubscriber struct {
	mu          sync.Mutex
	events      []contracts.ChangeEvent
	dead        bool
	failSend    bool
	closeReason string
	closes      int
}

func (f *fakeSubscriber) Send(ev contracts.ChangeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend {
		return errors.New("broken pipe")
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeSubscriber) Alive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.dead
}

func (f *fakeSubscriber) Close(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeReason = reason
	f.closes++
}

func (f *fakeSubscriber) received() []contracts.ChangeEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]contracts.ChangeEvent(nil), f.events...)
}

func newChannel(t *testing.T, opts Options) (*Channel, string) {
	t.Helper()
	root := t.TempDir()
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	if opts.Debounce == 0 {
		opts.Debounce = 50 * time.Millisecond
	}
	c, err := New(root, opts)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(c.Close)
	return c, root
}

// waitForEvents polls until sub has at least n events or the deadline passes.
func waitForEvents(t *testing.T, sub *fakeSubscriber, n int) []contracts.ChangeEvent {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if got := sub.received(); len(got) >= n {
			return got
		}
		time.Sleep(10 * time.Millisecond)
	}
	return sub.received()
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestChangeIsReported(t *testing.T) {
	c, root := newChannel(t, Options{})
	sub := &fakeSubscriber{}
	c.Subscribe(sub)

	writeFile(t, filepath.Join(root, "main.go"), "package main\n")

	got := waitForEvents(t, sub, 1)
	if len(got) == 0 {
		t.Fatal("no change event received")
	}
	ev := got[0]
	if ev.Type != contracts.WSTypeChanged || !ev.Changed || ev.Path != "main.go" || ev.Timestamp == 0 {
		t.Errorf("event = %+v", ev)
	}
}

func TestBurstIsDebounced(t *testing.T) {
	c, root := newChannel(t, Options{Debounce: 150 * time.Millisecond})
	sub := &fakeSubscriber{}
	c.Subscribe(sub)

	for i := 0; i < 5; i++ {
		writeFile(t, filepath.Join(root, "a.txt"), string(rune('a'+i)))
		time.Sleep(10 * time.Millisecond)
	}

	waitForEvents(t, sub, 1)
	time.Sleep(400 * time.Millisecond)
	if got := sub.received(); len(got) != 1 {
		t.Errorf("got %d events for one burst, want 1", len(got))
	}
}

func TestExcludedDirectoriesAreIgnored(t *testing.T) {
	root := t.TempDir()
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	writeFile(t, filepath.Join(root, ".git", "HEAD"), "ref: refs/heads/main\n")
	writeFile(t, filepath.Join(root, "node_modules", "pkg", "index.js"), "")

	c, err := New(root, Options{Debounce: 30 * time.Millisecond})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer c.Close()
	sub := &fakeSubscriber{}
	c.Subscribe(sub)

	writeFile(t, filepath.Join(root, ".git", "index"), "x")
	writeFile(t, filepath.Join(root, "node_modules", "pkg", "index.js"), "y")
	time.Sleep(300 * time.Millisecond)
	if got := sub.received(); len(got) != 0 {
		t.Errorf("excluded writes produced events: %+v", got)
	}

	if !c.excluded(filepath.Join(root, "build", "out.bin")) {
		t.Error("build/ should be excluded")
	}
	if c.excluded(filepath.Join(root, "src", "builder.go")) {
		t.Error("only whole path components are excluded")
	}
}

func TestNewDirectoriesAreWatched(t *testing.T) {
	c, root := newChannel(t, Options{})
	sub := &fakeSubscriber{}
	c.Subscribe(sub)

	if err := os.Mkdir(filepath.Join(root, "pkg"), 0755); err != nil {
		t.Fatal(err)
	}
	waitForEvents(t, sub, 1)

	writeFile(t, filepath.Join(root, "pkg", "inner.go"), "package pkg\n")
	got := waitForEvents(t, sub, 2)
	if len(got) < 2 {
		t.Fatalf("got %d events, want a second one for the nested file", len(got))
	}
	if got[len(got)-1].Path != "pkg/inner.go" {
		t.Errorf("last path = %q, want pkg/inner.go", got[len(got)-1].Path)
	}
}

func TestBroadcastPrunesFailedSubscribers(t *testing.T) {
	c, _ := newChannel(t, Options{})
	good := &fakeSubscriber{}
	bad := &fakeSubscriber{failSend: true}
	c.Subscribe(good)
	c.Subscribe(bad)

	c.Broadcast(contracts.ChangeEvent{Type: contracts.WSTypeChanged, Changed: true})

	if c.SubscriberCount() != 1 {
		t.Errorf("SubscriberCount() = %d, want 1", c.SubscriberCount())
	}
	if bad.closeReason != ReasonSendFailed {
		t.Errorf("failed subscriber close reason = %q", bad.closeReason)
	}
	if len(good.received()) != 1 {
		t.Error("healthy subscriber should still receive the event")
	}
}

func TestSweepRemovesDeadSubscribers(t *testing.T) {
	c, _ := newChannel(t, Options{SweepInterval: 20 * time.Millisecond})
	live := &fakeSubscriber{}
	dead := &fakeSubscriber{dead: true}
	c.Subscribe(live)
	c.Subscribe(dead)

	deadline := time.Now().Add(2 * time.Second)
	for c.SubscriberCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if c.SubscriberCount() != 1 {
		t.Fatalf("SubscriberCount() = %d, want 1 after sweep", c.SubscriberCount())
	}
	dead.mu.Lock()
	reason := dead.closeReason
	dead.mu.Unlock()
	if reason != ReasonStale {
		t.Errorf("dead subscriber close reason = %q, want %q", reason, ReasonStale)
	}
}

func TestCloseDisconnectsSubscribersOnce(t *testing.T) {
	c, root := newChannel(t, Options{})
	sub := &fakeSubscriber{}
	c.Subscribe(sub)

	c.Close()
	c.Close()

	if sub.closes != 1 || sub.closeReason != ReasonClosing {
		t.Errorf("subscriber closes = %d reason = %q, want 1 %q", sub.closes, sub.closeReason, ReasonClosing)
	}
	if c.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount() = %d after Close", c.SubscriberCount())
	}

	writeFile(t, filepath.Join(root, "late.txt"), "late")
	time.Sleep(150 * time.Millisecond)
	if got := sub.received(); len(got) != 0 {
		t.Errorf("events after Close: %+v", got)
	}
}

func TestUnsubscribe(t *testing.T) {
	c, _ := newChannel(t, Options{})
	sub := &fakeSubscriber{}
	c.Subscribe(sub)
	c.Unsubscribe(sub)
	c.Broadcast(contracts.ChangeEvent{Type: contracts.WSTypeChanged})
	if len(sub.received()) != 0 || sub.closes != 0 {
		t.Error("unsubscribed subscriber should neither receive nor be closed")
	}
}

func TestTouch(t *testing.T) {
	c, _ := newChannel(t, Options{})
	sub := &fakeSubscriber{}
	c.Subscribe(sub)
	c.Touch("refs/heads/main")
	got := waitForEvents(t, sub, 1)
	if len(got) != 1 || got[0].Path != "refs/heads/main" {
		t.Errorf("Touch events = %+v", got)
	}
}

func TestSubscribeAfterClose(t *testing.T) {
	c, _ := newChannel(t, Options{})
	c.Close()

	sub := &fakeSubscriber{}
	if err := c.Subscribe(sub); !errors.Is(err, ErrClosed) {
		t.Fatalf("Subscribe() after Close error = %v, want ErrClosed", err)
	}
	if n := c.SubscriberCount(); n != 0 {
		t.Errorf("SubscriberCount() = %d, want 0", n)
	}
	c.Broadcast(contracts.ChangeEvent{Type: contracts.WSTypeChanged})
	if len(sub.received()) != 0 {
		t.Error("rejected subscriber received an event")
	}
}

func TestSubscribeRacingClose(t *testing.T) {
	c, _ := newChannel(t, Options{})

	const n = 50
	subs := make([]*fakeSubscriber, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range subs {
		subs[i] = &fakeSubscriber{}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.Subscribe(subs[i])
		}(i)
	}
	c.Close()
	wg.Wait()

	// every subscriber was either rejected or force-closed by Close
	for i, sub := range subs {
		sub.mu.Lock()
		reason := sub.closeReason
		sub.mu.Unlock()
		switch {
		case errs[i] == nil && reason != ReasonClosing:
			t.Errorf("subscriber %d accepted but closed with %q", i, reason)
		case errs[i] != nil && !errors.Is(errs[i], ErrClosed):
			t.Errorf("subscriber %d error = %v", i, errs[i])
		case errs[i] != nil && reason != "":
			t.Errorf("rejected subscriber %d was closed with %q", i, reason)
		}
	}
	if got := c.SubscriberCount(); got != 0 {
		t.Errorf("SubscriberCount() after Close = %d, want 0", got)
	}
}

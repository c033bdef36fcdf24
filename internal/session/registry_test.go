package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sergeknystautas/diffview/internal/api/contracts"
	"github.com/sergeknystautas/diffview/internal/apperr"
	"github.com/sergeknystautas/diffview/internal/gittest"
	"github.com/sergeknystautas/diffview/internal/watch"
)

type recordingSubscriber struct {
	mu     sync.Mutex
	reason string
}

func (s *recordingSubscriber) Send(contracts.ChangeEvent) error { return nil }
func (s *recordingSubscriber) Alive() bool                      { return true }
func (s *recordingSubscriber) Close(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reason = reason
}

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	r := New(Options{})
	t.Cleanup(r.Close)
	return r
}

func TestResolveWithoutActiveRepo(t *testing.T) {
	r := newRegistry(t)
	if _, _, err := r.Resolve(""); !apperr.Is(err, apperr.KindInvalidInput) {
		t.Errorf("Resolve(\"\") error = %v, want invalid input", err)
	}
}

func TestSwitchAndResolve(t *testing.T) {
	repo := gittest.WorkTree(t)
	r := newRegistry(t)

	a, err := r.Switch(context.Background(), repo)
	if err != nil {
		t.Fatalf("Switch() error: %v", err)
	}
	if a.RepoPath != repo || a.Client.RepoPath() != repo || a.Channel == nil || a.Channel.Root() != repo {
		t.Errorf("Switch() = %+v, want a consistent triple for %s", a, repo)
	}

	got, release, err := r.Resolve("")
	defer release()
	if err != nil || got.RepoPath != repo || got.Ephemeral {
		t.Errorf("Resolve(\"\") = %+v, %v", got, err)
	}
}

func TestSwitchResolvesTopLevel(t *testing.T) {
	repo := gittest.WorkTree(t)
	sub := filepath.Join(repo, "nested", "dir")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	r := newRegistry(t)
	a, err := r.Switch(context.Background(), sub)
	if err != nil {
		t.Fatalf("Switch() error: %v", err)
	}
	if a.RepoPath != repo {
		t.Errorf("RepoPath = %q, want top level %q", a.RepoPath, repo)
	}
}

func TestSwitchRejectsInvalidPaths(t *testing.T) {
	r := newRegistry(t)
	ctx := context.Background()
	if _, err := r.Switch(ctx, filepath.Join(t.TempDir(), "missing")); !apperr.Is(err, apperr.KindInvalidInput) {
		t.Errorf("missing dir error = %v, want invalid input", err)
	}
	if _, err := r.Switch(ctx, t.TempDir()); !apperr.Is(err, apperr.KindInvalidInput) {
		t.Errorf("non-repo error = %v, want invalid input", err)
	}
	if _, ok := r.Snapshot(); ok {
		t.Error("failed switches must not set an active repository")
	}
}

func TestOverrideIsEphemeral(t *testing.T) {
	shared := gittest.WorkTree(t)
	other := gittest.WorkTree(t)
	r := newRegistry(t)
	if _, err := r.Switch(context.Background(), shared); err != nil {
		t.Fatalf("Switch() error: %v", err)
	}

	a, release, err := r.Resolve(other)
	if err != nil {
		t.Fatalf("Resolve(other) error: %v", err)
	}
	release()
	if !a.Ephemeral || a.RepoPath != other || a.Client.RepoPath() != other || a.Channel != nil {
		t.Errorf("override = %+v, want an ephemeral client without channel", a)
	}
	if cur, _ := r.Snapshot(); cur.RepoPath != shared {
		t.Errorf("shared repo changed to %q by an override", cur.RepoPath)
	}

	same, _, err := r.Resolve(shared)
	if err != nil || same.Ephemeral {
		t.Errorf("override equal to the active repo should reuse it: %+v, %v", same, err)
	}

	if _, _, err := r.Resolve(filepath.Join(other, "nope")); !apperr.Is(err, apperr.KindInvalidInput) {
		t.Errorf("invalid override error = %v, want invalid input", err)
	}
}

func TestSwitchClosesOldChannelAndNotifies(t *testing.T) {
	first := gittest.WorkTree(t)
	second := gittest.WorkTree(t)
	r := newRegistry(t)
	ctx := context.Background()

	a, err := r.Switch(ctx, first)
	if err != nil {
		t.Fatalf("Switch(first) error: %v", err)
	}
	sub := &recordingSubscriber{}
	if err := a.Channel.Subscribe(sub); err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}

	var notified []string
	r.OnSwitch(func(old, current Active) {
		notified = append(notified, old.RepoPath+"->"+current.RepoPath)
	})

	if _, err := r.Switch(ctx, second); err != nil {
		t.Fatalf("Switch(second) error: %v", err)
	}
	sub.mu.Lock()
	reason := sub.reason
	sub.mu.Unlock()
	if reason != watch.ReasonClosing {
		t.Errorf("old subscriber close reason = %q, want %q", reason, watch.ReasonClosing)
	}
	if len(notified) != 1 || notified[0] != first+"->"+second {
		t.Errorf("listeners saw %v", notified)
	}

	if _, err := r.Switch(ctx, second); err != nil {
		t.Fatalf("Switch(second) again error: %v", err)
	}
	if len(notified) != 1 {
		t.Error("switching to the active repo should be a no-op")
	}
}

func TestSnapshotIsConsistentDuringSwitches(t *testing.T) {
	repos := []string{gittest.WorkTree(t), gittest.WorkTree(t)}
	r := New(Options{
		NewChannel: func(root string) (*watch.Channel, error) { return watch.New(root, watch.Options{}) },
	})
	defer r.Close()
	ctx := context.Background()
	if _, err := r.Switch(ctx, repos[0]); err != nil {
		t.Fatalf("Switch() error: %v", err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			a, _ := r.Snapshot()
			if a.Client.RepoPath() != a.RepoPath || (a.Channel != nil && a.Channel.Root() != a.RepoPath) {
				t.Errorf("torn snapshot: client=%s path=%s", a.Client.RepoPath(), a.RepoPath)
				return
			}
		}
	}()
	for i := 0; i < 6; i++ {
		if _, err := r.Switch(ctx, repos[(i+1)%2]); err != nil {
			t.Errorf("Switch() error: %v", err)
		}
	}
	close(stop)
	wg.Wait()
}

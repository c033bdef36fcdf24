package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sergeknystautas/diffview/internal/api/contracts"
	"github.com/sergeknystautas/diffview/internal/config"
	"github.com/sergeknystautas/diffview/internal/detect"
	"github.com/sergeknystautas/diffview/internal/github"
	"github.com/sergeknystautas/diffview/internal/gittest"
	"github.com/sergeknystautas/diffview/internal/session"
	"github.com/sergeknystautas/diffview/internal/state"
	"github.com/sergeknystautas/diffview/internal/watch"
	"github.com/sergeknystautas/diffview/internal/workspace"
)

// fakePRSource serves fixed PR metadata or a fixed error.
type fakePRSource struct {
	prs []contracts.PullRequest
	err error
}

func (f *fakePRSource) ListPRs(ctx context.Context, repoDir string) ([]contracts.PullRequest, error) {
	return f.prs, f.err
}

func (f *fakePRSource) GetPR(ctx context.Context, repoDir string, number int) (contracts.PullRequest, error) {
	if f.err != nil {
		return contracts.PullRequest{}, f.err
	}
	for _, pr := range f.prs {
		if pr.Number == number {
			return pr, nil
		}
	}
	return contracts.PullRequest{}, github.ErrUnavailable
}

// fakeEditor records open requests.
type fakeEditor struct {
	mu     sync.Mutex
	found  bool
	opened []string
}

func (f *fakeEditor) resolve(ctx context.Context, preferred string) (detect.EditorPath, bool) {
	return detect.EditorPath{Name: "fake", Path: "/bin/true", Source: "test"}, f.found
}

func (f *fakeEditor) open(ctx context.Context, editor detect.EditorPath, path string, line int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, path)
	return nil
}

type testEnv struct {
	server *Server
	repo   string
	state  *state.State
	editor *fakeEditor
	prs    *fakePRSource
}

func newTestServer(t *testing.T) *testEnv {
	t.Helper()
	repo := gittest.WorkTree(t)

	cfg := config.CreateDefault(filepath.Join(t.TempDir(), "config.yaml"))
	st := state.New(filepath.Join(t.TempDir(), "state.json"))
	registry := session.New(session.Options{
		NewChannel: func(root string) (*watch.Channel, error) {
			return watch.New(root, watch.Options{Debounce: 50 * time.Millisecond})
		},
	})
	editor := &fakeEditor{found: true}
	prs := &fakePRSource{}
	server := NewServer(Options{
		Config:        cfg,
		State:         st,
		Registry:      registry,
		Workspace:     workspace.New(workspace.Options{State: st, WorktreeRoot: t.TempDir()}),
		PRs:           prs,
		ResolveEditor: editor.resolve,
		OpenEditor:    editor.open,
	})
	if _, err := registry.Switch(context.Background(), repo); err != nil {
		t.Fatalf("Switch(%s): %v", repo, err)
	}
	t.Cleanup(registry.Close)
	return &testEnv{server: server, repo: repo, state: st, editor: editor, prs: prs}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	rr := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

func expectError(t *testing.T, rr *httptest.ResponseRecorder, status int, kind string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, rr.Code, rr.Body.String())
	}
	resp := decode[contracts.ErrorResponse](t, rr)
	if resp.Kind != kind {
		t.Fatalf("expected kind %q, got %q (%s)", kind, resp.Kind, resp.Error)
	}
	if resp.Error == "" {
		t.Fatal("expected an error message")
	}
}

func TestAPIContract_Healthz(t *testing.T) {
	env := newTestServer(t)

	rr := env.do(t, http.MethodGet, "/api/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	resp := decode[contracts.HealthResponse](t, rr)
	if resp.Status != "ok" {
		t.Fatalf("expected status ok, got %q", resp.Status)
	}
	if resp.Repo != env.repo {
		t.Fatalf("expected repo %q, got %q", env.repo, resp.Repo)
	}
}

func TestAPIContract_Config(t *testing.T) {
	env := newTestServer(t)

	resp := decode[contracts.ClientConfig](t, env.do(t, http.MethodGet, "/api/config", nil))
	if resp.LargeFileThreshold != 50000 {
		t.Fatalf("expected threshold 50000, got %d", resp.LargeFileThreshold)
	}
	if resp.DiffStyle == "" {
		t.Fatal("expected a diff style")
	}
}

func TestAPIContract_WorkingDiff(t *testing.T) {
	env := newTestServer(t)
	gittest.WriteFile(t, env.repo, "README.md", "test repo\nmore\n")
	gittest.WriteFile(t, env.repo, "new.txt", "untracked\n")

	rr := env.do(t, http.MethodGet, "/api/diff", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decode[contracts.DiffResult](t, rr)
	if len(resp.Files) != 2 {
		t.Fatalf("expected 2 files, got %+v", resp.Files)
	}
	if resp.Files[0].Path != "README.md" || resp.Files[0].Status != contracts.StatusModified {
		t.Fatalf("expected modified README.md first, got %+v", resp.Files[0])
	}
	if resp.Files[1].Path != "new.txt" || resp.Files[1].Status != contracts.StatusUntracked {
		t.Fatalf("expected untracked new.txt last, got %+v", resp.Files[1])
	}
	if resp.Stats.Files != 2 {
		t.Fatalf("expected stats.files 2, got %d", resp.Stats.Files)
	}
}

func TestAPIContract_RepoOverrideIsEphemeral(t *testing.T) {
	env := newTestServer(t)
	other := gittest.WorkTree(t)
	gittest.WriteFile(t, other, "README.md", "changed elsewhere\n")

	resp := decode[contracts.DiffResult](t, env.do(t, http.MethodGet, "/api/diff?repo="+other, nil))
	if len(resp.Files) != 1 {
		t.Fatalf("expected 1 file from the override repo, got %+v", resp.Files)
	}
	health := decode[contracts.HealthResponse](t, env.do(t, http.MethodGet, "/api/healthz", nil))
	if health.Repo != env.repo {
		t.Fatalf("override leaked into the active repo: %q", health.Repo)
	}
}

func TestAPIContract_RepoOverrideMissing(t *testing.T) {
	env := newTestServer(t)
	rr := env.do(t, http.MethodGet, "/api/diff?repo="+filepath.Join(t.TempDir(), "missing"), nil)
	expectError(t, rr, http.StatusBadRequest, "invalid_input")
}

func TestAPIContract_Commit(t *testing.T) {
	env := newTestServer(t)
	gittest.WriteFile(t, env.repo, "a.txt", "a\n")
	sha := gittest.Commit(t, env.repo, "add a")

	rr := env.do(t, http.MethodGet, "/api/commit/"+sha, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decode[contracts.CommitDiff](t, rr)
	if resp.Commit.SHA != sha {
		t.Fatalf("expected sha %s, got %s", sha, resp.Commit.SHA)
	}
	if len(resp.Files) != 1 || resp.Files[0].Path != "a.txt" {
		t.Fatalf("expected a.txt, got %+v", resp.Files)
	}

	expectError(t, env.do(t, http.MethodGet, "/api/commit/deadbeefdeadbeef", nil), http.StatusNotFound, "not_found")
}

func TestAPIContract_CompareUnknownRef(t *testing.T) {
	env := newTestServer(t)
	rr := env.do(t, http.MethodGet, "/api/compare?base=main&head=no-such-branch", nil)
	expectError(t, rr, http.StatusNotFound, "not_found")
}

func TestAPIContract_CompareInvalidMergeBase(t *testing.T) {
	env := newTestServer(t)
	rr := env.do(t, http.MethodGet, "/api/compare?base=main&head=main&merge_base=maybe", nil)
	expectError(t, rr, http.StatusBadRequest, "invalid_input")
}

func TestAPIContract_FilePatchIsPlainText(t *testing.T) {
	env := newTestServer(t)
	gittest.WriteFile(t, env.repo, "README.md", "test repo\nmore\n")

	rr := env.do(t, http.MethodGet, "/api/diff/file?path=README.md&mode=working", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("expected text/plain, got %q", ct)
	}
	if !strings.Contains(rr.Body.String(), "+more") {
		t.Fatalf("expected patch to contain +more, got:\n%s", rr.Body.String())
	}
}

func TestAPIContract_PRsDegrade(t *testing.T) {
	env := newTestServer(t)
	env.prs.err = github.ErrUnavailable

	rr := env.do(t, http.MethodGet, "/api/prs", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decode[contracts.PRsResponse](t, rr)
	if !resp.MetadataUnavailable {
		t.Fatal("expected metadata_unavailable")
	}
	if resp.PullRequests == nil || len(resp.PullRequests) != 0 {
		t.Fatalf("expected an empty list, got %+v", resp.PullRequests)
	}
}

func TestAPIContract_PRNumberValidation(t *testing.T) {
	env := newTestServer(t)
	for _, target := range []string{"/api/pr/abc", "/api/pr/0", "/api/pr/-3"} {
		t.Run(target, func(t *testing.T) {
			expectError(t, env.do(t, http.MethodGet, target, nil), http.StatusBadRequest, "invalid_input")
		})
	}
}

func TestAPIContract_ClosePRWorktreeNotTracked(t *testing.T) {
	env := newTestServer(t)
	expectError(t, env.do(t, http.MethodDelete, "/api/pr/5/worktree", nil), http.StatusNotFound, "not_found")
}

func TestAPIContract_FetchWithoutOrigin(t *testing.T) {
	env := newTestServer(t)
	expectError(t, env.do(t, http.MethodPost, "/api/fetch", nil), http.StatusBadRequest, "invalid_input")
}

func TestAPIContract_Worktrees(t *testing.T) {
	env := newTestServer(t)
	wt := filepath.Join(t.TempDir(), "feature")
	gittest.Run(t, env.repo, "worktree", "add", "-b", "feature", wt)

	rr := env.do(t, http.MethodGet, "/api/worktrees", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	list := decode[[]contracts.WorktreeInfo](t, rr)
	if len(list) != 2 {
		t.Fatalf("expected 2 worktrees, got %+v", list)
	}
	active := 0
	for _, w := range list {
		if w.IsActive {
			active++
			if w.Path != env.repo {
				t.Fatalf("expected %s active, got %s", env.repo, w.Path)
			}
		}
	}
	if active != 1 {
		t.Fatalf("expected exactly one active worktree, got %d", active)
	}
}

func TestAPIContract_WorktreeSwitch(t *testing.T) {
	env := newTestServer(t)
	wt := filepath.Join(t.TempDir(), "feature")
	gittest.Run(t, env.repo, "worktree", "add", "-b", "feature", wt)
	if resolved, err := filepath.EvalSymlinks(wt); err == nil {
		wt = resolved
	}

	rr := env.do(t, http.MethodPost, "/api/worktrees/switch", contracts.SwitchWorktreeRequest{Path: wt})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if resp := decode[contracts.SwitchWorktreeResponse](t, rr); resp.Path != wt {
		t.Fatalf("expected path %s, got %s", wt, resp.Path)
	}
	if got := env.state.GetActiveRepo(); got != wt {
		t.Fatalf("expected state active repo %s, got %s", wt, got)
	}
	health := decode[contracts.HealthResponse](t, env.do(t, http.MethodGet, "/api/healthz", nil))
	if health.Repo != wt {
		t.Fatalf("expected healthz repo %s, got %s", wt, health.Repo)
	}
}

func TestAPIContract_WorktreeSwitchValidation(t *testing.T) {
	env := newTestServer(t)
	tests := []struct {
		name string
		body any
	}{
		{"empty path", contracts.SwitchWorktreeRequest{}},
		{"not a repository", contracts.SwitchWorktreeRequest{Path: t.TempDir()}},
		{"missing directory", contracts.SwitchWorktreeRequest{Path: "/definitely/not/here"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/api/worktrees/switch", tt.body)
			expectError(t, rr, http.StatusBadRequest, "invalid_input")
		})
	}
}

func TestAPIContract_Open(t *testing.T) {
	env := newTestServer(t)

	rr := env.do(t, http.MethodPost, "/api/open", contracts.OpenFileRequest{Path: "README.md", Line: 3})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(env.editor.opened) != 1 || env.editor.opened[0] != filepath.Join(env.repo, "README.md") {
		t.Fatalf("unexpected editor calls: %v", env.editor.opened)
	}

	for _, path := range []string{"", "/etc/passwd", "../outside.txt", "a/../../b"} {
		rr := env.do(t, http.MethodPost, "/api/open", contracts.OpenFileRequest{Path: path})
		expectError(t, rr, http.StatusBadRequest, "invalid_input")
	}

	env.editor.found = false
	rr = env.do(t, http.MethodPost, "/api/open", contracts.OpenFileRequest{Path: "README.md"})
	expectError(t, rr, http.StatusServiceUnavailable, "unavailable")
}

func TestAPIContract_NoActiveRepo(t *testing.T) {
	server := NewServer(Options{
		Config:    config.CreateDefault(filepath.Join(t.TempDir(), "config.yaml")),
		Registry:  session.New(session.Options{}),
		Workspace: workspace.New(workspace.Options{}),
	})
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/diff", nil))
	expectError(t, rr, http.StatusBadRequest, "invalid_input")
}

func TestAPIContract_CORS(t *testing.T) {
	env := newTestServer(t)
	h := env.server.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/healthz", nil)
	req.Header.Set("Origin", "http://evil.example")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign origin, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/healthz", nil)
	req.Header.Set("Origin", "http://localhost:7338")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for local origin, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:7338" {
		t.Fatalf("expected allow-origin header, got %q", got)
	}
}

func TestAPIContract_Restore(t *testing.T) {
	env := newTestServer(t)
	other := gittest.WorkTree(t)
	env.state.SetActiveRepo(other, time.Now())

	if err := env.server.Restore(context.Background(), ""); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if a, _ := env.server.registry.Snapshot(); a.RepoPath != other {
		t.Fatalf("expected %s restored from state, got %s", other, a.RepoPath)
	}

	env.state.SetActiveRepo(filepath.Join(t.TempDir(), "gone"), time.Now())
	env.server.config.DefaultRepo = ""
	if err := env.server.Restore(context.Background(), ""); err == nil {
		t.Fatal("expected an error when no candidate is usable")
	}
}

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sergeknystautas/diffview/internal/api/contracts"
)

const (
	defaultTimeout = 30 * time.Second
	healthTimeout  = 2 * time.Second

	// subscribePingInterval keeps the change socket alive.
	subscribePingInterval = 30 * time.Second
)

// Client implements DaemonClient over the diffview HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	// repo is sent as ?repo= on every request when set.
	repo string
}

// NewDaemonClient creates a new daemon client.
func NewDaemonClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// GetDefaultURL returns the default daemon URL.
func GetDefaultURL() string {
	return "http://127.0.0.1:7338"
}

// WithRepo returns a copy of c whose requests target repo instead of the
// daemon's active repository.
func (c *Client) WithRepo(repo string) *Client {
	clone := *c
	clone.repo = repo
	return &clone
}

// APIError is a non-2xx response from the daemon.
type APIError struct {
	Status  int
	Kind    string
	Message string
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("daemon returned status %d (%s): %s", e.Status, e.Kind, e.Message)
	}
	return fmt.Sprintf("daemon returned status %d: %s", e.Status, e.Message)
}

// ErrorKind returns the error kind reported by the daemon, or "" when err
// did not come from an API response.
func ErrorKind(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

func (c *Client) endpoint(path string, query url.Values) string {
	if c.repo != "" {
		if query == nil {
			query = url.Values{}
		}
		query.Set("repo", c.repo)
	}
	if len(query) == 0 {
		return c.baseURL + path
	}
	return c.baseURL + path + "?" + query.Encode()
}

// do sends a request and decodes a JSON response into out (when non-nil).
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if s, ok := out.(*string); ok {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		*s = string(data)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func readAPIError(resp *http.Response) error {
	data, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return &APIError{Status: resp.StatusCode, Message: fmt.Sprintf("failed to read error body: %v", readErr)}
	}
	var body contracts.ErrorResponse
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		return &APIError{Status: resp.StatusCode, Kind: body.Kind, Message: body.Error}
	}
	return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
}

// IsRunning checks if the daemon is running.
func (c *Client) IsRunning() bool {
	ctx, cancel := context.WithTimeout(context.Background(), healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Health returns the daemon's health and active repository.
func (c *Client) Health(ctx context.Context) (contracts.HealthResponse, error) {
	var out contracts.HealthResponse
	err := c.do(ctx, http.MethodGet, "/api/healthz", nil, nil, &out)
	return out, err
}

// GetConfig fetches the client-facing configuration.
func (c *Client) GetConfig(ctx context.Context) (contracts.ClientConfig, error) {
	var out contracts.ClientConfig
	err := c.do(ctx, http.MethodGet, "/api/config", nil, nil, &out)
	return out, err
}

// WorkingDiff fetches uncommitted changes including untracked files.
func (c *Client) WorkingDiff(ctx context.Context) (contracts.DiffResult, error) {
	var out contracts.DiffResult
	err := c.do(ctx, http.MethodGet, "/api/diff", nil, nil, &out)
	return out, err
}

// FilePatchQuery selects the patch returned by FilePatch.
type FilePatchQuery struct {
	Path    string
	OldPath string // rename source, if any
	Mode    string // contracts.PatchMode*
	Ref     string
	Base    string
	Head    string
	// UseMergeBase applies to compare mode.
	UseMergeBase bool
}

// FilePatch fetches the full patch text for one file, used for files whose
// patch was withheld from a listing.
func (c *Client) FilePatch(ctx context.Context, q FilePatchQuery) (string, error) {
	query := url.Values{}
	query.Set("path", q.Path)
	query.Set("mode", q.Mode)
	if q.OldPath != "" {
		query.Set("old_path", q.OldPath)
	}
	if q.Ref != "" {
		query.Set("ref", q.Ref)
	}
	if q.Base != "" {
		query.Set("base", q.Base)
	}
	if q.Head != "" {
		query.Set("head", q.Head)
	}
	query.Set("merge_base", strconv.FormatBool(q.UseMergeBase))
	var out string
	err := c.do(ctx, http.MethodGet, "/api/diff/file", query, nil, &out)
	return out, err
}

// FileContent fetches a file at ref, or from the work tree when ref is empty.
func (c *Client) FileContent(ctx context.Context, path, ref string) (contracts.FileContent, error) {
	query := url.Values{"path": {path}}
	if ref != "" {
		query.Set("ref", ref)
	}
	var out contracts.FileContent
	err := c.do(ctx, http.MethodGet, "/api/file", query, nil, &out)
	return out, err
}

// History fetches one page of commits reachable from ref.
func (c *Client) History(ctx context.Context, ref string, page, perPage int) (contracts.HistoryPage, error) {
	query := url.Values{}
	if ref != "" {
		query.Set("ref", ref)
	}
	if page > 0 {
		query.Set("page", strconv.Itoa(page))
	}
	if perPage > 0 {
		query.Set("per_page", strconv.Itoa(perPage))
	}
	var out contracts.HistoryPage
	err := c.do(ctx, http.MethodGet, "/api/history", query, nil, &out)
	return out, err
}

// Commit fetches the diff introduced by one commit.
func (c *Client) Commit(ctx context.Context, sha string) (contracts.CommitDiff, error) {
	var out contracts.CommitDiff
	err := c.do(ctx, http.MethodGet, "/api/commit/"+url.PathEscape(sha), nil, nil, &out)
	return out, err
}

// Branches lists local and remote branches.
func (c *Client) Branches(ctx context.Context) (contracts.BranchList, error) {
	var out contracts.BranchList
	err := c.do(ctx, http.MethodGet, "/api/branches", nil, nil, &out)
	return out, err
}

// Compare fetches the diff between two refs.
func (c *Client) Compare(ctx context.Context, base, head string, useMergeBase bool) (contracts.CompareResult, error) {
	query := url.Values{
		"base":       {base},
		"head":       {head},
		"merge_base": {strconv.FormatBool(useMergeBase)},
	}
	var out contracts.CompareResult
	err := c.do(ctx, http.MethodGet, "/api/compare", query, nil, &out)
	return out, err
}

// PRs lists open pull requests.
func (c *Client) PRs(ctx context.Context) (contracts.PRsResponse, error) {
	var out contracts.PRsResponse
	err := c.do(ctx, http.MethodGet, "/api/prs", nil, nil, &out)
	return out, err
}

// PR fetches the diff of pull request n.
func (c *Client) PR(ctx context.Context, n int) (contracts.PRDiff, error) {
	var out contracts.PRDiff
	err := c.do(ctx, http.MethodGet, "/api/pr/"+strconv.Itoa(n), nil, nil, &out)
	return out, err
}

// CheckoutPR checks pull request n out into a local branch and returns it.
func (c *Client) CheckoutPR(ctx context.Context, n int) (string, error) {
	var out contracts.PRCheckoutResponse
	err := c.do(ctx, http.MethodPost, "/api/pr/"+strconv.Itoa(n)+"/checkout", nil, nil, &out)
	return out.Branch, err
}

// OpenPRWorktree creates a worktree for pull request n.
func (c *Client) OpenPRWorktree(ctx context.Context, n int) (contracts.PRWorktreeResponse, error) {
	var out contracts.PRWorktreeResponse
	err := c.do(ctx, http.MethodPost, "/api/pr/"+strconv.Itoa(n)+"/worktree", nil, nil, &out)
	return out, err
}

// ClosePRWorktree removes the worktree of pull request n.
func (c *Client) ClosePRWorktree(ctx context.Context, n int) error {
	return c.do(ctx, http.MethodDelete, "/api/pr/"+strconv.Itoa(n)+"/worktree", nil, nil, nil)
}

// Fetch updates remote-tracking refs from origin.
func (c *Client) Fetch(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/fetch", nil, nil, nil)
}

// Worktrees lists the repository's worktrees.
func (c *Client) Worktrees(ctx context.Context) ([]contracts.WorktreeInfo, error) {
	var out []contracts.WorktreeInfo
	err := c.do(ctx, http.MethodGet, "/api/worktrees", nil, nil, &out)
	return out, err
}

// SwitchWorktree makes path the daemon's active repository and returns the
// resolved work-tree root.
func (c *Client) SwitchWorktree(ctx context.Context, path string) (string, error) {
	var out contracts.SwitchWorktreeResponse
	err := c.do(ctx, http.MethodPost, "/api/worktrees/switch", nil, contracts.SwitchWorktreeRequest{Path: path}, &out)
	return out.Path, err
}

// OpenFile opens a repository-relative path in the configured editor.
func (c *Client) OpenFile(ctx context.Context, path string, line int) error {
	return c.do(ctx, http.MethodPost, "/api/open", nil, contracts.OpenFileRequest{Path: path, Line: line}, nil)
}

// Subscribe connects to the change channel. Events arrive on the returned
// channel, which is closed when ctx ends or the daemon disconnects (after
// delivering a repo-switched or closing message if one was sent).
func (c *Client) Subscribe(ctx context.Context) (<-chan contracts.ChangeEvent, error) {
	u, err := url.Parse(c.endpoint("/ws/changes", nil))
	if err != nil {
		return nil, fmt.Errorf("invalid daemon url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, readAPIError(resp)
		}
		return nil, fmt.Errorf("failed to connect to daemon: %w", err)
	}

	events := make(chan contracts.ChangeEvent, 16)
	done := make(chan struct{})
	go func() {
		defer close(events)
		defer close(done)
		for {
			var ev contracts.ChangeEvent
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			if ev.Type == contracts.WSTypePong {
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		ticker := time.NewTicker(subscribePingInterval)
		defer ticker.Stop()
		defer conn.Close()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteJSON(contracts.WSMessage{Type: contracts.WSTypePing}); err != nil {
					return
				}
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()
	return events, nil
}

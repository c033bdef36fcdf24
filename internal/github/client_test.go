package github

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRESTClientFetchOpenPRs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != userAgent {
			t.Errorf("expected User-Agent %q, got %q", userAgent, r.Header.Get("User-Agent"))
		}
		if r.URL.Path != "/repos/user/repo/pulls" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		prs := []map[string]interface{}{
			{
				"number":     42,
				"title":      "Add feature X",
				"body":       "This adds feature X",
				"state":      "open",
				"draft":      true,
				"html_url":   "https://github.com/user/repo/pull/42",
				"created_at": "2025-01-15T10:00:00Z",
				"user":       map[string]string{"login": "someone"},
				"head": map[string]interface{}{
					"ref": "feature-x",
					"repo": map[string]interface{}{
						"fork":  true,
						"owner": map[string]string{"login": "contributor"},
					},
				},
				"base": map[string]interface{}{
					"ref": "main",
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(prs)
	}))
	defer server.Close()

	origBase := apiBaseURL
	defer func() { setAPIBaseURL(origBase) }()
	setAPIBaseURL(server.URL)

	prs, err := RESTClient{}.FetchOpenPRs(context.Background(), RepoInfo{Owner: "user", Repo: "repo"})
	if err != nil {
		t.Fatalf("FetchOpenPRs() error = %v", err)
	}
	if len(prs) != 1 {
		t.Fatalf("expected 1 PR, got %d", len(prs))
	}
	pr := prs[0]
	if pr.Number != 42 || pr.Title != "Add feature X" || pr.Author != "someone" {
		t.Errorf("unexpected PR %+v", pr)
	}
	if pr.SourceBranch != "feature-x" || pr.TargetBranch != "main" {
		t.Errorf("branches = %q -> %q", pr.SourceBranch, pr.TargetBranch)
	}
	if !pr.IsFork || pr.ForkOwner != "contributor" || !pr.IsDraft {
		t.Errorf("fork/draft flags wrong: %+v", pr)
	}
}

func TestRESTClientRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message": "rate limit exceeded"}`))
	}))
	defer server.Close()

	origBase := apiBaseURL
	defer func() { setAPIBaseURL(origBase) }()
	setAPIBaseURL(server.URL)

	_, err := RESTClient{}.FetchOpenPRs(context.Background(), RepoInfo{Owner: "user", Repo: "repo"})
	if err == nil {
		t.Fatal("expected error")
	}
	var rle *RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("expected RateLimitError, got %T", err)
	}
	if rle.RetryAfterSec != 120 {
		t.Errorf("expected RetryAfterSec 120, got %d", rle.RetryAfterSec)
	}
}

func TestRESTClientNotFoundIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	origBase := apiBaseURL
	defer func() { setAPIBaseURL(origBase) }()
	setAPIBaseURL(server.URL)

	_, err := RESTClient{}.FetchPR(context.Background(), RepoInfo{Owner: "user", Repo: "private"}, 3)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

// setAPIBaseURL is a test helper to override the API base URL.
func setAPIBaseURL(url string) {
	apiBaseURL = url
}

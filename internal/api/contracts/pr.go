package contracts

import "time"

// PullRequest represents a GitHub pull request.
type PullRequest struct {
	Number       int       `json:"number"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	State        string    `json:"state"`
	SourceBranch string    `json:"source_branch"`
	TargetBranch string    `json:"target_branch"`
	Author       string    `json:"author"`
	CreatedAt    time.Time `json:"created_at"`
	HTMLURL      string    `json:"html_url"`
	ForkOwner    string    `json:"fork_owner,omitempty"`
	IsFork       bool      `json:"is_fork"`
	IsDraft      bool      `json:"is_draft,omitempty"`
}

// PRsResponse is the response for GET /api/prs.
type PRsResponse struct {
	PullRequests []PullRequest `json:"prs"`
	// MetadataUnavailable is set when the provider CLI could not be used.
	MetadataUnavailable bool   `json:"metadata_unavailable"`
	Error               string `json:"error,omitempty"`
}

// PRDiff is a PR's compare result with its provider metadata.
type PRDiff struct {
	CompareResult
	PR                  PullRequest `json:"pr"`
	MetadataUnavailable bool        `json:"metadata_unavailable"`
}

// PRCheckoutResponse is the response for POST /api/pr/{n}/checkout.
type PRCheckoutResponse struct {
	Branch string `json:"branch"`
}

// PRWorktreeResponse is the response for POST /api/pr/{n}/worktree.
type PRWorktreeResponse struct {
	Path   string `json:"path"`
	Branch string `json:"branch"`
}

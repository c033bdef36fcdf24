package contracts

// WorktreeInfo describes one git worktree of the active repository.
type WorktreeInfo struct {
	Path   string `json:"path"`
	Branch string `json:"branch"`
	Commit string `json:"commit"`
	// IsCurrent is true for the worktree git considers current for the repo root.
	IsCurrent bool `json:"is_current"`
	// IsActive is true for the worktree the server is currently serving.
	IsActive     bool   `json:"is_active"`
	BehindMain   int    `json:"behind_main"`
	AheadOfMain  int    `json:"ahead_of_main"`
	LastActivity string `json:"last_activity,omitempty"`
}

// SwitchWorktreeRequest is the body of POST /api/worktrees/switch.
type SwitchWorktreeRequest struct {
	Path string `json:"path"`
}

// SwitchWorktreeResponse is the response of POST /api/worktrees/switch.
type SwitchWorktreeResponse struct {
	Path string `json:"path"`
}

// OpenFileRequest is the body of POST /api/open.
type OpenFileRequest struct {
	Path string `json:"path"`
	Line int    `json:"line,omitempty"`
}

// HealthResponse is the response of GET /api/healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Repo    string `json:"repo"`
}

// ErrorResponse is the JSON body of every failed API request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

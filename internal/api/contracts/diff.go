package contracts

// FileStatus is the change classification of one file in a diff.
type FileStatus string

const (
	StatusAdded     FileStatus = "added"
	StatusDeleted   FileStatus = "deleted"
	StatusModified  FileStatus = "modified"
	StatusRenamed   FileStatus = "renamed"
	StatusUntracked FileStatus = "untracked"
)

// AllStatuses lists every status in display order.
var AllStatuses = []FileStatus{StatusAdded, StatusDeleted, StatusModified, StatusRenamed, StatusUntracked}

// Valid reports whether s is one of the known statuses.
func (s FileStatus) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// FileDiffInfo describes one changed file within a diff result.
type FileDiffInfo struct {
	Path      string     `json:"path"`
	OldPath   string     `json:"old_path,omitempty"`
	Status    FileStatus `json:"status"`
	Additions int        `json:"additions"`
	Deletions int        `json:"deletions"`
	Patch     string     `json:"patch,omitempty"`
	IsLarge   bool       `json:"is_large"`
	Binary    bool       `json:"binary,omitempty"`
	// ModifiedTime is the working-tree mtime in epoch milliseconds.
	ModifiedTime *int64 `json:"modified_time,omitempty"`
}

// Changes returns additions plus deletions.
func (f FileDiffInfo) Changes() int {
	return f.Additions + f.Deletions
}

// DiffStats aggregates line and file counts over a file list.
type DiffStats struct {
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
	Files     int `json:"files"`
}

// DiffResult is a list of changed files and their summed stats.
type DiffResult struct {
	Files []FileDiffInfo `json:"files"`
	Stats DiffStats      `json:"stats"`
}

// NewDiffResult builds a DiffResult whose stats are derived from files.
func NewDiffResult(files []FileDiffInfo) DiffResult {
	if files == nil {
		files = []FileDiffInfo{}
	}
	return DiffResult{Files: files, Stats: ComputeStats(files)}
}

// ComputeStats sums additions and deletions and counts files.
func ComputeStats(files []FileDiffInfo) DiffStats {
	var st DiffStats
	for _, f := range files {
		st.Additions += f.Additions
		st.Deletions += f.Deletions
	}
	st.Files = len(files)
	return st
}

// CommitInfo is immutable metadata for one commit.
type CommitInfo struct {
	SHA         string     `json:"sha"`
	ShortSHA    string     `json:"short_sha"`
	Message     string     `json:"message"`
	Author      string     `json:"author"`
	AuthorEmail string     `json:"author_email"`
	Date        string     `json:"date"`
	Parents     []string   `json:"parents,omitempty"`
	Stats       *DiffStats `json:"stats,omitempty"`
}

// CommitDiff is one commit and the files it changed.
type CommitDiff struct {
	Commit CommitInfo     `json:"commit"`
	Files  []FileDiffInfo `json:"files"`
	Stats  DiffStats      `json:"stats"`
}

// CompareResult is the diff between two refs plus ahead count.
type CompareResult struct {
	DiffResult
	Base          string `json:"base"`
	Head          string `json:"head"`
	UseMergeBase  bool   `json:"use_merge_base"`
	CommitCount   int    `json:"commit_count"`
	MergeBase     string `json:"merge_base,omitempty"`
	MergeBaseDate string `json:"merge_base_date,omitempty"`
}

// HistoryPage is one page of commit history.
type HistoryPage struct {
	Commits    []CommitInfo `json:"commits"`
	Total      int          `json:"total"`
	Page       int          `json:"page"`
	TotalPages int          `json:"total_pages"`
}

// BranchInfo describes one local or remote branch.
type BranchInfo struct {
	Name         string `json:"name"`
	IsRemote     bool   `json:"is_remote"`
	Commit       string `json:"commit"`
	LastActivity string `json:"last_activity,omitempty"`
}

// BranchList is the response for GET /api/branches.
type BranchList struct {
	Current  string       `json:"current"`
	Branches []BranchInfo `json:"branches"`
}

// FileContent is a file's content at the working tree or a ref.
type FileContent struct {
	Path     string `json:"path"`
	Ref      string `json:"ref,omitempty"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"` // "utf8" or "base64"
	MimeType string `json:"mime_type,omitempty"`
	Binary   bool   `json:"binary,omitempty"`
}

// Patch request modes for GET /api/diff/file.
const (
	PatchModeWorking = "working"
	PatchModeCommit  = "commit"
	PatchModeCompare = "compare"
)

package contracts

// ClientConfig is the subset of server configuration a client needs for its
// defaults. Returned by GET /api/config.
type ClientConfig struct {
	DefaultRepo        string `json:"default_repo"`
	DiffStyle          string `json:"diff_style"`
	LargeFileThreshold int    `json:"large_file_threshold"`
	EditorConfigured   bool   `json:"editor_configured"`
}

// Diff styles.
const (
	DiffStyleUnified = "unified"
	DiffStyleSplit   = "split"
)

// OKResponse is returned by mutating endpoints with no other payload.
type OKResponse struct {
	OK bool `json:"ok"`
}

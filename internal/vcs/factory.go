package vcs

import (
	"fmt"
	"os"
)

// Open returns a Client for repoPath using runner. A nil runner uses the
// package default ExecRunner. The path must be an existing directory; whether
// it is a repository is checked lazily by the first query.
func Open(repoPath string, runner Runner) (*GitClient, error) {
	info, err := os.Stat(repoPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotRepository, repoPath)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrNotRepository, repoPath)
	}
	if runner == nil {
		runner = DefaultRunner()
	}
	return &GitClient{path: repoPath, runner: runner}, nil
}

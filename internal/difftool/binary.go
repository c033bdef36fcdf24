// Package difftool classifies file content for display: binary detection and
// image MIME types.
package difftool

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
)

// sniffLen is how much of a file the null-byte heuristic inspects.
const sniffLen = 8192

// IsBinary checks for a null byte in the first 8KB of data. This is fast but
// may miss binary content without early null bytes.
func IsBinary(data []byte) bool {
	if len(data) > sniffLen {
		data = data[:sniffLen]
	}
	return bytes.IndexByte(data, 0) >= 0
}

// isBinaryHeuristic runs IsBinary on the head of the file at path.
func isBinaryHeuristic(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	buf := make([]byte, sniffLen)
	n, _ := f.Read(buf)
	return IsBinary(buf[:n])
}

// IsBinaryFile checks if a work-tree file is binary using git's detection.
// It runs 'git diff --numstat --no-index /dev/null <file>' and checks if git
// reports it as binary, which respects .gitattributes.
func IsBinaryFile(ctx context.Context, repoDir string, filePath string) bool {
	// Fast path: check for null bytes in first 8KB
	if isBinaryHeuristic(filePath) {
		return true
	}

	cmd := exec.CommandContext(ctx, "git", "-C", repoDir, "diff", "--numstat", "--no-index", "/dev/null", filePath)
	output, err := cmd.Output()
	if err != nil && len(output) == 0 {
		return false
	}
	// Git outputs "-\t-\t..." for binary files
	return strings.HasPrefix(string(output), "-\t-")
}

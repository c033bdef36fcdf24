package detect

import (
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
)

// oscEscapeRe matches OSC escape sequences (e.g., iTerm2 shell integration markers).
// Format: ESC ] ... BEL  or  ESC ] ... ESC \
var oscEscapeRe = regexp.MustCompile(`\x1b\][^\x07\x1b]*(?:\x07|\x1b\\)`)

// csiEscapeRe matches CSI escape sequences (e.g., cursor positioning, colors).
var csiEscapeRe = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)

// parseCommandV extracts an executable path from `command -v cmd` output of
// an interactive shell. Handles plain paths and both alias spellings
// ("alias code='code-fb'" and "code: aliased to code-fb").
func parseCommandV(output, cmd string) (string, bool) {
	result := strings.TrimSpace(stripEscapeSequences(output))
	// interactive shells may print banners first
	if i := strings.LastIndex(result, "\n"); i >= 0 {
		result = strings.TrimSpace(result[i+1:])
	}
	if result == "" || result == cmd {
		return "", false
	}

	path := result
	if strings.HasPrefix(result, "alias ") {
		if idx := strings.Index(result, "="); idx != -1 {
			path = strings.Trim(result[idx+1:], "'\"")
		}
	} else if _, target, ok := strings.Cut(result, ": aliased to "); ok {
		path = strings.TrimSpace(target)
	}
	// aliases may carry arguments; keep the command
	if fields := strings.Fields(path); len(fields) > 0 {
		path = fields[0]
	}

	if !filepath.IsAbs(path) {
		if resolved, err := exec.LookPath(path); err == nil {
			return resolved, true
		}
		return "", false
	}
	if isExecutable(path) {
		return path, true
	}
	return "", false
}

// stripEscapeSequences removes terminal escape sequences from shell output.
func stripEscapeSequences(s string) string {
	s = oscEscapeRe.ReplaceAllString(s, "")
	s = csiEscapeRe.ReplaceAllString(s, "")
	return s
}

// Package detect finds the editor used to open files from the diff view.
package detect

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"time"
)

// DefaultCandidates are the editor commands tried, in order, when none is
// configured.
var DefaultCandidates = []string{"code", "cursor", "zed", "subl"}

// EditorPath holds the resolved editor command and how it was found.
type EditorPath struct {
	Name   string // command name, e.g. "code"
	Path   string // the path or command to use
	Source string // how it was found (for logging/debugging)
}

// ResolveEditor finds the editor named preferred, or the first installed
// DefaultCandidates entry when preferred is empty. For each name it tries,
// in order:
// 1. exec.LookPath
// 2. the user's shell via 'command -v' (aliases and functions)
// 3. well-known installation locations
func ResolveEditor(ctx context.Context, preferred string) (EditorPath, bool) {
	names := DefaultCandidates
	if preferred != "" {
		names = []string{preferred}
	}

	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return EditorPath{Name: name, Path: path, Source: "PATH"}, true
		}
	}
	for _, name := range names {
		if path, found := resolveViaShell(ctx, name); found {
			return EditorPath{Name: name, Path: path, Source: "shell alias/function"}, true
		}
	}
	for _, name := range names {
		if path, source, found := checkKnownLocations(name); found {
			return EditorPath{Name: name, Path: path, Source: source}, true
		}
	}
	return EditorPath{}, false
}

// OpenArgs returns the arguments that open path at line in the editor.
// A line below 1 opens the file without positioning.
func OpenArgs(name, path string, line int) []string {
	if line < 1 {
		return []string{path}
	}
	target := path + ":" + strconv.Itoa(line)
	switch filepath.Base(name) {
	case "code", "code-insiders", "cursor", "codium":
		return []string{"--goto", target}
	case "idea", "goland", "pycharm", "webstorm":
		return []string{"--line", strconv.Itoa(line), path}
	case "subl", "zed":
		return []string{target}
	case "vim", "nvim", "emacs", "nano":
		return []string{"+" + strconv.Itoa(line), path}
	default:
		return []string{path}
	}
}

// Open launches the editor on path without waiting for it to exit.
func Open(ctx context.Context, editor EditorPath, path string, line int) error {
	cmd := exec.Command(editor.Path, OpenArgs(editor.Name, path, line)...)
	cmd.Dir = filepath.Dir(path)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", editor.Name, err)
	}
	go func() {
		// reap the child; its exit status is irrelevant
		_ = cmd.Wait()
	}()
	return nil
}

// resolveViaShell asks the user's shell for cmd so aliases defined in
// startup files are found.
func resolveViaShell(ctx context.Context, cmd string) (string, bool) {
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}

	for _, shell := range []string{"zsh", "bash", "sh"} {
		if _, err := exec.LookPath(shell); err != nil {
			continue
		}
		args := []string{"-i", "-c", "command -v " + cmd}
		if shell == "sh" {
			args = []string{"-c", "command -v " + cmd}
		}
		output, err := exec.CommandContext(ctx, shell, args...).Output()
		if err != nil {
			continue
		}
		if path, ok := parseCommandV(string(output), cmd); ok {
			return path, true
		}
	}
	return "", false
}

// checkKnownLocations checks where editors install their CLI helpers.
func checkKnownLocations(name string) (path string, source string, found bool) {
	home, _ := os.UserHomeDir()
	type location struct{ path, source string }
	var locations []location

	switch runtime.GOOS {
	case "darwin":
		bundles := map[string]string{
			"code":   "Visual Studio Code.app/Contents/Resources/app/bin/code",
			"cursor": "Cursor.app/Contents/Resources/app/bin/cursor",
			"subl":   "Sublime Text.app/Contents/SharedSupport/bin/subl",
			"zed":    "Zed.app/Contents/MacOS/cli",
		}
		if rel, ok := bundles[name]; ok {
			locations = append(locations, location{filepath.Join("/Applications", rel), name + " app bundle"})
			if home != "" {
				locations = append(locations, location{filepath.Join(home, "Applications", rel), name + " app bundle (user)"})
			}
		}
	case "linux":
		locations = append(locations,
			location{filepath.Join("/usr/bin", name), "system install"},
			location{filepath.Join("/usr/share", name, "bin", name), "system install (share)"},
			location{filepath.Join("/snap/bin", name), "snap"},
		)
		if home != "" {
			locations = append(locations, location{filepath.Join(home, ".local", "bin", name), "user local install"})
		}
	}

	for _, loc := range locations {
		if isExecutable(loc.path) {
			return loc.path, loc.source, true
		}
	}
	return "", "", false
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return runtime.GOOS == "windows" || info.Mode()&0111 != 0
}

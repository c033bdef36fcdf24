package vcs

import (
	"context"
	"fmt"
	"regexp"

	"github.com/Masterminds/semver/v3"
)

// MinGitVersion is the oldest git the client's commands are known to work
// with (`branch --show-current` arrived in 2.22).
const MinGitVersion = "2.22.0"

var gitVersionRe = regexp.MustCompile(`(\d+)\.(\d+)(?:\.(\d+))?`)

// ParseGitVersion extracts the version from `git version` output such as
// "git version 2.39.3 (Apple Git-146)" or "git version 2.45.1.windows.1".
func ParseGitVersion(output string) (*semver.Version, error) {
	m := gitVersionRe.FindStringSubmatch(output)
	if m == nil {
		return nil, fmt.Errorf("unrecognized git version output %q", output)
	}
	patch := m[3]
	if patch == "" {
		patch = "0"
	}
	return semver.NewVersion(fmt.Sprintf("%s.%s.%s", m[1], m[2], patch))
}

// CheckVersion verifies that the runner's git is at least MinGitVersion.
func CheckVersion(ctx context.Context, runner Runner) (*semver.Version, error) {
	if runner == nil {
		runner = DefaultRunner()
	}
	out, err := runner.Run(ctx, "", "version")
	if err != nil {
		return nil, err
	}
	v, err := ParseGitVersion(string(out))
	if err != nil {
		return nil, err
	}
	c, err := semver.NewConstraint(">= " + MinGitVersion)
	if err != nil {
		return nil, err
	}
	if !c.Check(v) {
		return v, fmt.Errorf("git %s is too old, %s or newer is required", v, MinGitVersion)
	}
	return v, nil
}

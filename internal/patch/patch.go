// Package patch parses single-file unified diffs into hunks and lines.
package patch

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var hunkHeaderRegex = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@(.*)$`)

// LineType is the kind of a diff line.
type LineType int

const (
	LineContext  LineType = iota // ' ' prefix
	LineAddition                 // '+' prefix
	LineDeletion                 // '-' prefix
)

// Line is one content line of a hunk.
type Line struct {
	Type       LineType
	OldLineNum int // 0 for additions
	NewLineNum int // 0 for deletions
	Content    string
	// NoNewline is set when the line is followed by "\ No newline at end of file".
	NoNewline bool
}

// Hunk is a contiguous block of changes delimited by an @@ header.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Header   string
	Section  string // text after the closing @@, usually a function name
	Lines    []Line
}

// File is a parsed single-file patch.
type File struct {
	Binary bool
	Hunks  []Hunk
}

// LineCount returns the number of content lines across all hunks.
func (f File) LineCount() int {
	n := 0
	for _, h := range f.Hunks {
		n += len(h.Lines)
	}
	return n
}

// Parse parses the unified diff text of one file. Extended headers (diff --git,
// index, mode, rename, ---/+++) are skipped.
func Parse(text string) (File, error) {
	var f File
	if text == "" {
		return f, nil
	}
	var cur *Hunk
	oldLine, newLine := 0, 0
	inHeader := true

	for _, line := range strings.Split(strings.TrimSuffix(text, "\n"), "\n") {
		if m := hunkHeaderRegex.FindStringSubmatch(line); m != nil {
			if cur != nil {
				f.Hunks = append(f.Hunks, *cur)
			}
			h, err := hunkFromMatch(line, m)
			if err != nil {
				return File{}, err
			}
			cur = &h
			oldLine, newLine = h.OldStart, h.NewStart
			inHeader = false
			continue
		}
		if strings.HasPrefix(line, "diff --git ") {
			if cur != nil {
				f.Hunks = append(f.Hunks, *cur)
				cur = nil
			}
			inHeader = true
			continue
		}
		if inHeader || cur == nil {
			if strings.HasPrefix(line, "Binary files ") || line == "GIT binary patch" {
				f.Binary = true
			}
			continue
		}

		switch {
		case strings.HasPrefix(line, "+"):
			cur.Lines = append(cur.Lines, Line{Type: LineAddition, NewLineNum: newLine, Content: line[1:]})
			newLine++
		case strings.HasPrefix(line, "-"):
			cur.Lines = append(cur.Lines, Line{Type: LineDeletion, OldLineNum: oldLine, Content: line[1:]})
			oldLine++
		case strings.HasPrefix(line, `\`):
			if n := len(cur.Lines); n > 0 {
				cur.Lines[n-1].NoNewline = true
			}
		default:
			content := line
			if strings.HasPrefix(line, " ") {
				content = line[1:]
			}
			cur.Lines = append(cur.Lines, Line{Type: LineContext, OldLineNum: oldLine, NewLineNum: newLine, Content: content})
			oldLine++
			newLine++
		}
	}
	if cur != nil {
		f.Hunks = append(f.Hunks, *cur)
	}
	return f, nil
}

func hunkFromMatch(line string, m []string) (Hunk, error) {
	oldStart, err := strconv.Atoi(m[1])
	if err != nil {
		return Hunk{}, fmt.Errorf("invalid old start line in hunk header: %s", line)
	}
	oldCount := 1
	if m[2] != "" {
		if oldCount, err = strconv.Atoi(m[2]); err != nil {
			return Hunk{}, fmt.Errorf("invalid old count in hunk header: %s", line)
		}
	}
	newStart, err := strconv.Atoi(m[3])
	if err != nil {
		return Hunk{}, fmt.Errorf("invalid new start line in hunk header: %s", line)
	}
	newCount := 1
	if m[4] != "" {
		if newCount, err = strconv.Atoi(m[4]); err != nil {
			return Hunk{}, fmt.Errorf("invalid new count in hunk header: %s", line)
		}
	}
	return Hunk{
		OldStart: oldStart,
		OldCount: oldCount,
		NewStart: newStart,
		NewCount: newCount,
		Header:   line,
		Section:  strings.TrimSpace(m[5]),
	}, nil
}

// SynthesizeAdded builds a patch presenting content as a newly added file:
// one hunk, every line an addition.
func SynthesizeAdded(path, content string) (patch string, additions int) {
	var b strings.Builder
	fmt.Fprintf(&b, "diff --git a/%s b/%s\n", path, path)
	b.WriteString("new file mode 100644\n")
	b.WriteString("--- /dev/null\n")
	fmt.Fprintf(&b, "+++ b/%s\n", path)
	if content == "" {
		return b.String(), 0
	}

	trailingNewline := strings.HasSuffix(content, "\n")
	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	fmt.Fprintf(&b, "@@ -0,0 +1,%d @@\n", len(lines))
	for _, l := range lines {
		b.WriteString("+")
		b.WriteString(l)
		b.WriteString("\n")
	}
	if !trailingNewline {
		b.WriteString("\\ No newline at end of file\n")
	}
	return b.String(), len(lines)
}

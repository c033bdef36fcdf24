// Package vimnav moves a cursor over files, hunks and lines with vim keys.
//
// The Navigator never touches rendering directly. It drives a Renderer,
// which owns expansion and scrolling, and it tolerates content that appears
// some time after a file is expanded: moves into such a file leave a pending
// action that Resolve completes once the lines exist.
package vimnav

import (
	"context"
	"errors"
	"time"
)

// DefaultWait bounds how long a pending action waits for content.
const DefaultWait = 2 * time.Second

const pollInterval = 10 * time.Millisecond

var (
	ErrOutOfRange     = errors.New("file index out of range")
	ErrContentTimeout = errors.New("timed out waiting for file content")
)

// LineKind classifies a diff line.
type LineKind int

const (
	LineContext LineKind = iota
	LineAdded
	LineDeleted
)

// Line is one rendered diff line.
type Line struct {
	Kind LineKind
	// OldNumber is 0 for added lines; NewNumber is 0 for deleted lines.
	OldNumber int
	NewNumber int
}

// Hunk marks where a hunk starts within a file's lines.
type Hunk struct {
	Start  int
	Header string
}

// Target is a scroll destination. Line -1 is the file header.
type Target struct {
	File int
	Line int
}

// Renderer is what the navigator needs from the diff view. GetLines and
// GetHunks report false until an expanded file's content exists.
type Renderer interface {
	FileCount() int
	GetLines(file int) ([]Line, bool)
	GetHunks(file int) ([]Hunk, bool)
	IsExpanded(file int) bool
	SetExpanded(file int, expanded bool)
	SetAllExpanded(expanded bool)
	ScrollTo(t Target)
	OpenInEditor(file int)
}

// KeyContext describes where the key was typed.
type KeyContext struct {
	TextInputFocused bool
}

// Focus is the cursor. Hunk and Line are -1 on a file header; File is -1
// while the navigator is inactive.
type Focus struct {
	File int
	Hunk int
	Line int
}

var noFocus = Focus{File: -1, Hunk: -1, Line: -1}

func header(file int) Focus { return Focus{File: file, Hunk: -1, Line: -1} }

// Result reports what a key did.
type Result struct {
	// Handled is true when the key was consumed.
	Handled bool
	Focus   Focus
	// Pending is true while a move waits for content.
	Pending bool
	// Awaiting is the held first key of a two-key sequence.
	Awaiting string
}

// Options configures a Navigator.
type Options struct {
	SequenceTimeout time.Duration
	Wait            time.Duration
	Now             func() time.Time
}

type landing func(file int, lines []Line, hunks []Hunk) Focus

type pendingMove struct {
	file     int
	land     landing
	deadline time.Time
}

// Navigator is the key state machine. It is not safe for concurrent use.
type Navigator struct {
	r       Renderer
	seq     *SequenceDetector
	now     func() time.Time
	wait    time.Duration
	active  bool
	focus   Focus
	pending *pendingMove
}

// New returns an inactive navigator over r.
func New(r Renderer, opts Options) *Navigator {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	wait := opts.Wait
	if wait <= 0 {
		wait = DefaultWait
	}
	return &Navigator{
		r:     r,
		seq:   NewSequenceDetector(opts.SequenceTimeout, now),
		now:   now,
		wait:  wait,
		focus: noFocus,
	}
}

// Active reports whether the cursor is shown.
func (n *Navigator) Active() bool { return n.active }

// Focus returns the cursor.
func (n *Navigator) Focus() Focus { return n.focus }

// Pending reports whether a move waits for content.
func (n *Navigator) Pending() bool { return n.pending != nil }

// Reset deactivates the navigator, for example when the diff changes.
func (n *Navigator) Reset() {
	n.active = false
	n.focus = noFocus
	n.pending = nil
	n.seq.Reset()
}

// FocusFile activates the navigator on file's header without scrolling.
func (n *Navigator) FocusFile(file int) {
	if file < 0 || file >= n.r.FileCount() {
		return
	}
	n.pending = nil
	n.active = true
	n.focus = header(file)
}

func isNavKey(key string) bool {
	switch key {
	case "j", "k", "{", "}", "[[", "]]", "gg", "G", "h", "l", "enter", " ", "space", "H", "L", "o":
		return true
	}
	return false
}

func isEscape(key string) bool {
	return key == "esc" || key == "escape"
}

// HandleKey applies one key press.
func (n *Navigator) HandleKey(key string, kc KeyContext) Result {
	if kc.TextInputFocused {
		return n.result(false)
	}
	if isEscape(key) {
		consumed := n.active || n.pending != nil || n.seq.Awaiting() != ""
		n.Reset()
		return n.result(consumed)
	}
	count := n.r.FileCount()
	if count == 0 {
		n.seq.Reset()
		return n.result(false)
	}

	seq, waiting := n.seq.Feed(key)
	if waiting {
		res := n.result(true)
		res.Awaiting = key
		return res
	}
	if seq != "" {
		key = seq
	}
	if !isNavKey(key) {
		return n.result(false)
	}

	n.pending = nil
	if n.focus.File >= count {
		n.focus = header(count - 1)
	}
	if !n.active {
		n.active = true
		switch key {
		case "j", "k", "{", "}", "[[", "]]":
			return n.goTo(0, landFirstLine)
		case "h", "l", "enter", " ", "space", "o":
			n.focus = header(0)
		}
	}

	f := n.focus.File
	switch key {
	case "j":
		return n.down(f, count)
	case "k":
		return n.up(f)
	case "}":
		return n.nextHunk(f, count)
	case "{":
		return n.prevHunk(f)
	case "]]":
		if f+1 >= count {
			return n.result(true)
		}
		return n.goTo(f+1, landFirstLine)
	case "[[":
		if f <= 0 {
			return n.result(true)
		}
		return n.goTo(f-1, landFirstLine)
	case "gg":
		return n.goTo(0, landFirstLine)
	case "G":
		return n.goTo(count-1, landLastLine)
	case "h":
		n.r.SetExpanded(f, false)
		return n.setFocus(header(f))
	case "l":
		n.r.SetExpanded(f, true)
		return n.setFocus(header(f))
	case "enter", " ", "space":
		if n.r.IsExpanded(f) {
			n.r.SetExpanded(f, false)
		} else {
			n.r.SetExpanded(f, true)
		}
		return n.setFocus(header(f))
	case "H":
		n.r.SetAllExpanded(false)
		return n.setFocus(header(max(f, 0)))
	case "L":
		n.r.SetAllExpanded(true)
		if f < 0 {
			return n.setFocus(header(0))
		}
		return n.result(true)
	case "o":
		n.r.OpenInEditor(f)
		return n.result(true)
	}
	return n.result(false)
}

func (n *Navigator) down(f, count int) Result {
	if n.r.IsExpanded(f) {
		lines, hunks, ok := n.content(f)
		if !ok {
			return n.goTo(f, landFirstLine)
		}
		if next := n.focus.Line + 1; next < len(lines) {
			return n.setFocus(Focus{File: f, Hunk: hunkOf(hunks, next), Line: next})
		}
	}
	if f+1 >= count {
		return n.result(true)
	}
	return n.goTo(f+1, landFirstLine)
}

func (n *Navigator) up(f int) Result {
	if n.r.IsExpanded(f) && n.focus.Line > 0 {
		lines, hunks, ok := n.content(f)
		if !ok {
			return n.goTo(f, landFirstLine)
		}
		prev := min(n.focus.Line-1, len(lines)-1)
		if prev >= 0 {
			return n.setFocus(Focus{File: f, Hunk: hunkOf(hunks, prev), Line: prev})
		}
	}
	if f <= 0 {
		return n.result(true)
	}
	return n.goTo(f-1, landLastLine)
}

func (n *Navigator) nextHunk(f, count int) Result {
	if n.r.IsExpanded(f) {
		_, hunks, ok := n.content(f)
		if !ok {
			return n.goTo(f, landFirstHunk)
		}
		for i, h := range hunks {
			if h.Start > n.focus.Line {
				return n.setFocus(Focus{File: f, Hunk: i, Line: h.Start})
			}
		}
	}
	if f+1 >= count {
		return n.result(true)
	}
	return n.goTo(f+1, landFirstHunk)
}

func (n *Navigator) prevHunk(f int) Result {
	if n.r.IsExpanded(f) && n.focus.Line >= 0 {
		_, hunks, ok := n.content(f)
		if !ok {
			return n.goTo(f, landFirstHunk)
		}
		for i := len(hunks) - 1; i >= 0; i-- {
			if hunks[i].Start < n.focus.Line {
				return n.setFocus(Focus{File: f, Hunk: i, Line: hunks[i].Start})
			}
		}
	}
	if f <= 0 {
		return n.result(true)
	}
	return n.goTo(f-1, landLastHunk)
}

// goTo expands file and lands on it, or leaves a pending move when its
// content does not exist yet.
func (n *Navigator) goTo(file int, land landing) Result {
	if file < 0 || file >= n.r.FileCount() {
		return n.result(true)
	}
	if !n.r.IsExpanded(file) {
		n.r.SetExpanded(file, true)
	}
	if lines, hunks, ok := n.content(file); ok {
		return n.setFocus(land(file, lines, hunks))
	}
	n.pending = &pendingMove{file: file, land: land, deadline: n.now().Add(n.wait)}
	return n.setFocus(header(file))
}

// Resolve retries a pending move. changed is true when the move completed or
// was abandoned after the wait deadline.
func (n *Navigator) Resolve() (res Result, changed bool) {
	p := n.pending
	if p == nil {
		return n.result(false), false
	}
	if p.file >= n.r.FileCount() {
		n.pending = nil
		return n.result(true), true
	}
	if lines, hunks, ok := n.content(p.file); ok {
		n.pending = nil
		return n.setFocus(p.land(p.file, lines, hunks)), true
	}
	if n.now().After(p.deadline) {
		n.pending = nil
		return n.result(true), true
	}
	return n.result(true), false
}

// WaitForContent polls the renderer until file's lines exist. The renderer
// must be safe to call from the calling goroutine.
func (n *Navigator) WaitForContent(ctx context.Context, file int) ([]Line, []Hunk, error) {
	if file < 0 || file >= n.r.FileCount() {
		return nil, nil, ErrOutOfRange
	}
	ctx, cancel := context.WithTimeout(ctx, n.wait)
	defer cancel()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		if lines, hunks, ok := n.content(file); ok {
			return lines, hunks, nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, nil, ErrContentTimeout
			}
			return nil, nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (n *Navigator) content(file int) ([]Line, []Hunk, bool) {
	lines, ok := n.r.GetLines(file)
	if !ok {
		return nil, nil, false
	}
	hunks, ok := n.r.GetHunks(file)
	if !ok {
		return nil, nil, false
	}
	return lines, hunks, true
}

func (n *Navigator) setFocus(f Focus) Result {
	n.focus = f
	n.r.ScrollTo(Target{File: f.File, Line: f.Line})
	return n.result(true)
}

func (n *Navigator) result(handled bool) Result {
	return Result{Handled: handled, Focus: n.focus, Pending: n.pending != nil, Awaiting: n.seq.Awaiting()}
}

func hunkOf(hunks []Hunk, line int) int {
	idx := -1
	for i, h := range hunks {
		if h.Start > line {
			break
		}
		idx = i
	}
	return idx
}

func landFirstLine(file int, lines []Line, hunks []Hunk) Focus {
	if len(lines) == 0 {
		return header(file)
	}
	return Focus{File: file, Hunk: hunkOf(hunks, 0), Line: 0}
}

func landLastLine(file int, lines []Line, hunks []Hunk) Focus {
	if len(lines) == 0 {
		return header(file)
	}
	last := len(lines) - 1
	return Focus{File: file, Hunk: hunkOf(hunks, last), Line: last}
}

func landFirstHunk(file int, lines []Line, hunks []Hunk) Focus {
	if len(hunks) == 0 {
		return landFirstLine(file, lines, hunks)
	}
	return Focus{File: file, Hunk: 0, Line: hunks[0].Start}
}

func landLastHunk(file int, lines []Line, hunks []Hunk) Focus {
	if len(hunks) == 0 {
		return landLastLine(file, lines, hunks)
	}
	last := len(hunks) - 1
	return Focus{File: file, Hunk: last, Line: hunks[last].Start}
}

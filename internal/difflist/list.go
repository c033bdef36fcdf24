// Package difflist is a windowed list of file diffs. Only files near the
// viewport are materialized, and each file is auto-expanded the first time it
// scrolls into view unless the user already toggled it.
package difflist

import (
	"slices"
	"strings"

	"github.com/sergeknystautas/diffview/internal/api/contracts"
)

const (
	// HeaderRows is the height of a collapsed file.
	HeaderRows = 1
	// LargePlaceholderRows is the height of an expanded file whose patch was
	// withheld or is binary.
	LargePlaceholderRows = 3
	// MaxExpandedRows caps the estimate for one expanded file.
	MaxExpandedRows = 400
	// DefaultOverscan is the margin, in rows, rendered beyond each edge of
	// the viewport.
	DefaultOverscan = 10
)

// EstimateHeight returns the rows a file occupies. It depends only on its
// arguments.
func EstimateHeight(f contracts.FileDiffInfo, expanded bool) int {
	if !expanded {
		return HeaderRows
	}
	if f.IsLarge || f.Binary {
		return LargePlaceholderRows
	}
	h := HeaderRows + f.Additions + f.Deletions + hunkCount(f)
	return min(h, MaxExpandedRows)
}

func hunkCount(f contracts.FileDiffInfo) int {
	n := 0
	for _, line := range strings.Split(f.Patch, "\n") {
		if strings.HasPrefix(line, "@@") {
			n++
		}
	}
	if n == 0 && f.Additions+f.Deletions > 0 {
		n = 1
	}
	return n
}

// MeasureFunc reports a file's height in rows.
type MeasureFunc func(f contracts.FileDiffInfo, expanded bool) int

// Item is one materialized row range.
type Item struct {
	Index    int
	File     contracts.FileDiffInfo
	Offset   int
	Height   int
	Expanded bool
}

// Options configures a List.
type Options struct {
	// Overscan defaults to DefaultOverscan. Negative disables it.
	Overscan int
	// Measure defaults to EstimateHeight.
	Measure MeasureFunc
}

// List holds the files, their expansion state and the viewport. Not safe for
// concurrent use.
type List struct {
	files    []contracts.FileDiffInfo
	identity string
	index    map[string]int

	expanded       map[string]bool
	autoHandled    map[string]struct{}
	userOverridden map[string]struct{}

	offset   int
	height   int
	overscan int
	measure  MeasureFunc
}

// New returns an empty list.
func New(opts Options) *List {
	l := &List{
		index:          map[string]int{},
		expanded:       map[string]bool{},
		autoHandled:    map[string]struct{}{},
		userOverridden: map[string]struct{}{},
		overscan:       opts.Overscan,
		measure:        opts.Measure,
	}
	if l.overscan == 0 {
		l.overscan = DefaultOverscan
	}
	if l.overscan < 0 {
		l.overscan = 0
	}
	if l.measure == nil {
		l.measure = EstimateHeight
	}
	return l
}

func identityOf(files []contracts.FileDiffInfo, sourceKey string) string {
	var b strings.Builder
	b.WriteString(sourceKey)
	for _, f := range files {
		b.WriteByte(0)
		b.WriteString(f.Path)
	}
	return b.String()
}

// SetFiles replaces the file list. sourceKey names where the files came from
// (a tab and its diff context). When the ordered paths or the key change, the
// auto-expand bookkeeping resets and expansion is kept only for paths that
// are still present. It reports whether the identity changed.
func (l *List) SetFiles(files []contracts.FileDiffInfo, sourceKey string) bool {
	id := identityOf(files, sourceKey)
	l.files = files
	clear(l.index)
	for i, f := range files {
		l.index[f.Path] = i
	}
	if id == l.identity {
		l.clampOffset()
		return false
	}
	l.identity = id
	l.autoHandled = map[string]struct{}{}
	l.userOverridden = map[string]struct{}{}
	for path := range l.expanded {
		if _, ok := l.index[path]; !ok {
			delete(l.expanded, path)
		}
	}
	l.clampOffset()
	return true
}

// Files returns the current list.
func (l *List) Files() []contracts.FileDiffInfo { return l.files }

// Len returns the number of files.
func (l *List) Len() int { return len(l.files) }

// IndexOf returns the position of path, or -1.
func (l *List) IndexOf(path string) int {
	if i, ok := l.index[path]; ok {
		return i
	}
	return -1
}

func (l *List) heightAt(i int) int {
	f := l.files[i]
	return l.measure(f, l.expanded[f.Path])
}

// TotalHeight is the sum of every file's height.
func (l *List) TotalHeight() int {
	total := 0
	for i := range l.files {
		total += l.heightAt(i)
	}
	return total
}

// OffsetOf returns the first row of file i. Out-of-range indexes clamp to
// the ends.
func (l *List) OffsetOf(i int) int {
	i = max(0, min(i, len(l.files)))
	off := 0
	for j := 0; j < i; j++ {
		off += l.heightAt(j)
	}
	return off
}

// HeightOf returns the rows file i occupies, or 0 when out of range.
func (l *List) HeightOf(i int) int {
	if i < 0 || i >= len(l.files) {
		return 0
	}
	return l.heightAt(i)
}

// SetViewport sets the visible height in rows.
func (l *List) SetViewport(height int) {
	l.height = max(0, height)
	l.clampOffset()
}

// Viewport returns the scroll offset and height.
func (l *List) Viewport() (offset, height int) { return l.offset, l.height }

// SetOffset scrolls to an absolute row.
func (l *List) SetOffset(offset int) {
	l.offset = offset
	l.clampOffset()
}

// ScrollBy moves the viewport by delta rows.
func (l *List) ScrollBy(delta int) { l.SetOffset(l.offset + delta) }

func (l *List) clampOffset() {
	maxOffset := max(0, l.TotalHeight()-l.height)
	l.offset = max(0, min(l.offset, maxOffset))
}

// ScrollToFile puts the file's header at the top of the viewport, as far as
// the list allows. It reports whether path is present.
func (l *List) ScrollToFile(path string) bool {
	i := l.IndexOf(path)
	if i < 0 {
		return false
	}
	l.SetOffset(l.OffsetOf(i))
	return true
}

// EnsureVisible scrolls the least amount needed to show row within file i.
func (l *List) EnsureVisible(i, row int) {
	if i < 0 || i >= len(l.files) {
		return
	}
	row = max(0, min(row, l.heightAt(i)-1))
	abs := l.OffsetOf(i) + row
	switch {
	case abs < l.offset:
		l.offset = abs
	case l.height > 0 && abs >= l.offset+l.height:
		l.offset = abs - l.height + 1
	}
	l.clampOffset()
}

// Visible returns the files intersecting the viewport plus the overscan
// margin. Files entering that window for the first time are expanded unless
// the user already chose their state.
func (l *List) Visible() []Item {
	start := l.offset - l.overscan
	end := l.offset + l.height + l.overscan
	var items []Item
	off := 0
	for i, f := range l.files {
		if off >= end {
			break
		}
		h := l.heightAt(i)
		if off+h > start {
			l.autoExpand(f.Path)
			h = l.heightAt(i)
			items = append(items, Item{Index: i, File: f, Offset: off, Height: h, Expanded: l.expanded[f.Path]})
		}
		off += h
	}
	l.clampOffset()
	return items
}

func (l *List) autoExpand(path string) {
	if _, ok := l.userOverridden[path]; ok {
		return
	}
	if _, ok := l.autoHandled[path]; ok {
		return
	}
	l.autoHandled[path] = struct{}{}
	l.expanded[path] = true
}

// IsExpanded reports the expansion state of path.
func (l *List) IsExpanded(path string) bool { return l.expanded[path] }

// SetExpanded records a user choice for path.
func (l *List) SetExpanded(path string, expanded bool) {
	if _, ok := l.index[path]; !ok {
		return
	}
	l.userOverridden[path] = struct{}{}
	l.expanded[path] = expanded
	l.clampOffset()
}

// Toggle flips path and returns the new state.
func (l *List) Toggle(path string) bool {
	next := !l.expanded[path]
	l.SetExpanded(path, next)
	return l.expanded[path]
}

// ExpandAll expands every file as a user action.
func (l *List) ExpandAll() { l.setAll(true) }

// CollapseAll collapses every file as a user action.
func (l *List) CollapseAll() { l.setAll(false) }

func (l *List) setAll(expanded bool) {
	for _, f := range l.files {
		l.userOverridden[f.Path] = struct{}{}
		l.expanded[f.Path] = expanded
	}
	l.clampOffset()
}

// AllExpanded reports whether the list is non-empty and every file is
// expanded.
func (l *List) AllExpanded() bool {
	if len(l.files) == 0 {
		return false
	}
	return !slices.ContainsFunc(l.files, func(f contracts.FileDiffInfo) bool { return !l.expanded[f.Path] })
}

// UserOverridden reports whether the user chose path's state explicitly.
func (l *List) UserOverridden(path string) bool {
	_, ok := l.userOverridden[path]
	return ok
}

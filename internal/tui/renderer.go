package tui

import (
	"log/slog"

	"github.com/sergeknystautas/diffview/internal/api/contracts"
	"github.com/sergeknystautas/diffview/internal/difflist"
	"github.com/sergeknystautas/diffview/internal/vimnav"
)

// diffRenderer adapts a difflist.List and its parsed patches to the
// navigator. Large files have no patch until it is fetched; their content is
// reported missing until then.
type diffRenderer struct {
	list   *difflist.List
	style  string
	logger *slog.Logger

	docs map[string]*fileDoc
	// patches holds on-demand patch text for large files.
	patches map[string]string
	// wanted collects large files whose patch must be fetched.
	wanted map[string]bool
	// openReq is set by OpenInEditor and drained by the model.
	openReq *int
}

func newDiffRenderer(style string, logger *slog.Logger) *diffRenderer {
	r := &diffRenderer{
		style:   style,
		logger:  logger,
		docs:    map[string]*fileDoc{},
		patches: map[string]string{},
		wanted:  map[string]bool{},
	}
	r.list = difflist.New(difflist.Options{Measure: r.measure})
	return r
}

var _ vimnav.Renderer = (*diffRenderer)(nil)

// setFiles replaces the list contents. Parsed documents are dropped because
// patches may have changed even when paths did not.
func (r *diffRenderer) setFiles(files []contracts.FileDiffInfo, sourceKey string) bool {
	clear(r.docs)
	if r.list.SetFiles(files, sourceKey) {
		clear(r.patches)
		clear(r.wanted)
		clear(r.docs)
		return true
	}
	return false
}

func (r *diffRenderer) setStyle(style string) {
	if style == r.style {
		return
	}
	r.style = style
	clear(r.docs)
}

func (r *diffRenderer) file(i int) (contracts.FileDiffInfo, bool) {
	files := r.list.Files()
	if i < 0 || i >= len(files) {
		return contracts.FileDiffInfo{}, false
	}
	return files[i], true
}

// doc returns the parsed document for f, or nil while a large file's patch
// is still missing.
func (r *diffRenderer) doc(f contracts.FileDiffInfo) *fileDoc {
	if d, ok := r.docs[f.Path]; ok {
		return d
	}
	text := f.Patch
	if f.IsLarge && !f.Binary {
		p, ok := r.patches[f.Path]
		if !ok {
			r.wanted[f.Path] = true
			return nil
		}
		text = p
	}
	d, err := buildDoc(f, text, r.style)
	if err != nil {
		r.logger.Warn("failed to parse patch", "path", f.Path, "err", err)
		d = &fileDoc{rows: []docRow{{kind: rowNote, text: "unreadable patch", lineIdx: -1}}}
	}
	r.docs[f.Path] = d
	return d
}

// setPatch stores a fetched large-file patch.
func (r *diffRenderer) setPatch(path, text string) {
	r.patches[path] = text
	delete(r.wanted, path)
	delete(r.docs, path)
}

// takeWanted returns and clears the large files awaiting a fetch.
func (r *diffRenderer) takeWanted() []string {
	if len(r.wanted) == 0 {
		return nil
	}
	out := make([]string, 0, len(r.wanted))
	for p := range r.wanted {
		out = append(out, p)
	}
	clear(r.wanted)
	return out
}

func (r *diffRenderer) measure(f contracts.FileDiffInfo, expanded bool) int {
	if !expanded {
		return difflist.HeaderRows
	}
	if f.IsLarge && !f.Binary {
		if _, ok := r.patches[f.Path]; !ok {
			return difflist.LargePlaceholderRows
		}
	}
	if d := r.doc(f); d != nil {
		return d.height()
	}
	return difflist.EstimateHeight(f, expanded)
}

func (r *diffRenderer) FileCount() int { return r.list.Len() }

func (r *diffRenderer) content(i int) *fileDoc {
	f, ok := r.file(i)
	if !ok || !r.list.IsExpanded(f.Path) {
		return nil
	}
	return r.doc(f)
}

func (r *diffRenderer) GetLines(i int) ([]vimnav.Line, bool) {
	d := r.content(i)
	if d == nil {
		return nil, false
	}
	return d.lines, true
}

func (r *diffRenderer) GetHunks(i int) ([]vimnav.Hunk, bool) {
	d := r.content(i)
	if d == nil {
		return nil, false
	}
	return d.hunks, true
}

func (r *diffRenderer) IsExpanded(i int) bool {
	f, ok := r.file(i)
	return ok && r.list.IsExpanded(f.Path)
}

func (r *diffRenderer) SetExpanded(i int, expanded bool) {
	if f, ok := r.file(i); ok {
		r.list.SetExpanded(f.Path, expanded)
	}
}

func (r *diffRenderer) SetAllExpanded(expanded bool) {
	if expanded {
		r.list.ExpandAll()
		return
	}
	r.list.CollapseAll()
}

func (r *diffRenderer) ScrollTo(t vimnav.Target) {
	f, ok := r.file(t.File)
	if !ok {
		return
	}
	row := 0
	if t.Line >= 0 && r.list.IsExpanded(f.Path) {
		if d := r.doc(f); d != nil {
			row = d.rowOf(t.Line)
		}
	}
	r.list.EnsureVisible(t.File, row)
}

func (r *diffRenderer) OpenInEditor(i int) {
	if _, ok := r.file(i); ok {
		r.openReq = &i
	}
}

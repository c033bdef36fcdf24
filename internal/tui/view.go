package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/sergeknystautas/diffview/internal/api/contracts"
	"github.com/sergeknystautas/diffview/internal/difflist"
	"github.com/sergeknystautas/diffview/internal/filter"
	"github.com/sergeknystautas/diffview/internal/patch"
	"github.com/sergeknystautas/diffview/internal/tabs"
)

// maxWordDiffLen skips intra-line highlighting for very long lines.
const maxWordDiffLen = 500

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 {
		return ""
	}
	t := m.store.Active()
	v := m.view(t)

	var b strings.Builder
	b.WriteString(m.renderTabBar())
	b.WriteByte('\n')
	b.WriteString(m.fit(m.renderContext(t, v)))
	b.WriteByte('\n')
	body := m.renderBody(t, v)
	for len(body) < m.bodyHeight() {
		body = append(body, "")
	}
	b.WriteString(strings.Join(body[:m.bodyHeight()], "\n"))
	b.WriteByte('\n')
	b.WriteString(m.fit(m.renderFooter()))
	return b.String()
}

func (m Model) fit(s string) string {
	return ansi.Truncate(s, m.width, "…")
}

func (m Model) renderTabBar() string {
	active := m.store.Active().ID
	var parts []string
	for _, t := range m.store.Tabs() {
		label := t.Label
		if v, ok := m.views[t.ID]; ok && v.loaded && isDiffTab(t) {
			label += " " + statusStyle.Render(strconv.Itoa(len(v.files)))
		}
		if t.ID == active {
			parts = append(parts, activeTabStyle.Render(label))
		} else {
			parts = append(parts, tabStyle.Render(label))
		}
	}
	return m.fit(lipgloss.JoinHorizontal(lipgloss.Top, parts...))
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func statsText(st contracts.DiffStats) string {
	return fmt.Sprintf("%d files %s %s", st.Files,
		addStyle.Render(fmt.Sprintf("+%d", st.Additions)),
		delStyle.Render(fmt.Sprintf("-%d", st.Deletions)))
}

func (m Model) renderContext(t tabs.Tab, v *tabView) string {
	var s string
	switch t.Type {
	case tabs.TypeWorkingChanges:
		s = "working changes in " + m.repo
	case tabs.TypeWorktree:
		s = "worktree " + t.RepoPath
		if t.Context.PRBranch != "" {
			s += " [" + t.Context.PRBranch + "]"
		}
	case tabs.TypeBranchCompare:
		s = t.Context.BaseBranch + "..." + t.Context.HeadBranch
		if c := v.compare; c != nil {
			if c.UseMergeBase {
				s += fmt.Sprintf(" (merge-base %s", shortSHA(c.MergeBase))
				if c.MergeBaseDate != "" {
					s += " " + c.MergeBaseDate
				}
				s += ")"
			} else {
				s = t.Context.BaseBranch + ".." + t.Context.HeadBranch + " (direct)"
			}
			s += fmt.Sprintf(", %d commits ahead", c.CommitCount)
		}
	case tabs.TypeCommit:
		s = "commit " + shortSHA(t.Context.CommitSHA)
		if c := v.commit; c != nil {
			subject, _, _ := strings.Cut(c.Commit.Message, "\n")
			s = fmt.Sprintf("%s %s (%s, %s)", c.Commit.ShortSHA, subject, c.Commit.Author, c.Commit.Date)
		}
	case tabs.TypePR:
		s = fmt.Sprintf("PR #%d", t.Context.PRNumber)
		if p := v.pr; p != nil {
			if p.MetadataUnavailable {
				s += " " + warningStyle.Render("(pull request metadata unavailable)")
			} else {
				s += fmt.Sprintf(" %s (%s → %s, @%s)", p.PR.Title, p.PR.SourceBranch, p.PR.TargetBranch, p.PR.Author)
			}
		}
	case tabs.TypeHistory:
		ref := t.Context.HeadBranch
		if ref == "" {
			ref = "HEAD"
		}
		s = "history of " + ref
		if h := v.history; h != nil {
			s += fmt.Sprintf(" (page %d/%d, %d commits)", h.Page, max(1, h.TotalPages), h.Total)
		}
		return contextStyle.Render(s)
	}
	s = contextStyle.Render(s)
	if v.loaded {
		s += "  " + statsText(v.stats)
	}
	if m.filters.Active() {
		s += "  " + warningStyle.Render(filterSummary(m.filters, len(v.renderer.list.Files()), len(v.files)))
	}
	return s
}

func filterSummary(f filter.Filters, shown, total int) string {
	var parts []string
	if len(f.Extensions) > 0 {
		parts = append(parts, strings.Join(f.Extensions, ","))
	}
	for _, st := range f.Statuses {
		parts = append(parts, string(st))
	}
	return fmt.Sprintf("[%s] %d/%d", strings.Join(parts, " "), shown, total)
}

func (m Model) renderFooter() string {
	if m.inputMode != inputNone {
		return m.input.View()
	}
	if m.status != "" {
		if m.statusErr {
			return errorStyle.Render(m.status)
		}
		return statusStyle.Render(m.status)
	}
	hint := statusStyle.Render(fmt.Sprintf("sort %s %s", m.filters.SortBy, m.filters.Order))
	if m.help.ShowAll {
		return m.help.View(m.keys)
	}
	return m.help.ShortHelpView(m.keys.ShortHelp()) + "  " + hint
}

func (m Model) renderBody(t tabs.Tab, v *tabView) []string {
	switch {
	case v.err != nil && !v.loaded:
		return []string{errorStyle.Render(v.err.Error()), statusStyle.Render("r retries")}
	case !v.loaded:
		return []string{m.spinner.View() + statusStyle.Render(" loading…")}
	case t.Type == tabs.TypeHistory:
		return m.renderHistory(v)
	case v.showDescription && v.pr != nil:
		return m.renderDescription(v)
	}
	var out []string
	if v.err != nil {
		out = append(out, errorStyle.Render(v.err.Error()))
	}
	if len(v.renderer.list.Files()) == 0 {
		if len(v.files) > 0 {
			return append(out, statusStyle.Render("No files match the current filters"))
		}
		return append(out, statusStyle.Render("No changes"))
	}
	return append(out, m.renderDiff(v)...)
}

func (m Model) renderHistory(v *tabView) []string {
	h := v.history
	if h == nil || len(h.Commits) == 0 {
		return []string{statusStyle.Render("No commits")}
	}
	height := m.bodyHeight()
	start := 0
	if v.histSel >= height {
		start = v.histSel - height + 1
	}
	var out []string
	for i := start; i < len(h.Commits) && len(out) < height; i++ {
		c := h.Commits[i]
		subject, _, _ := strings.Cut(c.Message, "\n")
		line := fmt.Sprintf("%s %s %s %s", hunkStyle.Render(c.ShortSHA), lineNoStyle.Render(c.Date), c.Author, subject)
		line = m.fit(line)
		if i == v.histSel {
			line = cursorStyle.Render(line)
		}
		out = append(out, line)
	}
	return out
}

func (m Model) renderDescription(v *tabView) []string {
	body := v.pr.PR.Body
	if strings.TrimSpace(body) == "" {
		return []string{statusStyle.Render("No description")}
	}
	out, err := m.md.render(body, max(20, m.width-2))
	if err != nil {
		m.logger.Warn("failed to render description", "err", err)
		out = body
	}
	return strings.Split(strings.TrimRight(out, "\n"), "\n")
}

// renderDiff draws the rows of the visible window.
func (m Model) renderDiff(v *tabView) []string {
	r := v.renderer
	offset, height := r.list.Viewport()
	rows := make([]string, height)
	focus := v.nav.Focus()
	showCursor := v.nav.Active()

	for _, it := range r.list.Visible() {
		cursorRow := -1
		if showCursor && focus.File == it.Index {
			cursorRow = 0
		}
		var d *fileDoc
		if it.Expanded {
			d = r.doc(it.File)
			if d != nil && cursorRow == 0 && focus.Line >= 0 {
				cursorRow = d.rowOf(focus.Line)
			}
		}
		for rel := 0; rel < it.Height; rel++ {
			abs := it.Offset + rel
			if abs < offset || abs >= offset+height {
				continue
			}
			var line string
			switch {
			case rel == 0:
				line = m.renderFileHeader(it)
			case d != nil && rel-difflist.HeaderRows < len(d.rows):
				line = m.renderRow(d.rows[rel-difflist.HeaderRows])
			case d == nil && rel == 1:
				line = noteStyle.Render("  loading large file…")
			}
			rows[abs-offset] = m.decorate(line, rel == cursorRow)
		}
	}
	return rows
}

func (m Model) decorate(line string, cursor bool) string {
	if cursor {
		return m.fit(cursorStyle.Render("▌") + line)
	}
	return m.fit(" " + line)
}

func (m Model) renderFileHeader(it difflist.Item) string {
	f := it.File
	arrow := "▸"
	if it.Expanded {
		arrow = "▾"
	}
	letter := statusLetters[f.Status]
	if letter == "" {
		letter = "?"
	}
	path := f.Path
	if f.Status == contracts.StatusRenamed && f.OldPath != "" {
		path = f.OldPath + " → " + f.Path
	}
	s := fmt.Sprintf("%s %s %s", arrow, statusStyleFor(f.Status).Render(letter), fileHeaderStyle.Render(path))
	switch {
	case f.Binary:
		s += " " + noteStyle.Render("binary")
	default:
		s += " " + addStyle.Render(fmt.Sprintf("+%d", f.Additions)) + " " + delStyle.Render(fmt.Sprintf("-%d", f.Deletions))
		if f.IsLarge {
			s += " " + noteStyle.Render("large")
		}
	}
	return s
}

func (m Model) renderRow(row docRow) string {
	switch row.kind {
	case rowHunkHeader:
		return hunkStyle.Render(row.text)
	case rowNote:
		return noteStyle.Render("  " + row.text)
	case rowSplit:
		half := max(10, (m.width-3)/2)
		left := padTo(m.renderSide(row.split.Left, row.split.Right, true), half)
		right := m.renderSide(row.split.Right, row.split.Left, false)
		return left + lineNoStyle.Render("│") + right
	}
	return m.renderUnified(row.line, row.pair)
}

func padTo(s string, width int) string {
	s = ansi.Truncate(s, width, "…")
	if w := ansi.StringWidth(s); w < width {
		s += strings.Repeat(" ", width-w)
	}
	return s
}

func lineNo(n int) string {
	if n == 0 {
		return "    "
	}
	return fmt.Sprintf("%4d", n)
}

func (m Model) renderUnified(l, pair *patch.Line) string {
	if l == nil {
		return ""
	}
	gutter := lineNoStyle.Render(lineNo(l.OldLineNum) + " " + lineNo(l.NewLineNum) + " ")
	return gutter + renderContent(l, pair)
}

// renderSide draws one half of a split row; old selects the left column.
func (m Model) renderSide(l, other *patch.Line, old bool) string {
	if l == nil {
		return ""
	}
	n := l.NewLineNum
	if old {
		n = l.OldLineNum
	}
	var pair *patch.Line
	if other != nil && other.Type != patch.LineContext && l.Type != patch.LineContext {
		pair = other
	}
	return lineNoStyle.Render(lineNo(n)+" ") + renderContent(l, pair)
}

func renderContent(l, pair *patch.Line) string {
	content := strings.ReplaceAll(l.Content, "\t", "    ")
	var sign string
	var base, word lipgloss.Style
	switch l.Type {
	case patch.LineAddition:
		sign, base, word = "+", addStyle, wordAddStyle
	case patch.LineDeletion:
		sign, base, word = "-", delStyle, wordDelStyle
	default:
		return ctxStyle.Render(" " + content)
	}
	if pair == nil || len(l.Content) > maxWordDiffLen || len(pair.Content) > maxWordDiffLen {
		return base.Render(sign + content)
	}
	var segs []patch.Segment
	if l.Type == patch.LineDeletion {
		segs, _ = patch.WordDiff(l.Content, pair.Content)
	} else {
		_, segs = patch.WordDiff(pair.Content, l.Content)
	}
	var b strings.Builder
	b.WriteString(base.Render(sign))
	for _, s := range segs {
		text := strings.ReplaceAll(s.Text, "\t", "    ")
		if s.Type == patch.SegmentEqual {
			b.WriteString(base.Render(text))
		} else {
			b.WriteString(word.Render(text))
		}
	}
	return b.String()
}

package tui

import (
	"strconv"

	"github.com/sergeknystautas/diffview/internal/api/contracts"
	"github.com/sergeknystautas/diffview/internal/difflist"
	"github.com/sergeknystautas/diffview/internal/patch"
	"github.com/sergeknystautas/diffview/internal/vimnav"
)

// rowKind distinguishes the rows of an expanded file.
type rowKind int

const (
	rowHunkHeader rowKind = iota
	rowLine
	rowSplit
	rowNote
)

// docRow is one rendered row below a file header.
type docRow struct {
	kind rowKind
	text string
	line *patch.Line
	// pair is the line this one is word-diffed against, if any.
	pair  *patch.Line
	split patch.Row
	// lineIdx is the navigable line index, or -1.
	lineIdx int
}

// fileDoc is the parsed, navigable form of one file's patch.
type fileDoc struct {
	rows    []docRow
	lines   []vimnav.Line
	hunks   []vimnav.Hunk
	lineRow []int
	binary  bool
}

// height includes the file header row.
func (d *fileDoc) height() int {
	return difflist.HeaderRows + len(d.rows)
}

// rowOf returns the row, relative to the file header, holding line.
func (d *fileDoc) rowOf(line int) int {
	if line < 0 || line >= len(d.lineRow) {
		return 0
	}
	return difflist.HeaderRows + d.lineRow[line]
}

func navLine(l *patch.Line) vimnav.Line {
	kind := vimnav.LineContext
	switch l.Type {
	case patch.LineAddition:
		kind = vimnav.LineAdded
	case patch.LineDeletion:
		kind = vimnav.LineDeleted
	}
	return vimnav.Line{Kind: kind, OldNumber: l.OldLineNum, NewNumber: l.NewLineNum}
}

// buildDoc lays out a patch in unified or split rows. Rows beyond the
// expanded-height cap are replaced by a note.
func buildDoc(f contracts.FileDiffInfo, text, style string) (*fileDoc, error) {
	d := &fileDoc{}
	if f.Binary {
		d.binary = true
		d.rows = []docRow{{kind: rowNote, text: "binary file", lineIdx: -1}}
		return d, nil
	}
	parsed, err := patch.Parse(text)
	if err != nil {
		return nil, err
	}
	if parsed.Binary {
		d.binary = true
		d.rows = []docRow{{kind: rowNote, text: "binary file", lineIdx: -1}}
		return d, nil
	}

	budget := difflist.MaxExpandedRows - difflist.HeaderRows - 1
	hidden := 0
	add := func(r docRow) bool {
		if len(d.rows) >= budget {
			if r.kind != rowHunkHeader {
				hidden++
			}
			return false
		}
		if r.kind == rowLine || r.kind == rowSplit {
			r.lineIdx = len(d.lines)
			d.lineRow = append(d.lineRow, len(d.rows))
		} else {
			r.lineIdx = -1
		}
		d.rows = append(d.rows, r)
		return true
	}

	for hi := range parsed.Hunks {
		h := &parsed.Hunks[hi]
		if add(docRow{kind: rowHunkHeader, text: h.Header}) {
			d.hunks = append(d.hunks, vimnav.Hunk{Start: len(d.lines), Header: h.Header})
		}
		if style == contracts.DiffStyleSplit {
			for _, row := range patch.Align(*h) {
				nav := row.Right
				if nav == nil {
					nav = row.Left
				}
				if add(docRow{kind: rowSplit, split: row}) {
					d.lines = append(d.lines, navLine(nav))
				}
			}
			continue
		}
		pairs := pairLines(h.Lines)
		for li := range h.Lines {
			l := &h.Lines[li]
			if add(docRow{kind: rowLine, line: l, pair: pairs[li]}) {
				d.lines = append(d.lines, navLine(l))
			}
		}
	}
	if hidden > 0 {
		d.rows = append(d.rows, docRow{kind: rowNote, text: pluralLines(hidden) + " not shown (o opens the file)", lineIdx: -1})
	}
	// A hunk header at the very end of the budget has no lines to land on.
	for len(d.hunks) > 0 && d.hunks[len(d.hunks)-1].Start >= len(d.lines) {
		d.hunks = d.hunks[:len(d.hunks)-1]
	}
	return d, nil
}

// pairLines matches each deletion in a run with the addition at the same
// position in the following run, for word highlighting.
func pairLines(lines []patch.Line) []*patch.Line {
	pairs := make([]*patch.Line, len(lines))
	i := 0
	for i < len(lines) {
		if lines[i].Type != patch.LineDeletion {
			i++
			continue
		}
		delStart := i
		for i < len(lines) && lines[i].Type == patch.LineDeletion {
			i++
		}
		addStart := i
		for i < len(lines) && lines[i].Type == patch.LineAddition {
			i++
		}
		for k := 0; delStart+k < addStart && addStart+k < i; k++ {
			pairs[delStart+k] = &lines[addStart+k]
			pairs[addStart+k] = &lines[delStart+k]
		}
	}
	return pairs
}

func pluralLines(n int) string {
	if n == 1 {
		return "1 line"
	}
	return strconv.Itoa(n) + " lines"
}

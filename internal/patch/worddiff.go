package patch

import "github.com/sergi/go-diff/diffmatchpatch"

// SegmentType marks a word-diff segment as unchanged, removed or inserted.
type SegmentType int

const (
	SegmentEqual SegmentType = iota
	SegmentDelete
	SegmentInsert
)

// Segment is a run of text within a changed line.
type Segment struct {
	Type SegmentType
	Text string
}

// WordDiff computes intra-line segments between an old and new line. The
// old side gets Equal and Delete segments and the new side gets Equal and
// Insert segments.
func WordDiff(oldLine, newLine string) (oldSegs, newSegs []Segment) {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(oldLine, newLine, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			oldSegs = append(oldSegs, Segment{Type: SegmentEqual, Text: d.Text})
			newSegs = append(newSegs, Segment{Type: SegmentEqual, Text: d.Text})
		case diffmatchpatch.DiffDelete:
			oldSegs = append(oldSegs, Segment{Type: SegmentDelete, Text: d.Text})
		case diffmatchpatch.DiffInsert:
			newSegs = append(newSegs, Segment{Type: SegmentInsert, Text: d.Text})
		}
	}
	return oldSegs, newSegs
}

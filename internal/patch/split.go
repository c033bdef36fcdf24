package patch

// Row is one row of a side-by-side rendering. A nil side is a gap.
type Row struct {
	Left  *Line
	Right *Line
}

// Align pairs a hunk's lines into side-by-side rows. Context lines appear on
// both sides. A run of deletions followed by a run of additions is paired
// row by row, and the longer run pads the other side with gaps. Every source
// line appears in exactly one row, so a line is never rendered twice.
func Align(h Hunk) []Row {
	var rows []Row
	lines := h.Lines
	i := 0
	for i < len(lines) {
		if lines[i].Type == LineContext {
			rows = append(rows, Row{Left: &lines[i], Right: &lines[i]})
			i++
			continue
		}

		delStart := i
		for i < len(lines) && lines[i].Type == LineDeletion {
			i++
		}
		delEnd := i
		addStart := i
		for i < len(lines) && lines[i].Type == LineAddition {
			i++
		}
		addEnd := i

		dels := delEnd - delStart
		adds := addEnd - addStart
		n := dels
		if adds > n {
			n = adds
		}
		for k := 0; k < n; k++ {
			var row Row
			if k < dels {
				row.Left = &lines[delStart+k]
			}
			if k < adds {
				row.Right = &lines[addStart+k]
			}
			rows = append(rows, row)
		}
	}
	return rows
}

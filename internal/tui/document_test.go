package tui

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sergeknystautas/diffview/internal/api/contracts"
	"github.com/sergeknystautas/diffview/internal/difflist"
	"github.com/sergeknystautas/diffview/internal/patch"
	"github.com/sergeknystautas/diffview/internal/vimnav"
)

const twoHunks = "diff --git a/a.go b/a.go\n" +
	"--- a/a.go\n" +
	"+++ b/a.go\n" +
	"@@ -1,3 +1,3 @@\n" +
	" package a\n" +
	"-var x = 1\n" +
	"+var x = 2\n" +
	" import \"b\"\n" +
	"@@ -10,2 +10,3 @@ func f() {\n" +
	" \ta()\n" +
	"+\tb()\n" +
	" }\n"

func TestBuildDocUnified(t *testing.T) {
	f := contracts.FileDiffInfo{Path: "a.go", Status: contracts.StatusModified, Additions: 2, Deletions: 1}
	d, err := buildDoc(f, twoHunks, contracts.DiffStyleUnified)
	require.NoError(t, err)

	require.Len(t, d.hunks, 2)
	require.Equal(t, 0, d.hunks[0].Start)
	require.Equal(t, 4, d.hunks[1].Start)
	require.Len(t, d.lines, 7)
	require.Equal(t, vimnav.LineDeleted, d.lines[1].Kind)
	require.Equal(t, 2, d.lines[1].OldNumber)
	require.Equal(t, vimnav.LineAdded, d.lines[2].Kind)
	require.Equal(t, 2, d.lines[2].NewNumber)

	// Two hunk headers plus seven lines, below the file header.
	require.Equal(t, difflist.HeaderRows+9, d.height())
	require.Equal(t, difflist.HeaderRows+1, d.rowOf(0))
	require.Equal(t, difflist.HeaderRows+6, d.rowOf(4))

	// The changed pair is word-diffed against each other.
	del := d.rows[d.lineRow[1]]
	require.NotNil(t, del.pair)
	require.Equal(t, "var x = 2", del.pair.Content)
}

func TestBuildDocSplitPairsChanges(t *testing.T) {
	f := contracts.FileDiffInfo{Path: "a.go", Status: contracts.StatusModified, Additions: 2, Deletions: 1}
	d, err := buildDoc(f, twoHunks, contracts.DiffStyleSplit)
	require.NoError(t, err)

	// The deletion and addition share one row.
	require.Len(t, d.lines, 6)
	row := d.rows[d.lineRow[1]]
	require.Equal(t, rowSplit, row.kind)
	require.NotNil(t, row.split.Left)
	require.NotNil(t, row.split.Right)
	require.Equal(t, "var x = 1", row.split.Left.Content)
	require.Equal(t, "var x = 2", row.split.Right.Content)
}

func TestBuildDocBinary(t *testing.T) {
	d, err := buildDoc(contracts.FileDiffInfo{Path: "x.png", Binary: true}, "", contracts.DiffStyleUnified)
	require.NoError(t, err)
	require.True(t, d.binary)
	require.Empty(t, d.lines)
	require.Equal(t, rowNote, d.rows[0].kind)
}

func TestBuildDocCapsRows(t *testing.T) {
	var b strings.Builder
	n := difflist.MaxExpandedRows + 50
	fmt.Fprintf(&b, "@@ -0,0 +1,%d @@\n", n)
	for i := range n {
		fmt.Fprintf(&b, "+line %d\n", i)
	}
	f := contracts.FileDiffInfo{Path: "gen.go", Status: contracts.StatusAdded, Additions: n}
	d, err := buildDoc(f, b.String(), contracts.DiffStyleUnified)
	require.NoError(t, err)

	require.Equal(t, difflist.MaxExpandedRows, d.height())
	last := d.rows[len(d.rows)-1]
	require.Equal(t, rowNote, last.kind)
	require.Contains(t, last.text, "lines not shown")
	for _, h := range d.hunks {
		require.Less(t, h.Start, len(d.lines))
	}
}

func TestPairLines(t *testing.T) {
	lines := []patch.Line{
		{Type: patch.LineContext, Content: "a"},
		{Type: patch.LineDeletion, Content: "b"},
		{Type: patch.LineDeletion, Content: "c"},
		{Type: patch.LineAddition, Content: "B"},
		{Type: patch.LineContext, Content: "d"},
		{Type: patch.LineAddition, Content: "e"},
	}
	pairs := pairLines(lines)
	require.Nil(t, pairs[0])
	require.Same(t, &lines[3], pairs[1])
	require.Same(t, &lines[1], pairs[3])
	require.Nil(t, pairs[2])
	require.Nil(t, pairs[5])
}

func TestPluralLines(t *testing.T) {
	require.Equal(t, "1 line", pluralLines(1))
	require.Equal(t, "3 lines", pluralLines(3))
}

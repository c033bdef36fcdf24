package contracts

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNewDiffResultStats(t *testing.T) {
	files := []FileDiffInfo{
		{Path: "a.go", Status: StatusModified, Additions: 3, Deletions: 1},
		{Path: "b.txt", Status: StatusUntracked, Additions: 5},
		{Path: "c.bin", Status: StatusModified, Binary: true},
	}
	res := NewDiffResult(files)
	want := DiffStats{Additions: 8, Deletions: 1, Files: 3}
	if res.Stats != want {
		t.Errorf("Stats = %+v, want %+v", res.Stats, want)
	}
}

func TestNewDiffResultNilFiles(t *testing.T) {
	res := NewDiffResult(nil)
	if res.Files == nil {
		t.Fatal("Files should be an empty slice, not nil")
	}
	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"files":[]`) {
		t.Errorf("json = %s, want empty files array", data)
	}
}

func TestFileStatusValid(t *testing.T) {
	for _, s := range AllStatuses {
		if !s.Valid() {
			t.Errorf("%q should be valid", s)
		}
	}
	if FileStatus("copied").Valid() {
		t.Error("copied should not be a valid status")
	}
}

func TestCompareResultFlattensDiffResult(t *testing.T) {
	res := CompareResult{
		DiffResult:  NewDiffResult([]FileDiffInfo{{Path: "x", Status: StatusAdded, Additions: 1}}),
		Base:        "main",
		Head:        "feature",
		CommitCount: 2,
	}
	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"files", "stats", "commit_count", "base", "head"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing key %q in %s", key, data)
		}
	}
	if _, ok := raw["merge_base"]; ok {
		t.Error("merge_base should be omitted when empty")
	}
}

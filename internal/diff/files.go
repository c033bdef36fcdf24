package diff

import (
	"sort"

	"github.com/sergeknystautas/diffview/internal/api/contracts"
	"github.com/sergeknystautas/diffview/internal/vcs"
)

// statusFromLetter maps a name-status letter to a FileStatus. Copies collapse
// into renames; anything unrecognized is a modification.
func statusFromLetter(letter byte) contracts.FileStatus {
	switch letter {
	case 'A':
		return contracts.StatusAdded
	case 'D':
		return contracts.StatusDeleted
	case 'R', 'C':
		return contracts.StatusRenamed
	default:
		return contracts.StatusModified
	}
}

// mergeSummary builds file skeletons in numstat order, taking status from
// name-status where present.
func mergeSummary(numstat []vcs.NumstatEntry, statuses []vcs.NameStatusEntry) []contracts.FileDiffInfo {
	byPath := make(map[string]vcs.NameStatusEntry, len(statuses))
	for _, st := range statuses {
		byPath[st.Path] = st
	}

	files := make([]contracts.FileDiffInfo, 0, len(numstat))
	for _, n := range numstat {
		f := contracts.FileDiffInfo{
			Path:      n.Path,
			OldPath:   n.OldPath,
			Status:    contracts.StatusModified,
			Additions: n.Additions,
			Deletions: n.Deletions,
			Binary:    n.Binary,
		}
		if st, ok := byPath[n.Path]; ok {
			f.Status = statusFromLetter(st.Letter)
			if f.Status == contracts.StatusRenamed && f.OldPath == "" {
				f.OldPath = st.OldPath
			}
		} else if n.OldPath != "" {
			f.Status = contracts.StatusRenamed
		}
		if f.Status != contracts.StatusRenamed {
			f.OldPath = ""
		}
		files = append(files, f)
	}
	return files
}

// patchPaths returns the pathspec that reproduces f's patch, including the
// old path of a rename so git can pair them.
func patchPaths(f contracts.FileDiffInfo) []string {
	if f.OldPath != "" && f.OldPath != f.Path {
		return []string{f.OldPath, f.Path}
	}
	return []string{f.Path}
}

// gate applies the large-file threshold to a fetched patch.
func (s *Service) gate(f *contracts.FileDiffInfo, patch string) {
	if len(patch) > s.threshold {
		f.IsLarge = true
		f.Patch = ""
		return
	}
	f.IsLarge = false
	f.Patch = patch
}

func sortedCopy(paths []string) []string {
	out := append([]string(nil), paths...)
	sort.Strings(out)
	return out
}

// Package filter narrows and orders a diff's file list. Apply is pure; Memo
// caches its last result for the render loop.
package filter

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/sergeknystautas/diffview/internal/api/contracts"
	"github.com/sergeknystautas/diffview/internal/localstore"
)

// SortKey selects the comparator.
type SortKey string

const (
	SortModified  SortKey = "modified"
	SortName      SortKey = "name"
	SortExtension SortKey = "extension"
	SortStatus    SortKey = "status"
	SortChanges   SortKey = "changes"
)

// SortKeys lists the keys in the order the UI cycles through them.
var SortKeys = []SortKey{SortModified, SortName, SortExtension, SortStatus, SortChanges}

// Order is the sort direction.
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// Filters are the user's filter and sort preferences.
type Filters struct {
	// Extensions keeps files whose path ends with any entry, ignoring case.
	Extensions []string `json:"filter_extensions"`
	// Statuses keeps files with any listed status.
	Statuses []contracts.FileStatus `json:"filter_statuses"`
	SortBy   SortKey                `json:"sort_by"`
	Order    Order                  `json:"sort_order"`
}

// Default returns no filtering, most recently modified first.
func Default() Filters {
	return Filters{SortBy: SortModified, Order: OrderDesc}
}

// Active reports whether any file can be excluded.
func (f Filters) Active() bool {
	return len(f.Extensions) > 0 || len(f.Statuses) > 0
}

// Equal compares two filter sets by value.
func (f Filters) Equal(o Filters) bool {
	return f.SortBy == o.SortBy && f.Order == o.Order &&
		slices.Equal(f.Extensions, o.Extensions) && slices.Equal(f.Statuses, o.Statuses)
}

// Extension returns the lowercased extension of p without the dot, or "".
func Extension(p string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(path.Base(p)), "."))
}

func matchesExtension(p string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	lower := strings.ToLower(p)
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func matchesStatus(s contracts.FileStatus, statuses []contracts.FileStatus) bool {
	return len(statuses) == 0 || slices.Contains(statuses, s)
}

func mtime(f contracts.FileDiffInfo) int64 {
	if f.ModifiedTime == nil {
		return 0
	}
	return *f.ModifiedTime
}

func comparator(key SortKey) func(a, b contracts.FileDiffInfo) int {
	switch key {
	case SortName:
		return func(a, b contracts.FileDiffInfo) int { return cmp.Compare(a.Path, b.Path) }
	case SortExtension:
		return func(a, b contracts.FileDiffInfo) int { return cmp.Compare(Extension(a.Path), Extension(b.Path)) }
	case SortStatus:
		return func(a, b contracts.FileDiffInfo) int { return cmp.Compare(a.Status, b.Status) }
	case SortChanges:
		return func(a, b contracts.FileDiffInfo) int { return cmp.Compare(a.Changes(), b.Changes()) }
	default:
		return func(a, b contracts.FileDiffInfo) int { return cmp.Compare(mtime(a), mtime(b)) }
	}
}

// Apply returns the files passing both filters, stably sorted. The input is
// not modified.
func Apply(files []contracts.FileDiffInfo, f Filters) []contracts.FileDiffInfo {
	out := make([]contracts.FileDiffInfo, 0, len(files))
	for _, file := range files {
		if matchesExtension(file.Path, f.Extensions) && matchesStatus(file.Status, f.Statuses) {
			out = append(out, file)
		}
	}
	compare := comparator(f.SortBy)
	if f.Order == OrderDesc {
		asc := compare
		compare = func(a, b contracts.FileDiffInfo) int { return -asc(a, b) }
	}
	slices.SortStableFunc(out, compare)
	return out
}

// Persister stores preferences. *localstore.Store satisfies it.
type Persister interface {
	GetJSON(ctx context.Context, key string, v any) error
	SetJSON(ctx context.Context, key string, v any) error
}

// LoadPrefs returns the stored filters, or Default when none are stored.
func LoadPrefs(ctx context.Context, p Persister) (Filters, error) {
	f := Default()
	if err := p.GetJSON(ctx, localstore.KeyFilters, &f); err != nil {
		if errors.Is(err, localstore.ErrNotFound) {
			return Default(), nil
		}
		return Default(), fmt.Errorf("load filter preferences: %w", err)
	}
	if !slices.Contains(SortKeys, f.SortBy) {
		f.SortBy = SortModified
	}
	if f.Order != OrderAsc && f.Order != OrderDesc {
		f.Order = OrderDesc
	}
	f.Statuses = slices.DeleteFunc(f.Statuses, func(s contracts.FileStatus) bool { return !s.Valid() })
	return f, nil
}

// SavePrefs stores f.
func SavePrefs(ctx context.Context, p Persister, f Filters) error {
	if err := p.SetJSON(ctx, localstore.KeyFilters, f); err != nil {
		return fmt.Errorf("save filter preferences: %w", err)
	}
	return nil
}

// Memo returns the previous result while the input slice and filters are
// unchanged. Not safe for concurrent use.
type Memo struct {
	valid   bool
	files   []contracts.FileDiffInfo
	filters Filters
	result  []contracts.FileDiffInfo
}

func sameSlice(a, b []contracts.FileDiffInfo) bool {
	if len(a) != len(b) {
		return false
	}
	return len(a) == 0 || &a[0] == &b[0]
}

// Apply returns Apply(files, f), reusing the last result when possible.
func (m *Memo) Apply(files []contracts.FileDiffInfo, f Filters) []contracts.FileDiffInfo {
	if m.valid && sameSlice(m.files, files) && m.filters.Equal(f) {
		return m.result
	}
	m.files = files
	m.filters = Filters{
		Extensions: slices.Clone(f.Extensions),
		Statuses:   slices.Clone(f.Statuses),
		SortBy:     f.SortBy,
		Order:      f.Order,
	}
	m.result = Apply(files, f)
	m.valid = true
	return m.result
}

// Reset drops the cached result.
func (m *Memo) Reset() {
	*m = Memo{}
}
